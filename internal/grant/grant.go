// Package grant 定义外部奖励发放协作方（现金/积分/券）的调用契约与实现。
package grant

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Request 发放请求
type Request struct {
	IdemKey         string                 `json:"idem_key"` // 发放幂等键，外部系统据此去重
	BeneficiaryType string                 `json:"beneficiary_type"`
	BeneficiaryID   string                 `json:"beneficiary_id"`
	RewardType      string                 `json:"reward_type"`
	Amount          decimal.Decimal        `json:"amount"`
	Currency        string                 `json:"currency"`
	Spec            map[string]interface{} `json:"spec,omitempty"`
}

// Result 发放结果
type Result struct {
	ExternalID string
}

// Granter 外部发放协作方
type Granter interface {
	Grant(ctx context.Context, req Request) (Result, error)
}

// Failure 发放失败
type Failure struct {
	Retryable bool
	Code      string
	Err       error
}

// Error 实现 error 接口
func (f *Failure) Error() string {
	kind := "terminal"
	if f.Retryable {
		kind = "retryable"
	}
	if f.Err == nil {
		return fmt.Sprintf("grant %s failure: %s", kind, f.Code)
	}
	return fmt.Sprintf("grant %s failure: %s: %v", kind, f.Code, f.Err)
}

// Unwrap 返回底层错误
func (f *Failure) Unwrap() error {
	return f.Err
}

// Retryable 构造可重试失败
func Retryable(code string, err error) error {
	return &Failure{Retryable: true, Code: code, Err: err}
}

// Terminal 构造终态失败
func Terminal(code string, err error) error {
	return &Failure{Retryable: false, Code: code, Err: err}
}

// IsRetryable 判断发放错误是否可重试
// 超时与取消视为可重试，未知错误同样按可重试处理，奖励保持待发放。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Retryable
	}
	return true
}

// FailureCode 返回失败编码
func FailureCode(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "unknown"
}
