package grant

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// NoopGranter 本地发放实现：不调用外部系统，直接返回生成的单号
type NoopGranter struct{}

// NewNoopGranter 创建本地发放实现
func NewNoopGranter() *NoopGranter {
	return &NoopGranter{}
}

// Grant 实现 Granter
func (g *NoopGranter) Grant(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, Retryable("canceled", err)
	}
	return Result{ExternalID: "local-" + strings.ReplaceAll(uuid.NewString(), "-", "")}, nil
}
