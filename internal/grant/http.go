package grant

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"
)

var (
	ErrConfigInvalid   = errors.New("grant config invalid")
	ErrResponseInvalid = errors.New("grant response invalid")
)

const (
	headerSignature = "X-Grant-Signature"
	headerIdemKey   = "Idempotency-Key"

	defaultHTTPTimeout = 10 * time.Second
	defaultRateLimit   = 20
	defaultRateBurst   = 5
)

// Config 外部发放网关配置
type Config struct {
	Endpoint  string        `json:"endpoint"`   // 发放接口地址
	APIKey    string        `json:"api_key"`    // 签名密钥
	Timeout   time.Duration `json:"timeout"`    // 单次请求超时
	RateLimit float64       `json:"rate_limit"` // 每秒请求数
	Burst     int           `json:"burst"`      // 突发容量
}

// ValidateConfig 校验配置
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return fmt.Errorf("%w: api_key is required", ErrConfigInvalid)
	}
	return nil
}

func (c *Config) normalize() {
	c.Endpoint = strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.Timeout <= 0 {
		c.Timeout = defaultHTTPTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.Burst <= 0 {
		c.Burst = defaultRateBurst
	}
}

// HTTPGranter 通过 HTTP JSON 接口调用外部发放网关
type HTTPGranter struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPGranter 创建 HTTP 发放客户端
func NewHTTPGranter(cfg Config) (*HTTPGranter, error) {
	cfg.normalize()
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &HTTPGranter{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}, nil
}

type grantPayload struct {
	IdemKey         string                 `json:"idem_key"`
	BeneficiaryType string                 `json:"beneficiary_type"`
	BeneficiaryID   string                 `json:"beneficiary_id"`
	RewardType      string                 `json:"reward_type"`
	Amount          string                 `json:"amount"`
	Currency        string                 `json:"currency"`
	Spec            map[string]interface{} `json:"spec,omitempty"`
}

type grantResponse struct {
	ExternalID string `json:"external_id"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Grant 实现 Granter
// 2xx 返回外部单号；408/429/5xx、网络错误与上下文取消为可重试；其余 4xx 为终态失败。
func (g *HTTPGranter) Grant(ctx context.Context, req Request) (Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Result{}, Retryable("rate_limited", err)
	}

	body, err := json.Marshal(grantPayload{
		IdemKey:         req.IdemKey,
		BeneficiaryType: req.BeneficiaryType,
		BeneficiaryID:   req.BeneficiaryID,
		RewardType:      req.RewardType,
		Amount:          req.Amount.StringFixed(2),
		Currency:        req.Currency,
		Spec:            req.Spec,
	})
	if err != nil {
		return Result{}, Terminal("encode_failed", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, Terminal("request_invalid", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerIdemKey, req.IdemKey)
	httpReq.Header.Set(headerSignature, Sign(body, g.cfg.APIKey))

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Result{}, Retryable("network", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, Retryable("read_failed", err)
	}
	var parsed grantResponse
	if len(respBytes) > 0 {
		_ = json.Unmarshal(respBytes, &parsed)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		externalID := strings.TrimSpace(parsed.ExternalID)
		if externalID == "" {
			return Result{}, Retryable("response_invalid", fmt.Errorf("%w: missing external_id", ErrResponseInvalid))
		}
		return Result{ExternalID: externalID}, nil
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return Result{}, Retryable(statusCode(resp.StatusCode, parsed.Code), fmt.Errorf("http status %d: %s", resp.StatusCode, parsed.Message))
	default:
		return Result{}, Terminal(statusCode(resp.StatusCode, parsed.Code), fmt.Errorf("http status %d: %s", resp.StatusCode, parsed.Message))
	}
}

func statusCode(status int, code string) string {
	if code = strings.TrimSpace(code); code != "" {
		return code
	}
	return fmt.Sprintf("http_%d", status)
}

// Sign 使用 blake2b-256 keyed MAC 生成请求签名（小写十六进制）
func Sign(body []byte, apiKey string) string {
	key := []byte(apiKey)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		return ""
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
