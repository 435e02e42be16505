package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind 领域错误类别
type ErrorKind string

const (
	KindNotFound        ErrorKind = "not_found"
	KindPrecondition    ErrorKind = "precondition"
	KindConflict        ErrorKind = "conflict"
	KindExternal        ErrorKind = "external"
	KindInvalidArgument ErrorKind = "invalid_argument"
)

// DomainError 领域错误
// 说明：同一 Code 的错误通过 errors.Is 互相匹配，载荷字段只用于日志与调用方展示。
type DomainError struct {
	Kind      ErrorKind
	Code      string
	Message   string
	Retryable bool

	CampaignID uint
	ReferralID uint
	RewardID   uint
	Party      string
	FromState  string
	ToState    string
	Scope      string
	Key        string

	Err error
}

// Error 实现 error 接口
func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Message)
	details := e.details()
	if len(details) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(details, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DomainError) details() []string {
	var parts []string
	if e.CampaignID != 0 {
		parts = append(parts, fmt.Sprintf("campaign=%d", e.CampaignID))
	}
	if e.ReferralID != 0 {
		parts = append(parts, fmt.Sprintf("referral=%d", e.ReferralID))
	}
	if e.RewardID != 0 {
		parts = append(parts, fmt.Sprintf("reward=%d", e.RewardID))
	}
	if e.Party != "" {
		parts = append(parts, "party="+e.Party)
	}
	if e.FromState != "" || e.ToState != "" {
		parts = append(parts, fmt.Sprintf("transition=%s->%s", e.FromState, e.ToState))
	}
	if e.Scope != "" {
		parts = append(parts, fmt.Sprintf("scope=%s key=%s", e.Scope, e.Key))
	}
	return parts
}

// Unwrap 返回底层错误
func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is 按错误码匹配
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

func (e *DomainError) clone() *DomainError {
	cp := *e
	return &cp
}

func newDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

var (
	ErrCampaignNotFound        = newDomainError(KindNotFound, "campaign_not_found", "campaign not found")
	ErrCampaignInactive        = newDomainError(KindPrecondition, "campaign_inactive", "campaign is inactive")
	ErrCampaignConfigInvalid   = newDomainError(KindInvalidArgument, "campaign_config_invalid", "campaign config invalid")
	ErrCampaignBudgetExceeded  = newDomainError(KindPrecondition, "campaign_budget_exceeded", "campaign budget exceeded")
	ErrSelfReferralNotAllowed  = newDomainError(KindPrecondition, "self_referral_not_allowed", "self referral not allowed")
	ErrDuplicateReferral       = newDomainError(KindPrecondition, "duplicate_referral", "duplicate referral")
	ErrAttributionTokenInvalid = newDomainError(KindInvalidArgument, "attribution_token_invalid", "attribution token invalid")
	ErrAttributionTokenExpired = newDomainError(KindPrecondition, "attribution_token_expired", "attribution token expired")
	ErrReferralNotFound        = newDomainError(KindNotFound, "referral_not_found", "referral not found")
	ErrReferralStateInvalid    = newDomainError(KindPrecondition, "referral_state_invalid", "referral state invalid")
	ErrReferralWindowExpired   = newDomainError(KindPrecondition, "referral_window_expired", "referral attribution window expired")
	ErrQualificationInvalid    = newDomainError(KindInvalidArgument, "qualification_invalid", "qualification invalid")
	ErrRewardNotFound          = newDomainError(KindNotFound, "reward_not_found", "reward not found")
	ErrConcurrentModification  = newDomainError(KindConflict, "concurrent_modification", "concurrent modification")
	ErrIdempotencyInFlight     = newDomainError(KindConflict, "idempotency_in_flight", "operation already in flight")
	ErrGrantRetryable          = &DomainError{Kind: KindExternal, Code: "grant_retryable", Message: "reward grant failed, retry later", Retryable: true}
	ErrGrantRejected           = newDomainError(KindExternal, "grant_rejected", "reward grant rejected")
	ErrPermissionDenied        = newDomainError(KindPrecondition, "permission_denied", "permission denied")
	ErrLedgerEntryInvalid      = newDomainError(KindInvalidArgument, "ledger_entry_invalid", "ledger entry invalid")
)

// CampaignNotFound 活动不存在
func CampaignNotFound(campaignID uint) error {
	e := ErrCampaignNotFound.clone()
	e.CampaignID = campaignID
	return e
}

// CampaignInactive 活动未启用
func CampaignInactive(campaignID uint) error {
	e := ErrCampaignInactive.clone()
	e.CampaignID = campaignID
	return e
}

// CampaignConfigInvalid 活动配置不合法
func CampaignConfigInvalid(reason string) error {
	e := ErrCampaignConfigInvalid.clone()
	e.Err = errors.New(reason)
	return e
}

// CampaignBudgetExceeded 活动预算不足
func CampaignBudgetExceeded(campaignID, referralID uint) error {
	e := ErrCampaignBudgetExceeded.clone()
	e.CampaignID = campaignID
	e.ReferralID = referralID
	return e
}

// SelfReferralNotAllowed 禁止自推荐
func SelfReferralNotAllowed(campaignID uint, party string) error {
	e := ErrSelfReferralNotAllowed.clone()
	e.CampaignID = campaignID
	e.Party = party
	return e
}

// DuplicateReferral 重复归因
func DuplicateReferral(campaignID uint, referee string) error {
	e := ErrDuplicateReferral.clone()
	e.CampaignID = campaignID
	e.Party = referee
	return e
}

// AttributionTokenInvalid 令牌无效
func AttributionTokenInvalid(reason string) error {
	e := ErrAttributionTokenInvalid.clone()
	if reason != "" {
		e.Err = errors.New(reason)
	}
	return e
}

// AttributionTokenExpired 令牌过期
func AttributionTokenExpired(campaignID uint) error {
	e := ErrAttributionTokenExpired.clone()
	e.CampaignID = campaignID
	return e
}

// ReferralNotFound 推荐不存在
func ReferralNotFound(referralID uint) error {
	e := ErrReferralNotFound.clone()
	e.ReferralID = referralID
	return e
}

// ReferralStateInvalid 推荐状态不允许该操作
func ReferralStateInvalid(referralID uint, from, to string) error {
	e := ErrReferralStateInvalid.clone()
	e.ReferralID = referralID
	e.FromState = from
	e.ToState = to
	return e
}

// ReferralWindowExpired 超出归因窗口
func ReferralWindowExpired(campaignID, referralID uint) error {
	e := ErrReferralWindowExpired.clone()
	e.CampaignID = campaignID
	e.ReferralID = referralID
	return e
}

// QualificationInvalid 资格判定输入不合法
func QualificationInvalid(reason string) error {
	e := ErrQualificationInvalid.clone()
	e.Err = errors.New(reason)
	return e
}

// RewardNotFound 奖励不存在
func RewardNotFound(rewardID uint) error {
	e := ErrRewardNotFound.clone()
	e.RewardID = rewardID
	return e
}

// ConcurrentModification 并发修改冲突
func ConcurrentModification(referralID, rewardID uint) error {
	e := ErrConcurrentModification.clone()
	e.ReferralID = referralID
	e.RewardID = rewardID
	return e
}

// IdempotencyInFlight 同一幂等键仍在执行中
func IdempotencyInFlight(scope, key string) error {
	e := ErrIdempotencyInFlight.clone()
	e.Scope = scope
	e.Key = key
	return e
}

// GrantRetryable 外部发放可重试失败
func GrantRetryable(rewardID uint, cause error) error {
	e := ErrGrantRetryable.clone()
	e.RewardID = rewardID
	e.Err = cause
	return e
}

// GrantRejected 外部发放终态失败
func GrantRejected(rewardID uint, cause error) error {
	e := ErrGrantRejected.clone()
	e.RewardID = rewardID
	e.Err = cause
	return e
}

// PermissionDenied 无操作权限
func PermissionDenied(operator, object, action string) error {
	e := ErrPermissionDenied.clone()
	e.Party = operator
	e.Err = fmt.Errorf("%s %s", action, object)
	return e
}

// LedgerEntryInvalid 账本流水不合法
func LedgerEntryInvalid(rewardID uint, reason string) error {
	e := ErrLedgerEntryInvalid.clone()
	e.RewardID = rewardID
	e.Err = errors.New(reason)
	return e
}

// KindOf 返回错误类别，非领域错误返回空串
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsRetryable 判断错误是否值得重试（并发冲突、执行中、外部可重试失败）
func IsRetryable(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	switch de.Kind {
	case KindConflict:
		return true
	case KindExternal:
		return de.Retryable
	}
	return false
}
