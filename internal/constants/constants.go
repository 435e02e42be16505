package constants

// 归因模型常量
const (
	AttributionFirst = "FIRST"
	AttributionLast  = "LAST"
)

// 受益方常量
const (
	BeneficiaryReferrer = "REFERRER"
	BeneficiaryReferee  = "REFEREE"
)

// 资格判定结果常量
const (
	DecisionQualified = "QUALIFIED"
	DecisionRejected  = "REJECTED"
)

// 账本方向常量
const (
	DirectionPlus  = "PLUS"
	DirectionMinus = "MINUS"
)

// 推荐状态常量
const (
	ReferralStateCreated    = "CREATED"
	ReferralStateAttributed = "ATTRIBUTED"
	ReferralStateQualified  = "QUALIFIED"
	ReferralStateRewarded   = "REWARDED"
	ReferralStateRevoked    = "REVOKED"
)

// 奖励状态常量
const (
	RewardStatePending   = "PENDING"
	RewardStateGranted   = "GRANTED"
	RewardStateCancelled = "CANCELLED"
)

// 奖励类型常量
const (
	RewardTypeCash   = "cash"
	RewardTypePoints = "points"
	RewardTypeCoupon = "coupon"
)

// 参与方类型常量
const (
	PartyTypeUser   = "user"
	PartyTypeDevice = "device"
)

// 展示徽标常量
const (
	BadgePrimary = "PRIMARY"
	BadgeSuccess = "SUCCESS"
	BadgeWarning = "WARNING"
	BadgeDanger  = "DANGER"
	BadgeInfo    = "INFO"
)

// 幂等作用域常量
const (
	IdempotencyScopeRewardCreation = "reward-creation"
	IdempotencyScopeRewardReversal = "reward-reversal"
)

// 撤销原因常量
const (
	RevokeReasonAdmin           = "admin_revoked"
	RevokeReasonSupersededFirst = "superseded_first_touch"
	RevokeReasonSupersededLast  = "superseded_last_touch"
)

// 账本记账原因常量
const (
	LedgerReasonRewardGranted  = "reward_granted"
	LedgerReasonReferralRevoke = "referral_revoked"
)

// 奖励失败原因常量
const (
	RewardFailReasonRejected = "grant_rejected"
	RewardFailReasonBudget   = "budget_exceeded"
)

// 推荐来源常量
const (
	ReferralSourceLink   = "link"
	ReferralSourceQueue  = "queue"
	ReferralSourceImport = "import"
)

// 权限对象与动作常量
const (
	AuthzObjectCampaign = "campaign"
	AuthzObjectReferral = "referral"
	AuthzActionRead     = "read"
	AuthzActionWrite    = "write"
	AuthzActionRevoke   = "revoke"
)

// 队列常量
const (
	QueueDefault          = "default"
	QueueCritical         = "critical"
	TaskReferralAttribute = "referral:attribute"
	TaskReferralQualify   = "referral:qualify"
	TaskReferralRevoke    = "referral:revoke"
	TaskRewardIssue       = "reward:issue"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "mgm"
)

// 币种常量
const (
	CurrencyDefault = "CNY"
)

// 站点语言常量
const (
	LocaleZhCN = "zh-CN"
	LocaleZhTW = "zh-TW"
	LocaleEnUS = "en-US"
)

// 支持的展示语言顺序（含回退顺序）
var SupportedLocales = []string{LocaleZhCN, LocaleZhTW, LocaleEnUS}
