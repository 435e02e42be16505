// Package enums 提供推荐奖励领域的封闭枚举及其展示元数据（文案 + 徽标）。
package enums

import (
	"strings"

	"github.com/referral-rewards/internal/constants"
)

// Badge 展示徽标
type Badge string

const (
	BadgePrimary Badge = constants.BadgePrimary
	BadgeSuccess Badge = constants.BadgeSuccess
	BadgeWarning Badge = constants.BadgeWarning
	BadgeDanger  Badge = constants.BadgeDanger
	BadgeInfo    Badge = constants.BadgeInfo
)

// Display 枚举展示信息
type Display struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Badge Badge  `json:"badge"`
}

type entry struct {
	badge  Badge
	labels map[string]string
}

func lookup(table map[string]entry, code, locale string) Display {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	item, ok := table[normalized]
	if !ok {
		return Display{Code: code, Label: code, Badge: BadgeInfo}
	}
	return Display{Code: normalized, Label: pickLabel(item.labels, locale, normalized), Badge: item.badge}
}

func pickLabel(labels map[string]string, locale, fallback string) string {
	if label, ok := labels[resolveLocale(locale)]; ok && label != "" {
		return label
	}
	for _, candidate := range constants.SupportedLocales {
		if label, ok := labels[candidate]; ok && label != "" {
			return label
		}
	}
	return fallback
}

func resolveLocale(locale string) string {
	trimmed := strings.TrimSpace(locale)
	for _, candidate := range constants.SupportedLocales {
		if strings.EqualFold(candidate, trimmed) {
			return candidate
		}
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "zh-hant"), strings.HasPrefix(lower, "zh-hk"):
		return constants.LocaleZhTW
	case strings.HasPrefix(lower, "zh"):
		return constants.LocaleZhCN
	case strings.HasPrefix(lower, "en"):
		return constants.LocaleEnUS
	}
	return constants.LocaleZhCN
}

func labels(zhCN, zhTW, enUS string) map[string]string {
	return map[string]string{
		constants.LocaleZhCN: zhCN,
		constants.LocaleZhTW: zhTW,
		constants.LocaleEnUS: enUS,
	}
}

// Attribution 归因模型
type Attribution string

const (
	AttributionFirst Attribution = constants.AttributionFirst
	AttributionLast  Attribution = constants.AttributionLast
)

var attributionTable = map[string]entry{
	constants.AttributionFirst: {badge: BadgePrimary, labels: labels("首次触达", "首次觸達", "First touch")},
	constants.AttributionLast:  {badge: BadgeInfo, labels: labels("末次触达", "末次觸達", "Last touch")},
}

// Valid 是否为合法归因模型
func (a Attribution) Valid() bool {
	_, ok := attributionTable[string(a)]
	return ok
}

// Attributions 返回全部归因模型
func Attributions() []Attribution {
	return []Attribution{AttributionFirst, AttributionLast}
}

// Display 返回展示信息
func (a Attribution) Display(locale string) Display {
	return lookup(attributionTable, string(a), locale)
}

// Beneficiary 奖励受益方
type Beneficiary string

const (
	BeneficiaryReferrer Beneficiary = constants.BeneficiaryReferrer
	BeneficiaryReferee  Beneficiary = constants.BeneficiaryReferee
)

var beneficiaryTable = map[string]entry{
	constants.BeneficiaryReferrer: {badge: BadgePrimary, labels: labels("推荐人", "推薦人", "Referrer")},
	constants.BeneficiaryReferee:  {badge: BadgeInfo, labels: labels("被推荐人", "被推薦人", "Referee")},
}

// Valid 是否为合法受益方
func (b Beneficiary) Valid() bool {
	_, ok := beneficiaryTable[string(b)]
	return ok
}

// Beneficiaries 返回全部受益方
func Beneficiaries() []Beneficiary {
	return []Beneficiary{BeneficiaryReferrer, BeneficiaryReferee}
}

// Display 返回展示信息
func (b Beneficiary) Display(locale string) Display {
	return lookup(beneficiaryTable, string(b), locale)
}

// Decision 资格判定结果
type Decision string

const (
	DecisionQualified Decision = constants.DecisionQualified
	DecisionRejected  Decision = constants.DecisionRejected
)

var decisionTable = map[string]entry{
	constants.DecisionQualified: {badge: BadgeSuccess, labels: labels("达标", "達標", "Qualified")},
	constants.DecisionRejected:  {badge: BadgeDanger, labels: labels("未达标", "未達標", "Rejected")},
}

// Valid 是否为合法判定结果
func (d Decision) Valid() bool {
	_, ok := decisionTable[string(d)]
	return ok
}

// Decisions 返回全部判定结果
func Decisions() []Decision {
	return []Decision{DecisionQualified, DecisionRejected}
}

// Display 返回展示信息
func (d Decision) Display(locale string) Display {
	return lookup(decisionTable, string(d), locale)
}

// Direction 账本方向
type Direction string

const (
	DirectionPlus  Direction = constants.DirectionPlus
	DirectionMinus Direction = constants.DirectionMinus
)

var directionTable = map[string]entry{
	constants.DirectionPlus:  {badge: BadgeSuccess, labels: labels("入账", "入帳", "Credit")},
	constants.DirectionMinus: {badge: BadgeDanger, labels: labels("冲正", "沖正", "Reversal")},
}

// Valid 是否为合法方向
func (d Direction) Valid() bool {
	_, ok := directionTable[string(d)]
	return ok
}

// Sign 返回方向符号（PLUS=1，MINUS=-1，非法为 0）
func (d Direction) Sign() int {
	switch d {
	case DirectionPlus:
		return 1
	case DirectionMinus:
		return -1
	}
	return 0
}

// Directions 返回全部账本方向
func Directions() []Direction {
	return []Direction{DirectionPlus, DirectionMinus}
}

// Display 返回展示信息
func (d Direction) Display(locale string) Display {
	return lookup(directionTable, string(d), locale)
}

// ReferralState 推荐状态
type ReferralState string

const (
	ReferralCreated    ReferralState = constants.ReferralStateCreated
	ReferralAttributed ReferralState = constants.ReferralStateAttributed
	ReferralQualified  ReferralState = constants.ReferralStateQualified
	ReferralRewarded   ReferralState = constants.ReferralStateRewarded
	ReferralRevoked    ReferralState = constants.ReferralStateRevoked
)

var referralStateTable = map[string]entry{
	constants.ReferralStateCreated:    {badge: BadgeInfo, labels: labels("已创建", "已建立", "Created")},
	constants.ReferralStateAttributed: {badge: BadgePrimary, labels: labels("已归因", "已歸因", "Attributed")},
	constants.ReferralStateQualified:  {badge: BadgeWarning, labels: labels("已达标", "已達標", "Qualified")},
	constants.ReferralStateRewarded:   {badge: BadgeSuccess, labels: labels("已发奖", "已發獎", "Rewarded")},
	constants.ReferralStateRevoked:    {badge: BadgeDanger, labels: labels("已撤销", "已撤銷", "Revoked")},
}

// Valid 是否为合法推荐状态
func (s ReferralState) Valid() bool {
	_, ok := referralStateTable[string(s)]
	return ok
}

// Terminal 是否为终态
func (s ReferralState) Terminal() bool {
	return s == ReferralRewarded || s == ReferralRevoked
}

// ReferralStates 返回全部推荐状态
func ReferralStates() []ReferralState {
	return []ReferralState{ReferralCreated, ReferralAttributed, ReferralQualified, ReferralRewarded, ReferralRevoked}
}

// Display 返回展示信息
func (s ReferralState) Display(locale string) Display {
	return lookup(referralStateTable, string(s), locale)
}

// RewardState 奖励状态
type RewardState string

const (
	RewardPending   RewardState = constants.RewardStatePending
	RewardGranted   RewardState = constants.RewardStateGranted
	RewardCancelled RewardState = constants.RewardStateCancelled
)

var rewardStateTable = map[string]entry{
	constants.RewardStatePending:   {badge: BadgeWarning, labels: labels("待发放", "待發放", "Pending")},
	constants.RewardStateGranted:   {badge: BadgeSuccess, labels: labels("已发放", "已發放", "Granted")},
	constants.RewardStateCancelled: {badge: BadgeDanger, labels: labels("已取消", "已取消", "Cancelled")},
}

// Valid 是否为合法奖励状态
func (s RewardState) Valid() bool {
	_, ok := rewardStateTable[string(s)]
	return ok
}

// Terminal 是否为终态
func (s RewardState) Terminal() bool {
	return s == RewardGranted || s == RewardCancelled
}

// RewardStates 返回全部奖励状态
func RewardStates() []RewardState {
	return []RewardState{RewardPending, RewardGranted, RewardCancelled}
}

// Display 返回展示信息
func (s RewardState) Display(locale string) Display {
	return lookup(rewardStateTable, string(s), locale)
}

// Describe 按枚举类别与编码返回展示信息，供展示层统一调用
func Describe(kind, code, locale string) (Display, bool) {
	var table map[string]entry
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "attribution":
		table = attributionTable
	case "beneficiary":
		table = beneficiaryTable
	case "decision":
		table = decisionTable
	case "direction":
		table = directionTable
	case "referral_state":
		table = referralStateTable
	case "reward_state":
		table = rewardStateTable
	default:
		return Display{Code: code, Label: code, Badge: BadgeInfo}, false
	}
	_, ok := table[strings.ToUpper(strings.TrimSpace(code))]
	return lookup(table, code, locale), ok
}
