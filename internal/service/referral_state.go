package service

import (
	"strings"

	"github.com/referral-rewards/internal/constants"
)

var referralTransitions = map[string]map[string]bool{
	constants.ReferralStateCreated: {
		constants.ReferralStateAttributed: true,
		constants.ReferralStateRevoked:    true,
	},
	constants.ReferralStateAttributed: {
		constants.ReferralStateQualified: true,
		constants.ReferralStateRevoked:   true,
	},
	constants.ReferralStateQualified: {
		constants.ReferralStateRewarded: true,
		constants.ReferralStateRevoked:  true,
	},
}

// CanTransitReferral 判断推荐状态能否从 from 流转到 to
// REWARDED 与 REVOKED 为终态，不允许任何流转。
func CanTransitReferral(from, to string) bool {
	next, ok := referralTransitions[strings.ToUpper(strings.TrimSpace(from))]
	if !ok {
		return false
	}
	return next[strings.ToUpper(strings.TrimSpace(to))]
}

// referralRevocableStates 可被撤销的状态
func referralRevocableStates() []string {
	return []string{
		constants.ReferralStateCreated,
		constants.ReferralStateAttributed,
		constants.ReferralStateQualified,
	}
}
