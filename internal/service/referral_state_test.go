package service

import (
	"testing"

	"github.com/referral-rewards/internal/constants"
	"github.com/referral-rewards/internal/enums"
	"github.com/referral-rewards/internal/repository"
)

func referralListAll() repository.ReferralListFilter {
	return repository.ReferralListFilter{Page: 1, PageSize: 20}
}

func TestCanTransitReferral(t *testing.T) {
	allowed := map[string]bool{
		constants.ReferralStateCreated + ">" + constants.ReferralStateAttributed:   true,
		constants.ReferralStateCreated + ">" + constants.ReferralStateRevoked:      true,
		constants.ReferralStateAttributed + ">" + constants.ReferralStateQualified: true,
		constants.ReferralStateAttributed + ">" + constants.ReferralStateRevoked:   true,
		constants.ReferralStateQualified + ">" + constants.ReferralStateRewarded:   true,
		constants.ReferralStateQualified + ">" + constants.ReferralStateRevoked:    true,
	}
	for _, from := range enums.ReferralStates() {
		for _, to := range enums.ReferralStates() {
			want := allowed[string(from)+">"+string(to)]
			if got := CanTransitReferral(string(from), string(to)); got != want {
				t.Fatalf("CanTransitReferral(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
	if CanTransitReferral("attributed", "qualified") != true {
		t.Fatalf("transition check should ignore case")
	}
}

func TestTerminalStatesHaveNoTransitions(t *testing.T) {
	for _, state := range enums.ReferralStates() {
		if !state.Terminal() {
			continue
		}
		for _, to := range enums.ReferralStates() {
			if CanTransitReferral(string(state), string(to)) {
				t.Fatalf("terminal state %s must not transit to %s", state, to)
			}
		}
	}
}
