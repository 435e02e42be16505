package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/referral-rewards/internal/constants"
	"github.com/referral-rewards/internal/models"
)

func newTestReward(idemKey string) *models.Reward {
	return &models.Reward{
		CampaignID:      1,
		ReferralID:      10,
		Beneficiary:     constants.BeneficiaryReferrer,
		BeneficiaryType: constants.PartyTypeUser,
		BeneficiaryID:   "alice",
		RewardType:      constants.RewardTypeCash,
		Amount:          models.MustMoney("10.00"),
		Currency:        constants.CurrencyDefault,
		State:           constants.RewardStatePending,
		IdemKey:         idemKey,
	}
}

func TestRewardRepositoryIdemKeyUnique(t *testing.T) {
	repo := NewRewardRepository(openRepositoryTestDB(t, "reward_repo_unique"))
	if err := repo.Create(newTestReward("k1")); err != nil {
		t.Fatalf("create reward failed: %v", err)
	}
	if err := repo.Create(newTestReward("k1")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	got, err := repo.GetByIdemKey("k1")
	if err != nil || got == nil {
		t.Fatalf("get by idem key failed: got=%v err=%v", got, err)
	}
	if !got.Amount.Equal(models.MustMoney("10").Decimal) {
		t.Fatalf("amount mismatch: %s", got.Amount.String())
	}
}

func TestRewardRepositoryOptimisticTransition(t *testing.T) {
	repo := NewRewardRepository(openRepositoryTestDB(t, "reward_repo_transit"))
	reward := newTestReward("k2")
	if err := repo.Create(reward); err != nil {
		t.Fatalf("create reward failed: %v", err)
	}
	now := time.Now().UTC()
	ok, err := repo.TransitState(reward.ID, constants.RewardStatePending, map[string]interface{}{
		"state":      constants.RewardStateGranted,
		"granted_at": now,
	})
	if err != nil || !ok {
		t.Fatalf("first transition should apply: ok=%v err=%v", ok, err)
	}
	ok, err = repo.TransitState(reward.ID, constants.RewardStatePending, map[string]interface{}{
		"state":      constants.RewardStateCancelled,
		"revoked_at": now,
	})
	if err != nil {
		t.Fatalf("second transition error: %v", err)
	}
	if ok {
		t.Fatalf("second transition must lose against the granted state")
	}
	if ok, _ := repo.TouchAttempt(reward.ID, constants.RewardStatePending, now); ok {
		t.Fatalf("touch attempt must not apply to a granted reward")
	}
}

func TestRewardRepositoryListPendingBefore(t *testing.T) {
	db := openRepositoryTestDB(t, "reward_repo_pending")
	repo := NewRewardRepository(db)
	old := newTestReward("old")
	fresh := newTestReward("fresh")
	if err := repo.Create(old); err != nil {
		t.Fatalf("create old failed: %v", err)
	}
	if err := repo.Create(fresh); err != nil {
		t.Fatalf("create fresh failed: %v", err)
	}
	cutoff := time.Now().UTC().Add(-time.Minute)
	if err := db.Model(&models.Reward{}).Where("id = ?", old.ID).UpdateColumn("updated_at", cutoff.Add(-time.Hour)).Error; err != nil {
		t.Fatalf("backdate failed: %v", err)
	}
	rows, err := repo.ListPendingBefore(cutoff, 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != old.ID {
		t.Fatalf("expected only the stale reward, got %+v", rows)
	}
}
