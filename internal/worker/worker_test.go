package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/referral-rewards/internal/config"
	"github.com/referral-rewards/internal/constants"
	"github.com/referral-rewards/internal/models"
	"github.com/referral-rewards/internal/provider"
	"github.com/referral-rewards/internal/queue"
	"github.com/referral-rewards/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

func setupWorkerTest(t *testing.T) *Consumer {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := &config.Config{
		Referral: config.ReferralConfig{IdempotencyWaitMS: 2000, IdempotencyPollMS: 5},
		Reward:   config.RewardConfig{GrantTimeoutSeconds: 1},
	}
	return NewConsumer(provider.NewContainer(cfg, db))
}

func createWorkerCampaign(t *testing.T, c *Consumer) *models.Campaign {
	t.Helper()
	campaign, err := c.CampaignService.Create(context.Background(), service.SystemOperator(), service.CampaignInput{
		Name:              "worker invite",
		WindowDays:        30,
		AttributionModel:  constants.AttributionFirst,
		BlockSelfReferral: true,
		Currency:          "CNY",
		Rules: []models.RewardRule{
			{Beneficiary: constants.BeneficiaryReferrer, RewardType: constants.RewardTypePoints, Amount: models.MustMoney("100")},
		},
	})
	if err != nil {
		t.Fatalf("create campaign failed: %v", err)
	}
	return campaign
}

func newPayloadTask(t *testing.T, taskType string, payload interface{}) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	return asynq.NewTask(taskType, body)
}

func TestConsumerAttributeQualifyIssue(t *testing.T) {
	c := setupWorkerTest(t)
	ctx := context.Background()
	campaign := createWorkerCampaign(t, c)
	token, err := c.ReferralService.IssueToken(ctx, campaign.ID, models.NewParty(constants.PartyTypeUser, "alice"), 0)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}

	attribute := newPayloadTask(t, queue.TaskReferralAttribute, queue.ReferralAttributePayload{
		Token:   token.Token,
		Referee: queue.PartyPayload{Type: constants.PartyTypeUser, ID: "bob"},
	})
	if err := c.handleReferralAttribute(ctx, attribute); err != nil {
		t.Fatalf("attribute handler failed: %v", err)
	}
	referral, err := c.ReferralRepo.FindOpenByPair(campaign.ID, models.NewParty(constants.PartyTypeUser, "bob"), models.NewParty(constants.PartyTypeUser, "alice"))
	if err != nil || referral == nil {
		t.Fatalf("attributed referral missing: %v", err)
	}
	if referral.Source != constants.ReferralSourceQueue {
		t.Fatalf("source want queue, got %s", referral.Source)
	}

	qualify := newPayloadTask(t, queue.TaskReferralQualify, queue.ReferralQualifyPayload{
		ReferralID: referral.ID,
		Decision:   constants.DecisionQualified,
		Reason:     "first_order_paid",
	})
	if err := c.handleReferralQualify(ctx, qualify); err != nil {
		t.Fatalf("qualify handler failed: %v", err)
	}
	// 队列未启用时就地发奖
	stored, err := c.ReferralRepo.GetByID(referral.ID)
	if err != nil || stored == nil {
		t.Fatalf("reload referral failed: %v", err)
	}
	if stored.State != constants.ReferralStateRewarded {
		t.Fatalf("state want REWARDED, got %s", stored.State)
	}

	again := newPayloadTask(t, queue.TaskRewardIssue, queue.RewardIssuePayload{ReferralID: referral.ID})
	if err := c.handleRewardIssue(ctx, again); err != nil {
		t.Fatalf("reissue should be idempotent: %v", err)
	}
	rewards, err := c.RewardRepo.ListByReferral(referral.ID)
	if err != nil {
		t.Fatalf("list rewards failed: %v", err)
	}
	if len(rewards) != 1 || rewards[0].State != constants.RewardStateGranted {
		t.Fatalf("expected one granted reward, got %+v", rewards)
	}
}

func TestConsumerDropsPreconditionFailures(t *testing.T) {
	c := setupWorkerTest(t)
	ctx := context.Background()

	attribute := newPayloadTask(t, queue.TaskReferralAttribute, queue.ReferralAttributePayload{
		Token:   "NOT-A-TOKEN",
		Referee: queue.PartyPayload{Type: constants.PartyTypeUser, ID: "bob"},
	})
	if err := c.handleReferralAttribute(ctx, attribute); err != nil {
		t.Fatalf("invalid token should be dropped, got %v", err)
	}
	revoke := newPayloadTask(t, queue.TaskReferralRevoke, queue.ReferralRevokePayload{ReferralID: 404})
	if err := c.handleReferralRevoke(ctx, revoke); err != nil {
		t.Fatalf("missing referral should be dropped, got %v", err)
	}
	broken := asynq.NewTask(queue.TaskRewardIssue, []byte("{"))
	err := c.handleRewardIssue(ctx, broken)
	if err == nil || !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload should skip retry, got %v", err)
	}
}

func TestShouldDrop(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"not_found", service.ReferralNotFound(1), true},
		{"precondition", service.ReferralStateInvalid(1, "CREATED", "QUALIFIED"), true},
		{"invalid_argument", service.QualificationInvalid("decision"), true},
		{"rejected", service.GrantRejected(1, errors.New("blocked")), true},
		{"conflict", service.ConcurrentModification(1, 0), false},
		{"in_flight", service.IdempotencyInFlight("reward-creation", "k"), false},
		{"retryable", service.GrantRetryable(1, errors.New("503")), false},
		{"unknown", errors.New("db down"), false},
	}
	for _, tc := range cases {
		if got := shouldDrop(tc.err); got != tc.want {
			t.Fatalf("%s: shouldDrop=%v want %v", tc.name, got, tc.want)
		}
	}
}

type countingSweeper struct {
	calls int
}

func (s *countingSweeper) SweepPending(ctx context.Context) (service.SweepReport, error) {
	s.calls++
	return service.SweepReport{RewardsRetried: 1}, nil
}

func TestSweeperRunOnce(t *testing.T) {
	target := &countingSweeper{}
	sweeper := NewSweeper(target, 0)
	if sweeper.interval != 5*time.Minute {
		t.Fatalf("default interval want 5m, got %s", sweeper.interval)
	}
	sweeper.RunOnce(context.Background())
	if target.calls != 1 {
		t.Fatalf("expected one sweep, got %d", target.calls)
	}
	if err := sweeper.Stop(context.Background()); err != nil {
		t.Fatalf("stop without start should be noop: %v", err)
	}
}
