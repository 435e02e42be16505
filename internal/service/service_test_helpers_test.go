package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/referral-rewards/internal/constants"
	"github.com/referral-rewards/internal/grant"
	"github.com/referral-rewards/internal/models"
	"github.com/referral-rewards/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testBaseTime = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fakeGranter 按顺序消费预设错误，nil 表示发放成功
type fakeGranter struct {
	mu    sync.Mutex
	calls int
	keys  []string
	errs  []error
	delay time.Duration
}

func (g *fakeGranter) Grant(ctx context.Context, req grant.Request) (grant.Result, error) {
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.keys = append(g.keys, req.IdemKey)
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return grant.Result{}, err
		}
	}
	return grant.Result{ExternalID: fmt.Sprintf("ext-%d", g.calls)}, nil
}

func (g *fakeGranter) failNext(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs = append(g.errs, errs...)
}

func (g *fakeGranter) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type serviceTestEnv struct {
	db           *gorm.DB
	clock        *testClock
	granter      *fakeGranter
	referralRepo *repository.GormReferralRepository
	rewardRepo   *repository.GormRewardRepository
	idemRepo     *repository.GormIdempotencyRepository
	campaigns    *CampaignService
	ledger       *LedgerService
	guard        *IdempotencyGuard
	rewards      *RewardService
	referrals    *ReferralService
}

func openServiceTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
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
	return db
}

func setupServiceTest(t *testing.T) *serviceTestEnv {
	t.Helper()
	db := openServiceTestDB(t, "service_test")
	clock := newTestClock(testBaseTime)
	granter := &fakeGranter{}

	referralSettings := ReferralSettings{
		IdempotencyWait: 2 * time.Second,
		IdempotencyPoll: 5 * time.Millisecond,
	}
	env := &serviceTestEnv{
		db:           db,
		clock:        clock,
		granter:      granter,
		referralRepo: repository.NewReferralRepository(db),
		rewardRepo:   repository.NewRewardRepository(db),
		idemRepo:     repository.NewIdempotencyRepository(db),
	}
	env.campaigns = NewCampaignService(repository.NewCampaignRepository(db), nil, nil, referralSettings).WithClock(clock.Now)
	env.ledger = NewLedgerService(repository.NewLedgerRepository(db)).WithClock(clock.Now)
	env.guard = NewIdempotencyGuard(env.idemRepo, referralSettings)
	env.rewards = NewRewardService(env.referralRepo, env.rewardRepo, env.campaigns, env.ledger, env.guard, granter, RewardSettings{
		GrantTimeout: time.Second,
	}).WithClock(clock.Now)
	env.referrals = NewReferralService(env.referralRepo, env.campaigns, env.rewards, nil, referralSettings).WithClock(clock.Now)
	return env
}

func defaultCampaignInput() CampaignInput {
	return CampaignInput{
		Name:              "spring invite",
		WindowDays:        30,
		AttributionModel:  constants.AttributionFirst,
		BlockSelfReferral: true,
		Currency:          "CNY",
		Rules: []models.RewardRule{
			{Beneficiary: constants.BeneficiaryReferrer, RewardType: constants.RewardTypeCash, Amount: models.MustMoney("10.00")},
			{Beneficiary: constants.BeneficiaryReferee, RewardType: constants.RewardTypeCash, Amount: models.MustMoney("5.00")},
		},
	}
}

func createTestCampaign(t *testing.T, env *serviceTestEnv, mutate func(*CampaignInput)) *models.Campaign {
	t.Helper()
	input := defaultCampaignInput()
	if mutate != nil {
		mutate(&input)
	}
	campaign, err := env.campaigns.Create(context.Background(), SystemOperator(), input)
	if err != nil {
		t.Fatalf("create campaign failed: %v", err)
	}
	return campaign
}

func testUser(id string) models.Party {
	return models.NewParty(constants.PartyTypeUser, id)
}

func attributeTestReferral(t *testing.T, env *serviceTestEnv, campaignID uint, referrer, referee models.Party) *models.Referral {
	t.Helper()
	ctx := context.Background()
	token, err := env.referrals.IssueToken(ctx, campaignID, referrer, 0)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	referral, err := env.referrals.Attribute(ctx, AttributeInput{Token: token.Token, Referee: referee})
	if err != nil {
		t.Fatalf("attribute failed: %v", err)
	}
	return referral
}

func qualifyTestReferral(t *testing.T, env *serviceTestEnv, referralID uint) *QualifyResult {
	t.Helper()
	result, err := env.referrals.Qualify(context.Background(), QualifyInput{
		ReferralID: referralID,
		Decision:   constants.DecisionQualified,
		Reason:     "first_order_paid",
	})
	if err != nil {
		t.Fatalf("qualify failed: %v", err)
	}
	return result
}
