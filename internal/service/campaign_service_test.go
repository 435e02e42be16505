package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/referral-rewards/internal/constants"
	"github.com/referral-rewards/internal/models"
	"github.com/referral-rewards/internal/repository"
)

type memoryCampaignCache struct {
	mu      sync.Mutex
	items   map[uint]models.Campaign
	hits    int
	deletes int
}

func newMemoryCampaignCache() *memoryCampaignCache {
	return &memoryCampaignCache{items: make(map[uint]models.Campaign)}
}

func (c *memoryCampaignCache) GetCampaign(ctx context.Context, id uint) (*models.Campaign, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if !ok {
		return nil, nil
	}
	c.hits++
	return &item, nil
}

func (c *memoryCampaignCache) SetCampaign(ctx context.Context, campaign *models.Campaign, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[campaign.ID] = *campaign
	return nil
}

func (c *memoryCampaignCache) DeleteCampaign(ctx context.Context, id uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	c.deletes++
	return nil
}

func TestCreateCampaignValidation(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()

	negative := models.MustMoney("-1")
	invalid := []func(*CampaignInput){
		func(in *CampaignInput) { in.Name = "  " },
		func(in *CampaignInput) { in.WindowDays = 0 },
		func(in *CampaignInput) { in.WindowDays = 3651 },
		func(in *CampaignInput) { in.AttributionModel = "MIDDLE" },
		func(in *CampaignInput) { in.Currency = "YUAN" },
		func(in *CampaignInput) { in.BudgetLimit = &negative },
		func(in *CampaignInput) { in.Rules = append(in.Rules, in.Rules[0]) },
		func(in *CampaignInput) { in.Rules[0].Amount = models.MustMoney("0") },
		func(in *CampaignInput) { in.Rules[1].Beneficiary = "FRIEND" },
	}
	for i, mutate := range invalid {
		input := defaultCampaignInput()
		mutate(&input)
		if _, err := env.campaigns.Create(ctx, SystemOperator(), input); !errors.Is(err, ErrCampaignConfigInvalid) {
			t.Fatalf("case %d: expected config invalid, got %v", i, err)
		}
	}

	input := defaultCampaignInput()
	input.AttributionModel = "last"
	input.Currency = "usd"
	input.Rules[0].RewardType = ""
	campaign, err := env.campaigns.Create(ctx, SystemOperator(), input)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if campaign.AttributionModel != constants.AttributionLast || campaign.Currency != "USD" || !campaign.IsActive {
		t.Fatalf("unexpected normalized campaign: %+v", campaign)
	}
	rule, _ := campaign.RuleFor(constants.BeneficiaryReferrer)
	if rule == nil || rule.RewardType != constants.RewardTypeCash {
		t.Fatalf("reward type should default to cash, got %+v", rule)
	}
}

func TestCampaignActivation(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, env, nil)

	if _, err := env.campaigns.SetActive(ctx, SystemOperator(), campaign.ID, false); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if _, err := env.campaigns.GetActive(ctx, campaign.ID); !errors.Is(err, ErrCampaignInactive) {
		t.Fatalf("expected inactive, got %v", err)
	}
	if got, err := env.campaigns.Get(ctx, campaign.ID); err != nil || got.IsActive {
		t.Fatalf("deactivated campaign should still be readable: %+v %v", got, err)
	}
	if _, err := env.campaigns.GetActive(ctx, 404); !errors.Is(err, ErrCampaignNotFound) || KindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIsWithinWindowBoundary(t *testing.T) {
	campaign := &models.Campaign{WindowDays: 30}
	created := testBaseTime
	if !IsWithinWindow(campaign, created, created.Add(10*24*time.Hour)) {
		t.Fatalf("day 10 must be within a 30 day window")
	}
	if !IsWithinWindow(campaign, created, created.Add(30*24*time.Hour)) {
		t.Fatalf("window boundary is inclusive")
	}
	if IsWithinWindow(campaign, created, created.Add(30*24*time.Hour+time.Second)) {
		t.Fatalf("one second past the window must be outside")
	}
	if IsWithinWindow(nil, created, created) {
		t.Fatalf("nil campaign has no window")
	}
}

func TestCampaignCacheReadThroughAndInvalidate(t *testing.T) {
	db := openServiceTestDB(t, "campaign_cache_test")
	cache := newMemoryCampaignCache()
	svc := NewCampaignService(repository.NewCampaignRepository(db), cache, nil, ReferralSettings{})
	ctx := context.Background()

	campaign, err := svc.Create(ctx, SystemOperator(), defaultCampaignInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Get(ctx, campaign.ID); err != nil {
		t.Fatalf("first get failed: %v", err)
	}
	if _, err := svc.Get(ctx, campaign.ID); err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if cache.hits != 1 {
		t.Fatalf("expected second read from cache, hits=%d", cache.hits)
	}

	input := defaultCampaignInput()
	input.WindowDays = 7
	if _, err := svc.UpdateConfig(ctx, SystemOperator(), campaign.ID, input); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if cache.deletes != 1 {
		t.Fatalf("update must invalidate cache, deletes=%d", cache.deletes)
	}
	got, err := svc.Get(ctx, campaign.ID)
	if err != nil {
		t.Fatalf("get after update failed: %v", err)
	}
	if got.WindowDays != 7 {
		t.Fatalf("expected fresh config after invalidation, got window %d", got.WindowDays)
	}
}

func TestCampaignWriteRequiresPermission(t *testing.T) {
	db := openServiceTestDB(t, "campaign_authz_test")
	authorizer := denyAuthorizer{allowed: map[string]bool{"campaign:read": true}}
	svc := NewCampaignService(repository.NewCampaignRepository(db), nil, authorizer, ReferralSettings{})
	ctx := context.Background()

	if _, err := svc.Create(ctx, NewOperator("viewer"), defaultCampaignInput()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, _, err := svc.List(ctx, NewOperator("viewer"), repository.CampaignListFilter{Page: 1, PageSize: 10}); err != nil {
		t.Fatalf("list with read permission failed: %v", err)
	}
	if _, err := svc.Create(ctx, SystemOperator(), defaultCampaignInput()); err != nil {
		t.Fatalf("system operator bypasses authz, got %v", err)
	}
}
