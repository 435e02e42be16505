package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/referral-rewards/internal/constants"
	"github.com/referral-rewards/internal/enums"
	"github.com/referral-rewards/internal/logger"
	"github.com/referral-rewards/internal/models"
	"github.com/referral-rewards/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	campaignMaxWindowDays = 3650
	campaignNameMaxLen    = 120
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// CampaignCache 活动配置缓存
type CampaignCache interface {
	GetCampaign(ctx context.Context, id uint) (*models.Campaign, error)
	SetCampaign(ctx context.Context, campaign *models.Campaign, ttl time.Duration) error
	DeleteCampaign(ctx context.Context, id uint) error
}

// CampaignInput 活动创建/更新输入
type CampaignInput struct {
	Name              string
	WindowDays        int
	AttributionModel  string
	BlockSelfReferral bool
	Currency          string
	BudgetLimit       *models.Money
	Rules             []models.RewardRule
	IsActive          *bool
}

// CampaignService 推荐活动服务
type CampaignService struct {
	repo       repository.CampaignRepository
	cache      CampaignCache
	authorizer Authorizer
	cacheTTL   time.Duration
	clock      Clock
}

// NewCampaignService 创建推荐活动服务
func NewCampaignService(repo repository.CampaignRepository, cache CampaignCache, authorizer Authorizer, settings ReferralSettings) *CampaignService {
	settings = settings.Normalize()
	return &CampaignService{
		repo:       repo,
		cache:      cache,
		authorizer: authorizer,
		cacheTTL:   settings.CampaignCacheTTL,
	}
}

// WithClock 替换时间来源
func (s *CampaignService) WithClock(clock Clock) *CampaignService {
	s.clock = clock
	return s
}

// Create 创建活动
func (s *CampaignService) Create(ctx context.Context, op Operator, input CampaignInput) (*models.Campaign, error) {
	if err := authorize(s.authorizer, op, constants.AuthzObjectCampaign, constants.AuthzActionWrite); err != nil {
		return nil, err
	}
	normalized, err := normalizeCampaignInput(input)
	if err != nil {
		return nil, err
	}
	now := s.clock.now()
	campaign := &models.Campaign{
		Name:              normalized.Name,
		IsActive:          true,
		WindowDays:        normalized.WindowDays,
		AttributionModel:  normalized.AttributionModel,
		BlockSelfReferral: normalized.BlockSelfReferral,
		Currency:          normalized.Currency,
		BudgetLimit:       normalized.BudgetLimit,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if normalized.IsActive != nil {
		campaign.IsActive = *normalized.IsActive
	}
	if err := campaign.SetRules(normalized.Rules); err != nil {
		return nil, err
	}
	if err := s.repo.Create(campaign); err != nil {
		return nil, err
	}
	logger.Infow("campaign_created", "campaign_id", campaign.ID, "operator", op.ID, "attribution_model", campaign.AttributionModel, "window_days", campaign.WindowDays)
	return campaign, nil
}

// UpdateConfig 更新活动配置（不改变启用状态）
func (s *CampaignService) UpdateConfig(ctx context.Context, op Operator, id uint, input CampaignInput) (*models.Campaign, error) {
	if err := authorize(s.authorizer, op, constants.AuthzObjectCampaign, constants.AuthzActionWrite); err != nil {
		return nil, err
	}
	normalized, err := normalizeCampaignInput(input)
	if err != nil {
		return nil, err
	}
	campaign, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, CampaignNotFound(id)
	}
	campaign.Name = normalized.Name
	campaign.WindowDays = normalized.WindowDays
	campaign.AttributionModel = normalized.AttributionModel
	campaign.BlockSelfReferral = normalized.BlockSelfReferral
	campaign.Currency = normalized.Currency
	campaign.BudgetLimit = normalized.BudgetLimit
	campaign.UpdatedAt = s.clock.now()
	if err := campaign.SetRules(normalized.Rules); err != nil {
		return nil, err
	}
	if err := s.repo.Update(campaign); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	logger.Infow("campaign_config_updated", "campaign_id", id, "operator", op.ID)
	return campaign, nil
}

// SetActive 启用或停用活动（活动不会被删除）
func (s *CampaignService) SetActive(ctx context.Context, op Operator, id uint, active bool) (*models.Campaign, error) {
	if err := authorize(s.authorizer, op, constants.AuthzObjectCampaign, constants.AuthzActionWrite); err != nil {
		return nil, err
	}
	campaign, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, CampaignNotFound(id)
	}
	if campaign.IsActive == active {
		return campaign, nil
	}
	now := s.clock.now()
	if err := s.repo.UpdateFields(id, map[string]interface{}{
		"is_active":  active,
		"updated_at": now,
	}); err != nil {
		return nil, err
	}
	campaign.IsActive = active
	campaign.UpdatedAt = now
	s.invalidate(ctx, id)
	logger.Infow("campaign_active_changed", "campaign_id", id, "operator", op.ID, "active", active)
	return campaign, nil
}

// Get 获取活动（不区分启用状态）
func (s *CampaignService) Get(ctx context.Context, id uint) (*models.Campaign, error) {
	if id == 0 {
		return nil, CampaignNotFound(id)
	}
	if s.cache != nil {
		cached, err := s.cache.GetCampaign(ctx, id)
		if err != nil {
			logger.Warnw("campaign_cache_get_failed", "campaign_id", id, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}
	campaign, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, CampaignNotFound(id)
	}
	if s.cache != nil {
		if err := s.cache.SetCampaign(ctx, campaign, s.cacheTTL); err != nil {
			logger.Warnw("campaign_cache_set_failed", "campaign_id", id, "error", err)
		}
	}
	return campaign, nil
}

// GetActive 获取启用中的活动
func (s *CampaignService) GetActive(ctx context.Context, id uint) (*models.Campaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !campaign.IsActive {
		return nil, CampaignInactive(id)
	}
	return campaign, nil
}

// List 查询活动列表
func (s *CampaignService) List(ctx context.Context, op Operator, filter repository.CampaignListFilter) ([]models.Campaign, int64, error) {
	if err := authorize(s.authorizer, op, constants.AuthzObjectCampaign, constants.AuthzActionRead); err != nil {
		return nil, 0, err
	}
	return s.repo.List(filter)
}

// IsWithinWindow 判断推荐创建时间到 now 是否仍在活动归因窗口内（含边界）
func (s *CampaignService) IsWithinWindow(campaign *models.Campaign, referralCreatedAt, now time.Time) bool {
	return IsWithinWindow(campaign, referralCreatedAt, now)
}

// IsWithinWindow 归因窗口判定：now - createTime <= windowDays
func IsWithinWindow(campaign *models.Campaign, referralCreatedAt, now time.Time) bool {
	if campaign == nil || campaign.WindowDays <= 0 {
		return false
	}
	window := time.Duration(campaign.WindowDays) * 24 * time.Hour
	return now.Sub(referralCreatedAt) <= window
}

// ReserveBudgetTx 在活动行锁内占用预算额度
// 占用后超出上限时不写入，返回 false 与当前占用额。
func (s *CampaignService) ReserveBudgetTx(tx *gorm.DB, campaignID uint, amount decimal.Decimal) (bool, decimal.Decimal, error) {
	repo := s.repo.WithTx(tx)
	campaign, err := repo.GetByIDForUpdate(campaignID)
	if err != nil {
		return false, decimal.Zero, err
	}
	if campaign == nil {
		return false, decimal.Zero, CampaignNotFound(campaignID)
	}
	reserved := campaign.BudgetReserved.Decimal
	next := reserved.Add(amount)
	if campaign.BudgetLimit != nil && next.GreaterThan(campaign.BudgetLimit.Decimal) {
		return false, reserved, nil
	}
	if err := repo.UpdateFields(campaign.ID, map[string]interface{}{
		"budget_reserved": models.NewMoneyFromDecimal(next),
	}); err != nil {
		return false, reserved, err
	}
	return true, next, nil
}

// ReleaseBudgetTx 归还预算额度，占用额不低于 0
func (s *CampaignService) ReleaseBudgetTx(tx *gorm.DB, campaignID uint, amount decimal.Decimal) error {
	repo := s.repo.WithTx(tx)
	campaign, err := repo.GetByIDForUpdate(campaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return CampaignNotFound(campaignID)
	}
	next := campaign.BudgetReserved.Decimal.Sub(amount)
	if next.IsNegative() {
		logger.Warnw("campaign_budget_release_underflow", "campaign_id", campaign.ID, "reserved", campaign.BudgetReserved.String(), "amount", amount.StringFixed(2))
		next = decimal.Zero
	}
	return repo.UpdateFields(campaign.ID, map[string]interface{}{
		"budget_reserved": models.NewMoneyFromDecimal(next),
	})
}

func (s *CampaignService) invalidate(ctx context.Context, id uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteCampaign(ctx, id); err != nil {
		logger.Warnw("campaign_cache_invalidate_failed", "campaign_id", id, "error", err)
	}
}

func normalizeCampaignInput(input CampaignInput) (CampaignInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return input, CampaignConfigInvalid("name is required")
	}
	if len([]rune(input.Name)) > campaignNameMaxLen {
		return input, CampaignConfigInvalid("name is too long")
	}
	if input.WindowDays < 1 || input.WindowDays > campaignMaxWindowDays {
		return input, CampaignConfigInvalid(fmt.Sprintf("window days must be in [1, %d]", campaignMaxWindowDays))
	}
	input.AttributionModel = strings.ToUpper(strings.TrimSpace(input.AttributionModel))
	if !enums.Attribution(input.AttributionModel).Valid() {
		return input, CampaignConfigInvalid("attribution model must be FIRST or LAST")
	}
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	if input.Currency == "" {
		input.Currency = constants.CurrencyDefault
	}
	if !currencyPattern.MatchString(input.Currency) {
		return input, CampaignConfigInvalid("currency must be a 3-letter code")
	}
	if input.BudgetLimit != nil {
		if input.BudgetLimit.IsNegative() {
			return input, CampaignConfigInvalid("budget limit must not be negative")
		}
		limit := models.NewMoneyFromDecimal(input.BudgetLimit.Decimal)
		input.BudgetLimit = &limit
	}
	seen := make(map[string]struct{}, len(input.Rules))
	rules := make([]models.RewardRule, 0, len(input.Rules))
	for _, rule := range input.Rules {
		rule.Beneficiary = strings.ToUpper(strings.TrimSpace(rule.Beneficiary))
		if !enums.Beneficiary(rule.Beneficiary).Valid() {
			return input, CampaignConfigInvalid("reward rule beneficiary must be REFERRER or REFEREE")
		}
		if _, dup := seen[rule.Beneficiary]; dup {
			return input, CampaignConfigInvalid("duplicate reward rule for " + rule.Beneficiary)
		}
		seen[rule.Beneficiary] = struct{}{}
		rule.RewardType = strings.ToLower(strings.TrimSpace(rule.RewardType))
		if rule.RewardType == "" {
			rule.RewardType = constants.RewardTypeCash
		}
		if !rule.Amount.IsPositive() {
			return input, CampaignConfigInvalid("reward rule amount must be positive")
		}
		rules = append(rules, rule)
	}
	input.Rules = rules
	return input, nil
}
