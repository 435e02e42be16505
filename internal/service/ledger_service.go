package service

import (
	"context"
	"strings"

	"github.com/referral-rewards/internal/enums"
	"github.com/referral-rewards/internal/models"
	"github.com/referral-rewards/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PostInput 记账输入
type PostInput struct {
	RewardID  uint
	Direction string
	Amount    models.Money
	Currency  string
	Reason    string
}

// LedgerService 奖励账本服务（只追加）
type LedgerService struct {
	repo  repository.LedgerRepository
	clock Clock
}

// NewLedgerService 创建账本服务
func NewLedgerService(repo repository.LedgerRepository) *LedgerService {
	return &LedgerService{repo: repo}
}

// WithClock 替换时间来源
func (s *LedgerService) WithClock(clock Clock) *LedgerService {
	s.clock = clock
	return s
}

// Post 追加一条账本流水
func (s *LedgerService) Post(ctx context.Context, input PostInput) (*models.LedgerEntry, error) {
	return s.post(s.repo, input)
}

// PostTx 在给定事务内追加账本流水
func (s *LedgerService) PostTx(tx *gorm.DB, input PostInput) (*models.LedgerEntry, error) {
	return s.post(s.repo.WithTx(tx), input)
}

func (s *LedgerService) post(repo repository.LedgerRepository, input PostInput) (*models.LedgerEntry, error) {
	entry, err := s.buildEntry(input)
	if err != nil {
		return nil, err
	}
	if err := repo.Create(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *LedgerService) buildEntry(input PostInput) (*models.LedgerEntry, error) {
	if input.RewardID == 0 {
		return nil, LedgerEntryInvalid(0, "reward id is required")
	}
	direction := strings.ToUpper(strings.TrimSpace(input.Direction))
	if !enums.Direction(direction).Valid() {
		return nil, LedgerEntryInvalid(input.RewardID, "direction must be PLUS or MINUS")
	}
	if !input.Amount.IsPositive() {
		return nil, LedgerEntryInvalid(input.RewardID, "amount must be positive")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if !currencyPattern.MatchString(currency) {
		return nil, LedgerEntryInvalid(input.RewardID, "currency must be a 3-letter code")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, LedgerEntryInvalid(input.RewardID, "reason is required")
	}
	return &models.LedgerEntry{
		RewardID:  input.RewardID,
		Direction: direction,
		Amount:    models.NewMoneyFromDecimal(input.Amount.Decimal),
		Currency:  currency,
		Reason:    reason,
		CreatedAt: s.clock.now(),
	}, nil
}

// Balance 计算奖励余额：Σ(PLUS ? +amount : -amount)，不做截断
func (s *LedgerService) Balance(ctx context.Context, rewardID uint) (decimal.Decimal, error) {
	return s.repo.SumByReward(rewardID)
}

// BalanceTx 在事务内计算奖励余额
func (s *LedgerService) BalanceTx(tx *gorm.DB, rewardID uint) (decimal.Decimal, error) {
	return s.repo.WithTx(tx).SumByReward(rewardID)
}

// ListEntries 返回奖励的全部账本流水
func (s *LedgerService) ListEntries(ctx context.Context, rewardID uint) ([]models.LedgerEntry, error) {
	return s.repo.ListByReward(rewardID)
}

// SumByCampaign 计算活动净支出
func (s *LedgerService) SumByCampaign(ctx context.Context, campaignID uint, currency string) (decimal.Decimal, error) {
	return s.repo.SumByCampaign(campaignID, strings.ToUpper(strings.TrimSpace(currency)))
}
