package repository

import (
	"github.com/referral-rewards/internal/constants"
	"github.com/referral-rewards/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerRepository 奖励账本数据访问接口（只追加）
type LedgerRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) LedgerRepository

	Create(entry *models.LedgerEntry) error
	ListByReward(rewardID uint) ([]models.LedgerEntry, error)
	SumByReward(rewardID uint) (decimal.Decimal, error)
	SumByCampaign(campaignID uint, currency string) (decimal.Decimal, error)
}

// GormLedgerRepository GORM 账本仓储
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository 创建账本仓储
func NewLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// WithTx 绑定事务
func (r *GormLedgerRepository) WithTx(tx *gorm.DB) LedgerRepository {
	if tx == nil {
		return r
	}
	return &GormLedgerRepository{db: tx}
}

// Transaction 执行事务
func (r *GormLedgerRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 追加账本流水
func (r *GormLedgerRepository) Create(entry *models.LedgerEntry) error {
	return r.db.Create(entry).Error
}

// ListByReward 按时间顺序返回奖励的账本流水
func (r *GormLedgerRepository) ListByReward(rewardID uint) ([]models.LedgerEntry, error) {
	if rewardID == 0 {
		return []models.LedgerEntry{}, nil
	}
	var rows []models.LedgerEntry
	if err := r.db.Where("reward_id = ?", rewardID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SumByReward 计算奖励的带符号余额
func (r *GormLedgerRepository) SumByReward(rewardID uint) (decimal.Decimal, error) {
	if rewardID == 0 {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.Model(&models.LedgerEntry{}).
		Where("reward_id = ?", rewardID).
		Select("COALESCE(SUM("+signedAmountExpr("direction", "amount")+"), 0) AS total", constants.DirectionPlus).
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

// SumByCampaign 计算活动在指定币种下的净支出
func (r *GormLedgerRepository) SumByCampaign(campaignID uint, currency string) (decimal.Decimal, error) {
	if campaignID == 0 {
		return decimal.Zero, nil
	}
	query := r.db.Model(&models.LedgerEntry{}).
		Joins("JOIN rewards ON rewards.id = ledger_entries.reward_id").
		Where("rewards.campaign_id = ?", campaignID)
	if currency != "" {
		query = query.Where("ledger_entries.currency = ?", currency)
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := query.
		Select("COALESCE(SUM("+signedAmountExpr("ledger_entries.direction", "ledger_entries.amount")+"), 0) AS total", constants.DirectionPlus).
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}
