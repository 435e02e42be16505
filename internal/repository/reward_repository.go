package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/referral-rewards/internal/constants"
	"github.com/referral-rewards/internal/models"

	"gorm.io/gorm"
)

// RewardRepository 奖励数据访问接口
type RewardRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) RewardRepository

	Create(reward *models.Reward) error
	GetByID(id uint) (*models.Reward, error)
	GetByIdemKey(idemKey string) (*models.Reward, error)
	ListByReferral(referralID uint) ([]models.Reward, error)
	List(filter RewardListFilter) ([]models.Reward, int64, error)
	ListPendingBefore(before time.Time, limit int) ([]models.Reward, error)
	TransitState(id uint, fromState string, updates map[string]interface{}) (bool, error)
	TouchAttempt(id uint, fromState string, now time.Time) (bool, error)
	UpdateFields(id uint, updates map[string]interface{}) error
}

// GormRewardRepository GORM 奖励仓储
type GormRewardRepository struct {
	db *gorm.DB
}

// NewRewardRepository 创建奖励仓储
func NewRewardRepository(db *gorm.DB) *GormRewardRepository {
	return &GormRewardRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRewardRepository) WithTx(tx *gorm.DB) RewardRepository {
	if tx == nil {
		return r
	}
	return &GormRewardRepository{db: tx}
}

// Transaction 执行事务
func (r *GormRewardRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建奖励，幂等键冲突时返回 ErrDuplicate
func (r *GormRewardRepository) Create(reward *models.Reward) error {
	return mapWriteError(r.db.Create(reward).Error)
}

// GetByID 按ID获取奖励
func (r *GormRewardRepository) GetByID(id uint) (*models.Reward, error) {
	if id == 0 {
		return nil, nil
	}
	var reward models.Reward
	if err := r.db.First(&reward, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reward, nil
}

// GetByIdemKey 按幂等键获取奖励
func (r *GormRewardRepository) GetByIdemKey(idemKey string) (*models.Reward, error) {
	idemKey = strings.TrimSpace(idemKey)
	if idemKey == "" {
		return nil, nil
	}
	var reward models.Reward
	result := r.db.Where("idem_key = ?", idemKey).Limit(1).Find(&reward)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &reward, nil
}

// ListByReferral 获取推荐下的全部奖励
func (r *GormRewardRepository) ListByReferral(referralID uint) ([]models.Reward, error) {
	if referralID == 0 {
		return []models.Reward{}, nil
	}
	var rows []models.Reward
	if err := r.db.Where("referral_id = ?", referralID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// List 查询奖励列表
func (r *GormRewardRepository) List(filter RewardListFilter) ([]models.Reward, int64, error) {
	query := r.db.Model(&models.Reward{})
	if filter.CampaignID != 0 {
		query = query.Where("campaign_id = ?", filter.CampaignID)
	}
	if filter.ReferralID != 0 {
		query = query.Where("referral_id = ?", filter.ReferralID)
	}
	if v := strings.TrimSpace(filter.BeneficiaryID); v != "" {
		query = query.Where("beneficiary_id = ?", v)
	}
	if len(filter.States) > 0 {
		query = query.Where("state IN ?", filter.States)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = query.Scopes(paginate(filter.Page, filter.PageSize))

	var rows []models.Reward
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListPendingBefore 查询最后更新早于 before 的待发放奖励
func (r *GormRewardRepository) ListPendingBefore(before time.Time, limit int) ([]models.Reward, error) {
	query := r.db.Where("state = ? AND updated_at < ?", constants.RewardStatePending, before).Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Reward
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TransitState 条件更新奖励状态（乐观并发），返回是否命中
func (r *GormRewardRepository) TransitState(id uint, fromState string, updates map[string]interface{}) (bool, error) {
	if id == 0 || len(updates) == 0 {
		return false, nil
	}
	result := r.db.Model(&models.Reward{}).
		Where("id = ? AND state = ?", id, fromState).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TouchAttempt 累加发放尝试次数，仅对仍处于 fromState 的奖励生效
func (r *GormRewardRepository) TouchAttempt(id uint, fromState string, now time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.Model(&models.Reward{}).
		Where("id = ? AND state = ?", id, fromState).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateFields 按字段更新奖励（不涉及状态）
func (r *GormRewardRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	if id == 0 || len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Reward{}).Where("id = ?", id).Updates(updates).Error
}
