package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/referral-rewards/internal/constants"
	"github.com/referral-rewards/internal/models"

	"gorm.io/gorm"
)

// ReferralRepository 推荐关系数据访问接口（含归因令牌与资格判定记录）
type ReferralRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) ReferralRepository

	CreateToken(token *models.AttributionToken) error
	GetToken(token string) (*models.AttributionToken, error)

	Create(referral *models.Referral) error
	GetByID(id uint) (*models.Referral, error)
	FindOpenByPair(campaignID uint, referee, referrer models.Party) (*models.Referral, error)
	FindCreditedByReferee(campaignID uint, referee models.Party) (*models.Referral, error)
	ListOpenByReferee(campaignID uint, referee models.Party) ([]models.Referral, error)
	TransitState(id uint, fromStates []string, updates map[string]interface{}) (bool, error)
	List(filter ReferralListFilter) ([]models.Referral, int64, error)
	ListByStateBefore(state string, before time.Time, limit int) ([]models.Referral, error)

	CreateQualification(q *models.Qualification) error
	ListQualifications(referralID uint) ([]models.Qualification, error)
}

// GormReferralRepository GORM 推荐关系仓储
type GormReferralRepository struct {
	db *gorm.DB
}

// NewReferralRepository 创建推荐关系仓储
func NewReferralRepository(db *gorm.DB) *GormReferralRepository {
	return &GormReferralRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReferralRepository) WithTx(tx *gorm.DB) ReferralRepository {
	if tx == nil {
		return r
	}
	return &GormReferralRepository{db: tx}
}

// Transaction 执行事务
func (r *GormReferralRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// CreateToken 创建归因令牌
func (r *GormReferralRepository) CreateToken(token *models.AttributionToken) error {
	return mapWriteError(r.db.Create(token).Error)
}

// GetToken 按令牌值获取归因令牌
func (r *GormReferralRepository) GetToken(token string) (*models.AttributionToken, error) {
	normalized := strings.ToUpper(strings.TrimSpace(token))
	if normalized == "" {
		return nil, nil
	}
	var row models.AttributionToken
	if err := r.db.Where("token = ?", normalized).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Create 创建推荐关系，未撤销唯一键冲突时返回 ErrDuplicate
func (r *GormReferralRepository) Create(referral *models.Referral) error {
	return mapWriteError(r.db.Create(referral).Error)
}

// GetByID 按ID获取推荐关系
func (r *GormReferralRepository) GetByID(id uint) (*models.Referral, error) {
	if id == 0 {
		return nil, nil
	}
	var referral models.Referral
	if err := r.db.First(&referral, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

// FindOpenByPair 查询同一活动下同一推荐人与被推荐人之间未撤销的推荐
func (r *GormReferralRepository) FindOpenByPair(campaignID uint, referee, referrer models.Party) (*models.Referral, error) {
	var referral models.Referral
	result := r.db.Where("campaign_id = ? AND referee_type = ? AND referee_id = ? AND referrer_type = ? AND referrer_id = ? AND state <> ?",
		campaignID, referee.Type, referee.ID, referrer.Type, referrer.ID, constants.ReferralStateRevoked,
	).Order("id asc").Limit(1).Find(&referral)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &referral, nil
}

// FindCreditedByReferee 查询被推荐人在活动中已达标或已发奖的推荐
func (r *GormReferralRepository) FindCreditedByReferee(campaignID uint, referee models.Party) (*models.Referral, error) {
	var referral models.Referral
	result := r.db.Where("campaign_id = ? AND referee_type = ? AND referee_id = ? AND state IN ?",
		campaignID, referee.Type, referee.ID,
		[]string{constants.ReferralStateQualified, constants.ReferralStateRewarded},
	).Order("id asc").Limit(1).Find(&referral)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &referral, nil
}

// ListOpenByReferee 按归因先后返回被推荐人在活动中所有未撤销的推荐
func (r *GormReferralRepository) ListOpenByReferee(campaignID uint, referee models.Party) ([]models.Referral, error) {
	var rows []models.Referral
	if err := r.db.Where("campaign_id = ? AND referee_type = ? AND referee_id = ? AND state <> ?",
		campaignID, referee.Type, referee.ID, constants.ReferralStateRevoked,
	).Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TransitState 条件更新推荐状态，仅当当前状态处于 fromStates 时生效
func (r *GormReferralRepository) TransitState(id uint, fromStates []string, updates map[string]interface{}) (bool, error) {
	if id == 0 || len(fromStates) == 0 || len(updates) == 0 {
		return false, nil
	}
	result := r.db.Model(&models.Referral{}).
		Where("id = ? AND state IN ?", id, fromStates).
		Updates(updates)
	if result.Error != nil {
		return false, mapWriteError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// List 查询推荐列表
func (r *GormReferralRepository) List(filter ReferralListFilter) ([]models.Referral, int64, error) {
	query := r.db.Model(&models.Referral{})
	if filter.CampaignID != 0 {
		query = query.Where("campaign_id = ?", filter.CampaignID)
	}
	if v := strings.TrimSpace(filter.ReferrerType); v != "" {
		query = query.Where("referrer_type = ?", v)
	}
	if v := strings.TrimSpace(filter.ReferrerID); v != "" {
		query = query.Where("referrer_id = ?", v)
	}
	if v := strings.TrimSpace(filter.RefereeType); v != "" {
		query = query.Where("referee_type = ?", v)
	}
	if v := strings.TrimSpace(filter.RefereeID); v != "" {
		query = query.Where("referee_id = ?", v)
	}
	if len(filter.States) > 0 {
		query = query.Where("state IN ?", filter.States)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = query.Scopes(paginate(filter.Page, filter.PageSize))

	var rows []models.Referral
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListByStateBefore 查询指定状态且最后更新早于 before 的推荐，用于补偿扫描
func (r *GormReferralRepository) ListByStateBefore(state string, before time.Time, limit int) ([]models.Referral, error) {
	query := r.db.Where("state = ? AND updated_at < ?", state, before).Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Referral
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateQualification 追加资格判定记录
func (r *GormReferralRepository) CreateQualification(q *models.Qualification) error {
	return r.db.Create(q).Error
}

// ListQualifications 按时间顺序返回推荐的资格判定记录
func (r *GormReferralRepository) ListQualifications(referralID uint) ([]models.Qualification, error) {
	if referralID == 0 {
		return []models.Qualification{}, nil
	}
	var rows []models.Qualification
	if err := r.db.Where("referral_id = ?", referralID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
