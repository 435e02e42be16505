package repository

import (
	"time"

	"github.com/referral-rewards/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IdempotencyRepository 幂等记录数据访问接口
type IdempotencyRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) IdempotencyRepository

	Claim(scope, key, owner string, leaseUntil, now time.Time) error
	Get(scope, key string) (*models.IdempotencyKey, error)
	Takeover(scope, key, owner string, leaseUntil, now time.Time) (bool, error)
	Complete(scope, key, owner string, result []byte, now time.Time) (bool, error)
	Release(scope, key, owner string) error
}

// GormIdempotencyRepository GORM 幂等记录仓储
type GormIdempotencyRepository struct {
	db *gorm.DB
}

// NewIdempotencyRepository 创建幂等记录仓储
func NewIdempotencyRepository(db *gorm.DB) *GormIdempotencyRepository {
	return &GormIdempotencyRepository{db: db}
}

// WithTx 绑定事务
func (r *GormIdempotencyRepository) WithTx(tx *gorm.DB) IdempotencyRepository {
	if tx == nil {
		return r
	}
	return &GormIdempotencyRepository{db: tx}
}

// Transaction 执行事务
func (r *GormIdempotencyRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Claim 插入占位记录，(scope, key) 已存在时返回 ErrDuplicate
func (r *GormIdempotencyRepository) Claim(scope, key, owner string, leaseUntil, now time.Time) error {
	row := &models.IdempotencyKey{
		Scope:      scope,
		Key:        key,
		Owner:      owner,
		LeaseUntil: leaseUntil,
		CreatedAt:  now,
	}
	return mapWriteError(r.db.Create(row).Error)
}

// Get 获取幂等记录
func (r *GormIdempotencyRepository) Get(scope, key string) (*models.IdempotencyKey, error) {
	var row models.IdempotencyKey
	result := r.db.Where("scope = ? AND idem_key = ?", scope, key).Limit(1).Find(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

// Takeover 接管租约已过期且尚未完成的占位记录
func (r *GormIdempotencyRepository) Takeover(scope, key, owner string, leaseUntil, now time.Time) (bool, error) {
	result := r.db.Model(&models.IdempotencyKey{}).
		Where("scope = ? AND idem_key = ? AND result_json IS NULL AND lease_until < ?", scope, key, now).
		Updates(map[string]interface{}{
			"owner":       owner,
			"lease_until": leaseUntil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Complete 写入执行结果，仅当记录未完成且仍由 owner 持有时生效
func (r *GormIdempotencyRepository) Complete(scope, key, owner string, result []byte, now time.Time) (bool, error) {
	res := r.db.Model(&models.IdempotencyKey{}).
		Where("scope = ? AND idem_key = ? AND result_json IS NULL AND owner = ?", scope, key, owner).
		Updates(map[string]interface{}{
			"result_json":  datatypes.JSON(result),
			"completed_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Release 删除未完成的占位记录，使后续调用可以重新执行
func (r *GormIdempotencyRepository) Release(scope, key, owner string) error {
	return r.db.
		Where("scope = ? AND idem_key = ? AND result_json IS NULL AND owner = ?", scope, key, owner).
		Delete(&models.IdempotencyKey{}).Error
}
