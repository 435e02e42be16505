package models

import (
	"time"

	"gorm.io/datatypes"
)

// IdempotencyKey 幂等执行记录
// 说明：(scope, idem_key) 唯一索引作为并发执行的闸门，result_json 仅在成功后写入。
type IdempotencyKey struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	Scope       string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_idempotency_scope_key,priority:1" json:"scope"`
	Key         string         `gorm:"column:idem_key;type:varchar(128);not null;uniqueIndex:idx_idempotency_scope_key,priority:2" json:"key"`
	ResultJSON  datatypes.JSON `gorm:"type:json" json:"result,omitempty"`
	Owner       string         `gorm:"type:varchar(64);not null;default:''" json:"owner"`
	LeaseUntil  time.Time      `gorm:"index" json:"lease_until"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TableName 指定表名
func (IdempotencyKey) TableName() string {
	return "idempotency_keys"
}

// Completed 是否已记录结果
func (k *IdempotencyKey) Completed() bool {
	return k != nil && len(k.ResultJSON) > 0
}
