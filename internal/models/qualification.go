package models

import (
	"time"

	"gorm.io/datatypes"
)

// Qualification 资格判定记录（只追加）
type Qualification struct {
	ID         uint              `gorm:"primarykey" json:"id"`                          // 主键
	ReferralID uint              `gorm:"not null;index" json:"referral_id"`             // 推荐ID
	Decision   string            `gorm:"type:varchar(16);not null" json:"decision"`     // 判定结果
	Reason     string            `gorm:"type:varchar(255)" json:"reason"`               // 判定原因
	Evidence   datatypes.JSONMap `gorm:"type:json" json:"evidence,omitempty"`           // 判定依据
	OccurredAt time.Time         `gorm:"not null" json:"occurred_at"`                   // 事件发生时间
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`                       // 创建时间
}

// TableName 指定表名
func (Qualification) TableName() string {
	return "qualifications"
}
