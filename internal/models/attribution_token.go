package models

import "time"

// AttributionToken 推荐链接令牌
type AttributionToken struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                  // 主键
	Token        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"token"`    // 令牌（唯一且不可猜测）
	CampaignID   uint      `gorm:"not null;index" json:"campaign_id"`                     // 活动ID
	ReferrerType string    `gorm:"type:varchar(32);not null" json:"referrer_type"`        // 推荐人类型
	ReferrerID   string    `gorm:"type:varchar(128);not null;index" json:"referrer_id"`   // 推荐人标识
	ExpireAt     time.Time `gorm:"not null;index" json:"expire_at"`                       // 过期时间
	CreatedAt    time.Time `json:"created_at"`                                            // 创建时间
}

// TableName 指定表名
func (AttributionToken) TableName() string {
	return "attribution_tokens"
}

// Referrer 返回推荐人身份
func (t *AttributionToken) Referrer() Party {
	return NewParty(t.ReferrerType, t.ReferrerID)
}

// IsExpired 在给定时间点是否已过期
func (t *AttributionToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpireAt)
}
