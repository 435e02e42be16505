package models

import "time"

// Referral 推荐关系表
type Referral struct {
	ID           uint       `gorm:"primarykey" json:"id"`                                         // 主键
	CampaignID   uint       `gorm:"not null;index:idx_referral_referee,priority:1" json:"campaign_id"` // 活动ID
	ReferrerType string     `gorm:"type:varchar(32);not null" json:"referrer_type"`               // 推荐人类型
	ReferrerID   string     `gorm:"type:varchar(128);not null;index" json:"referrer_id"`          // 推荐人标识
	RefereeType  string     `gorm:"type:varchar(32);not null;index:idx_referral_referee,priority:2" json:"referee_type"` // 被推荐人类型
	RefereeID    string     `gorm:"type:varchar(128);not null;index:idx_referral_referee,priority:3" json:"referee_id"`  // 被推荐人标识
	Token        string     `gorm:"type:varchar(64);index" json:"token"`                          // 归因令牌
	Source       string     `gorm:"type:varchar(32);not null;default:'link'" json:"source"`       // 来源
	State        string     `gorm:"type:varchar(20);not null;index" json:"state"`                 // 状态
	ActiveKey    *string    `gorm:"type:varchar(400);uniqueIndex" json:"-"`                       // 未撤销唯一键（撤销后置空）
	CreditKey    *string    `gorm:"type:varchar(200);uniqueIndex" json:"-"`                       // 入账唯一键（达标时写入）
	AttributedAt *time.Time `json:"attributed_at,omitempty"`                                      // 归因时间
	QualifiedAt  *time.Time `gorm:"index" json:"qualified_at,omitempty"`                          // 达标时间
	RewardedAt   *time.Time `json:"rewarded_at,omitempty"`                                        // 发奖时间
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`                                         // 撤销时间
	RevokeReason string     `gorm:"type:varchar(255)" json:"revoke_reason"`                       // 撤销原因
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt    time.Time  `json:"updated_at"`                                                   // 更新时间
}

// TableName 指定表名
func (Referral) TableName() string {
	return "referrals"
}

// Referrer 返回推荐人身份
func (r *Referral) Referrer() Party {
	return NewParty(r.ReferrerType, r.ReferrerID)
}

// Referee 返回被推荐人身份
func (r *Referral) Referee() Party {
	return NewParty(r.RefereeType, r.RefereeID)
}
