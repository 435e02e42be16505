package models

import (
	"time"

	"gorm.io/datatypes"
)

// Reward 奖励发放表
type Reward struct {
	ID              uint              `gorm:"primarykey" json:"id"`                                      // 主键
	CampaignID      uint              `gorm:"not null;index" json:"campaign_id"`                         // 活动ID
	ReferralID      uint              `gorm:"not null;index" json:"referral_id"`                         // 推荐ID
	Beneficiary     string            `gorm:"type:varchar(16);not null" json:"beneficiary"`              // 受益方
	BeneficiaryType string            `gorm:"type:varchar(32);not null" json:"beneficiary_type"`         // 受益人类型
	BeneficiaryID   string            `gorm:"type:varchar(128);not null;index" json:"beneficiary_id"`    // 受益人标识
	RewardType      string            `gorm:"type:varchar(32);not null" json:"reward_type"`              // 奖励类型
	Spec            datatypes.JSONMap `gorm:"type:json" json:"spec,omitempty"`                           // 发放参数
	Amount          Money             `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`       // 奖励金额
	Currency        string            `gorm:"type:varchar(3);not null" json:"currency"`                  // 币种
	State           string            `gorm:"type:varchar(20);not null;index" json:"state"`              // 状态
	IdemKey         string            `gorm:"type:varchar(64);uniqueIndex;not null" json:"idem_key"`     // 幂等键
	ExternalID      string            `gorm:"type:varchar(128)" json:"external_id"`                      // 外部发放单号
	FailReason      string            `gorm:"type:varchar(255)" json:"fail_reason"`                      // 失败原因
	RevokeReason    string            `gorm:"type:varchar(255)" json:"revoke_reason"`                    // 冲正原因
	Attempts        int               `gorm:"not null;default:0" json:"attempts"`                        // 发放尝试次数
	BudgetReserved  bool              `gorm:"not null;default:false" json:"budget_reserved"`             // 是否已占用活动预算
	GrantedAt       *time.Time        `json:"granted_at,omitempty"`                                      // 发放时间
	RevokedAt       *time.Time        `json:"revoked_at,omitempty"`                                      // 取消/冲正时间
	CreatedAt       time.Time         `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt       time.Time         `gorm:"index" json:"updated_at"`                                   // 更新时间
}

// TableName 指定表名
func (Reward) TableName() string {
	return "rewards"
}

// BeneficiaryParty 返回受益人身份
func (r *Reward) BeneficiaryParty() Party {
	return NewParty(r.BeneficiaryType, r.BeneficiaryID)
}
