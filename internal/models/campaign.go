package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// RewardRule 活动奖励规则（每个受益方至多一条）
type RewardRule struct {
	Beneficiary string                 `json:"beneficiary"`    // 受益方 REFERRER/REFEREE
	RewardType  string                 `json:"reward_type"`    // 奖励类型 cash/points/coupon
	Amount      Money                  `json:"amount"`         // 奖励面值
	Spec        map[string]interface{} `json:"spec,omitempty"` // 发放参数
}

// Campaign 推荐活动表
type Campaign struct {
	ID                uint           `gorm:"primarykey" json:"id"`                                       // 主键
	Name              string         `gorm:"type:varchar(120);not null" json:"name"`                     // 活动名称
	IsActive          bool           `gorm:"not null;default:true;index" json:"is_active"`               // 是否启用
	WindowDays        int            `gorm:"not null" json:"window_days"`                                // 归因窗口（天）
	AttributionModel  string         `gorm:"type:varchar(16);not null" json:"attribution_model"`         // 归因模型 FIRST/LAST
	BlockSelfReferral bool           `gorm:"not null;default:true" json:"block_self_referral"`           // 是否禁止自推荐
	Currency          string         `gorm:"type:varchar(3);not null;default:'CNY'" json:"currency"`     // 奖励币种
	BudgetLimit       *Money         `gorm:"type:decimal(20,2)" json:"budget_limit,omitempty"`           // 预算上限（空表示不限）
	BudgetReserved    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"budget_reserved"` // 已占用预算（发放中 + 净支出）
	RewardRules       datatypes.JSON `gorm:"type:json" json:"reward_rules"`                              // 奖励规则
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt         time.Time      `json:"updated_at"`                                                 // 更新时间
}

// TableName 指定表名
func (Campaign) TableName() string {
	return "campaigns"
}

// Rules 解析奖励规则
func (c *Campaign) Rules() ([]RewardRule, error) {
	if c == nil || len(c.RewardRules) == 0 {
		return nil, nil
	}
	var rules []RewardRule
	if err := json.Unmarshal(c.RewardRules, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// SetRules 写入奖励规则
func (c *Campaign) SetRules(rules []RewardRule) error {
	if rules == nil {
		rules = []RewardRule{}
	}
	raw, err := json.Marshal(rules)
	if err != nil {
		return err
	}
	c.RewardRules = datatypes.JSON(raw)
	return nil
}

// RuleFor 返回指定受益方的规则
func (c *Campaign) RuleFor(beneficiary string) (*RewardRule, error) {
	rules, err := c.Rules()
	if err != nil {
		return nil, err
	}
	for i := range rules {
		if rules[i].Beneficiary == beneficiary {
			return &rules[i], nil
		}
	}
	return nil, nil
}
