package models

import "time"

// LedgerEntry 奖励账本流水（只追加）
type LedgerEntry struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                // 主键
	RewardID  uint      `gorm:"not null;index" json:"reward_id"`                     // 奖励ID
	Direction string    `gorm:"type:varchar(8);not null" json:"direction"`           // 方向 PLUS/MINUS
	Amount    Money     `gorm:"type:decimal(20,2);not null" json:"amount"`           // 金额（恒为正）
	Currency  string    `gorm:"type:varchar(3);not null" json:"currency"`            // 币种
	Reason    string    `gorm:"type:varchar(64);not null" json:"reason"`             // 记账原因
	CreatedAt time.Time `gorm:"index" json:"created_at"`                             // 创建时间
}

// TableName 指定表名
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
