package models

import (
	"fmt"
	"strings"
)

// Party 参与方身份（类型 + 标识）
type Party struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// NewParty 创建并规范化参与方
func NewParty(partyType, id string) Party {
	return Party{
		Type: strings.ToLower(strings.TrimSpace(partyType)),
		ID:   strings.TrimSpace(id),
	}
}

// IsZero 是否为空身份
func (p Party) IsZero() bool {
	return strings.TrimSpace(p.Type) == "" || strings.TrimSpace(p.ID) == ""
}

// Equal 判断是否为同一参与方
func (p Party) Equal(other Party) bool {
	a, b := NewParty(p.Type, p.ID), NewParty(other.Type, other.ID)
	return a.Type == b.Type && a.ID == b.ID
}

// Key 返回参与方的复合键
func (p Party) Key() string {
	n := NewParty(p.Type, p.ID)
	return n.Type + ":" + n.ID
}

// String 实现 fmt.Stringer
func (p Party) String() string {
	return fmt.Sprintf("%s:%s", p.Type, p.ID)
}
