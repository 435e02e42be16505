package repository

import "time"

// CampaignListFilter 查询活动列表的过滤条件
type CampaignListFilter struct {
	Page       int
	PageSize   int
	Search     string
	IsActive   *bool
	OnlyActive bool
}

// ReferralListFilter 查询推荐列表的过滤条件
type ReferralListFilter struct {
	Page         int
	PageSize     int
	CampaignID   uint
	ReferrerType string
	ReferrerID   string
	RefereeType  string
	RefereeID    string
	States       []string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
}

// RewardListFilter 查询奖励列表的过滤条件
type RewardListFilter struct {
	Page          int
	PageSize      int
	CampaignID    uint
	ReferralID    uint
	BeneficiaryID string
	States        []string
}
