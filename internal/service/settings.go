package service

import "time"

const (
	defaultTokenTTL             = 30 * 24 * time.Hour
	defaultCampaignCacheTTL     = 5 * time.Minute
	defaultIdempotencyLease     = 30 * time.Second
	defaultIdempotencyWait      = 5 * time.Second
	defaultIdempotencyPoll      = 50 * time.Millisecond
	defaultGrantTimeout         = 10 * time.Second
	defaultConflictRetryLimit   = 3
	defaultPendingSweepInterval = 5 * time.Minute
	defaultPendingSweepBatch    = 100
)

// ReferralSettings 推荐与幂等相关配置
type ReferralSettings struct {
	TokenTTL         time.Duration
	CampaignCacheTTL time.Duration
	IdempotencyLease time.Duration
	IdempotencyWait  time.Duration
	IdempotencyPoll  time.Duration
}

// RewardSettings 发奖相关配置
type RewardSettings struct {
	GrantTimeout       time.Duration
	ConflictRetryLimit int
	SweepInterval      time.Duration
	SweepBatchSize     int
}

// Normalize 填充默认值
func (s ReferralSettings) Normalize() ReferralSettings {
	if s.TokenTTL <= 0 {
		s.TokenTTL = defaultTokenTTL
	}
	if s.CampaignCacheTTL <= 0 {
		s.CampaignCacheTTL = defaultCampaignCacheTTL
	}
	if s.IdempotencyLease <= 0 {
		s.IdempotencyLease = defaultIdempotencyLease
	}
	if s.IdempotencyWait <= 0 {
		s.IdempotencyWait = defaultIdempotencyWait
	}
	if s.IdempotencyPoll <= 0 {
		s.IdempotencyPoll = defaultIdempotencyPoll
	}
	return s
}

// Normalize 填充默认值
func (s RewardSettings) Normalize() RewardSettings {
	if s.GrantTimeout <= 0 {
		s.GrantTimeout = defaultGrantTimeout
	}
	if s.ConflictRetryLimit <= 0 {
		s.ConflictRetryLimit = defaultConflictRetryLimit
	}
	if s.SweepInterval <= 0 {
		s.SweepInterval = defaultPendingSweepInterval
	}
	if s.SweepBatchSize <= 0 {
		s.SweepBatchSize = defaultPendingSweepBatch
	}
	return s
}

// Clock 时间来源，测试中可替换
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

func (c Clock) now() time.Time {
	if c == nil {
		return systemClock()
	}
	return c().UTC()
}
