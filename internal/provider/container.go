package provider

import (
	"context"
	"time"

	"github.com/referral-rewards/internal/authz"
	"github.com/referral-rewards/internal/cache"
	"github.com/referral-rewards/internal/config"
	"github.com/referral-rewards/internal/grant"
	"github.com/referral-rewards/internal/logger"
	"github.com/referral-rewards/internal/queue"
	"github.com/referral-rewards/internal/repository"
	"github.com/referral-rewards/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client
	CacheStore  *cache.Store

	// Repositories
	CampaignRepo    repository.CampaignRepository
	ReferralRepo    repository.ReferralRepository
	RewardRepo      repository.RewardRepository
	LedgerRepo      repository.LedgerRepository
	IdempotencyRepo repository.IdempotencyRepository

	// Services
	AuthzService     *authz.Service
	Granter          grant.Granter
	CampaignService  *service.CampaignService
	LedgerService    *service.LedgerService
	IdempotencyGuard *service.IdempotencyGuard
	RewardService    *service.RewardService
	ReferralService  *service.ReferralService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config, db *gorm.DB) *Container {
	// 初始化缓存
	store := cache.NewStore(&cfg.Redis)
	if store.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := store.Ping(ctx); err != nil {
			logger.Warnw("provider_init_redis_failed", "error", err)
		}
		cancel()
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		DB:          db,
		QueueClient: queueClient,
		CacheStore:  store,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	c.CampaignRepo = repository.NewCampaignRepository(c.DB)
	c.ReferralRepo = repository.NewReferralRepository(c.DB)
	c.RewardRepo = repository.NewRewardRepository(c.DB)
	c.LedgerRepo = repository.NewLedgerRepository(c.DB)
	c.IdempotencyRepo = repository.NewIdempotencyRepository(c.DB)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.Granter = buildGranter(c.Config.Grant)

	referralSettings := ReferralSettings(c.Config.Referral)
	rewardSettings := RewardSettings(c.Config.Reward)

	c.CampaignService = service.NewCampaignService(c.CampaignRepo, cache.NewCampaignCache(c.CacheStore), c.AuthzService, referralSettings)
	c.LedgerService = service.NewLedgerService(c.LedgerRepo)
	c.IdempotencyGuard = service.NewIdempotencyGuard(c.IdempotencyRepo, referralSettings)
	c.RewardService = service.NewRewardService(c.ReferralRepo, c.RewardRepo, c.CampaignService, c.LedgerService, c.IdempotencyGuard, c.Granter, rewardSettings)
	c.ReferralService = service.NewReferralService(c.ReferralRepo, c.CampaignService, c.RewardService, c.AuthzService, referralSettings)
}

// Close 释放外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_client_failed", "error", err)
	}
	if err := c.CacheStore.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}

func buildGranter(cfg config.GrantConfig) grant.Granter {
	if cfg.Endpoint == "" {
		logger.Infow("provider_grant_noop", "reason", "endpoint_empty")
		return grant.NewNoopGranter()
	}
	granter, err := grant.NewHTTPGranter(grant.Config{
		Endpoint:  cfg.Endpoint,
		APIKey:    cfg.APIKey,
		Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	})
	if err != nil {
		logger.Errorw("provider_init_grant_failed", "endpoint", cfg.Endpoint, "error", err)
		panic(err)
	}
	return granter
}

// ReferralSettings 配置转换为推荐服务参数
func ReferralSettings(cfg config.ReferralConfig) service.ReferralSettings {
	return service.ReferralSettings{
		TokenTTL:         cfg.TokenTTL(),
		CampaignCacheTTL: cfg.CampaignCacheTTL(),
		IdempotencyLease: cfg.IdempotencyLease(),
		IdempotencyWait:  cfg.IdempotencyWait(),
		IdempotencyPoll:  cfg.IdempotencyPoll(),
	}
}

// RewardSettings 配置转换为发奖服务参数
func RewardSettings(cfg config.RewardConfig) service.RewardSettings {
	return service.RewardSettings{
		GrantTimeout:       cfg.GrantTimeout(),
		ConflictRetryLimit: cfg.ConflictRetryLimit,
		SweepInterval:      cfg.SweepInterval(),
		SweepBatchSize:     cfg.SweepBatchSize,
	}
}
