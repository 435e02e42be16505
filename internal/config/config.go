package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/referral-rewards/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Referral ReferralConfig `mapstructure:"referral"`
	Reward   RewardConfig   `mapstructure:"reward"`
	Grant    GrantConfig    `mapstructure:"grant"`
}

// ServerConfig 运行配置
type ServerConfig struct {
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions(service string) logger.Options {
	return logger.Options{
		Level:      c.Level,
		Service:    service,
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// RedisConfig Redis 配置（活动配置缓存）
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	MaxRetry    int            `mapstructure:"max_retry"`
	Queues      map[string]int `mapstructure:"queues"`
}

// ReferralConfig 推荐与幂等配置
type ReferralConfig struct {
	TokenTTLHours           int `mapstructure:"token_ttl_hours"`
	DefaultWindowDays       int `mapstructure:"default_window_days"`
	CampaignCacheTTLSeconds int `mapstructure:"campaign_cache_ttl_seconds"`
	IdempotencyLeaseSeconds int `mapstructure:"idempotency_lease_seconds"`
	IdempotencyWaitMS       int `mapstructure:"idempotency_wait_ms"`
	IdempotencyPollMS       int `mapstructure:"idempotency_poll_ms"`
}

// TokenTTL 归因令牌有效期
func (c ReferralConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// CampaignCacheTTL 活动缓存有效期
func (c ReferralConfig) CampaignCacheTTL() time.Duration {
	return time.Duration(c.CampaignCacheTTLSeconds) * time.Second
}

// IdempotencyLease 幂等占位租约
func (c ReferralConfig) IdempotencyLease() time.Duration {
	return time.Duration(c.IdempotencyLeaseSeconds) * time.Second
}

// IdempotencyWait 等待在途执行的最长时间
func (c ReferralConfig) IdempotencyWait() time.Duration {
	return time.Duration(c.IdempotencyWaitMS) * time.Millisecond
}

// IdempotencyPoll 等待期间的轮询间隔
func (c ReferralConfig) IdempotencyPoll() time.Duration {
	return time.Duration(c.IdempotencyPollMS) * time.Millisecond
}

// RewardConfig 发奖配置
type RewardConfig struct {
	GrantTimeoutSeconds  int `mapstructure:"grant_timeout_seconds"`
	ConflictRetryLimit   int `mapstructure:"conflict_retry_limit"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
	SweepBatchSize       int `mapstructure:"sweep_batch_size"`
}

// GrantTimeout 单次外部发放超时
func (c RewardConfig) GrantTimeout() time.Duration {
	return time.Duration(c.GrantTimeoutSeconds) * time.Second
}

// SweepInterval 补偿扫描间隔
func (c RewardConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// GrantConfig 外部发放协作方配置（endpoint 为空时使用本地发放）
type GrantConfig struct {
	Endpoint       string  `mapstructure:"endpoint"`
	APIKey         string  `mapstructure:"api_key"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	Burst          int     `mapstructure:"burst"`
}

// Load 从 .env 与 config.yml 加载配置
func Load() *Config {
	// .env 仅用于本地开发，不存在时忽略
	if err := godotenv.Load(); err == nil {
		logger.Infow("dotenv_loaded")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../")
	v.AddConfigPath("./etc")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // referral.token_ttl_hours -> REFERRAL_TOKEN_TTL_HOURS

	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.level", "")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "referral.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/referral.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "mgm")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.max_retry", 10)
	v.SetDefault("queue.queues", map[string]int{
		"critical": 6,
		"default":  3,
	})
	v.SetDefault("referral.token_ttl_hours", 720)
	v.SetDefault("referral.default_window_days", 30)
	v.SetDefault("referral.campaign_cache_ttl_seconds", 300)
	v.SetDefault("referral.idempotency_lease_seconds", 30)
	v.SetDefault("referral.idempotency_wait_ms", 5000)
	v.SetDefault("referral.idempotency_poll_ms", 50)
	v.SetDefault("reward.grant_timeout_seconds", 10)
	v.SetDefault("reward.conflict_retry_limit", 3)
	v.SetDefault("reward.sweep_interval_seconds", 300)
	v.SetDefault("reward.sweep_batch_size", 100)
	v.SetDefault("grant.endpoint", "")
	v.SetDefault("grant.api_key", "")
	v.SetDefault("grant.timeout_seconds", 10)
	v.SetDefault("grant.rate_limit", 20)
	v.SetDefault("grant.burst", 5)
}
