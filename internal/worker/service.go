package worker

import (
	"context"
	"errors"
	"time"

	"github.com/referral-rewards/internal/config"
	"github.com/referral-rewards/internal/logger"
	"github.com/referral-rewards/internal/queue"
	"github.com/referral-rewards/internal/service"

	"github.com/go-co-op/gocron/v2"
	"github.com/hibiken/asynq"
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
	sweeper  *Sweeper
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer, sweeper *Sweeper) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	serverCfg.Logger = asynqLogger{}
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
		sweeper:  sweeper,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.sweeper != nil {
		if err := s.sweeper.Start(ctx); err != nil {
			return err
		}
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	if s.sweeper != nil {
		if err := s.sweeper.Stop(ctx); err != nil {
			logger.Warnw("worker_sweeper_stop_failed", "error", err)
		}
	}
	s.server.Shutdown()
	return nil
}

// PendingSweeper 补偿扫描所需的发奖能力
type PendingSweeper interface {
	SweepPending(ctx context.Context) (service.SweepReport, error)
}

// Sweeper 定时补偿扫描：重试滞留的 QUALIFIED 推荐与 PENDING 奖励
type Sweeper struct {
	target    PendingSweeper
	interval  time.Duration
	scheduler gocron.Scheduler
}

// NewSweeper 创建补偿扫描器
func NewSweeper(target PendingSweeper, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{target: target, interval: interval}
}

// Start 注册定时任务并启动调度器，启动时立即执行一轮
func (s *Sweeper) Start(ctx context.Context) error {
	if s == nil || s.target == nil {
		return errors.New("sweeper not initialized")
	}
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.RunOnce(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return err
	}
	s.scheduler = scheduler
	scheduler.Start()
	logger.Infow("worker_sweeper_started", "interval", s.interval.String())
	return nil
}

// RunOnce 执行一轮扫描
func (s *Sweeper) RunOnce(ctx context.Context) {
	report, err := s.target.SweepPending(ctx)
	if err != nil {
		logger.Warnw("worker_sweep_pending_failed", "error", err)
		return
	}
	if report.ReferralsIssued > 0 || report.RewardsRetried > 0 || report.Failed > 0 {
		logger.Infow("worker_sweep_pending_done",
			"referrals_issued", report.ReferralsIssued,
			"rewards_retried", report.RewardsRetried,
			"failed", report.Failed,
		)
	}
}

// Stop 停止调度器
func (s *Sweeper) Stop(ctx context.Context) error {
	if s == nil || s.scheduler == nil {
		return nil
	}
	_ = ctx
	return s.scheduler.Shutdown()
}

// asynqLogger 将队列框架日志转入 zap
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { logger.S().Debug(args...) }
func (asynqLogger) Info(args ...interface{})  { logger.S().Info(args...) }
func (asynqLogger) Warn(args ...interface{})  { logger.S().Warn(args...) }
func (asynqLogger) Error(args ...interface{}) { logger.S().Error(args...) }
func (asynqLogger) Fatal(args ...interface{}) { logger.S().Fatal(args...) }
