package app

import (
	"errors"

	"github.com/referral-rewards/internal/config"
	"github.com/referral-rewards/internal/provider"
	"github.com/referral-rewards/internal/worker"

	"gorm.io/gorm"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, db *gorm.DB, mode string) (*Runner, *provider.Container, error) {
	if cfg == nil {
		return nil, nil, errors.New("config is nil")
	}
	if db == nil {
		return nil, nil, errors.New("db is nil")
	}
	if mode != ModeAll && mode != ModeWorker {
		return nil, nil, errors.New("unsupported mode: " + mode)
	}

	container := provider.NewContainer(cfg, db)

	// 队列消费与补偿扫描同进程运行
	consumer := worker.NewConsumer(container)
	sweeper := worker.NewSweeper(container.RewardService, cfg.Reward.SweepInterval())
	workerService, err := worker.NewService(&cfg.Queue, consumer, sweeper)
	if err != nil {
		container.Close()
		return nil, nil, err
	}

	return NewRunner(workerService), container, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, container, err := BuildRunner(opts.Config, opts.DB, opts.Mode)
	if err != nil {
		return err
	}
	defer container.Close()

	opts.Logger.Infow("app_start", "mode", opts.Mode, "queue_concurrency", opts.Config.Queue.Concurrency)
	return RunWithOptions(runner, opts)
}
