package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/referral-rewards/internal/logger"
	"github.com/referral-rewards/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IdempotencyGuard 幂等执行守卫
// (scope, key) 的唯一索引决定唯一执行者；结果仅在成功后记录，记录后不再变更。
type IdempotencyGuard struct {
	repo  repository.IdempotencyRepository
	lease time.Duration
	wait  time.Duration
	poll  time.Duration
	clock Clock
}

// NewIdempotencyGuard 创建幂等守卫
func NewIdempotencyGuard(repo repository.IdempotencyRepository, settings ReferralSettings) *IdempotencyGuard {
	settings = settings.Normalize()
	return &IdempotencyGuard{
		repo:  repo,
		lease: settings.IdempotencyLease,
		wait:  settings.IdempotencyWait,
		poll:  settings.IdempotencyPoll,
	}
}

// WithClock 替换时间来源
func (g *IdempotencyGuard) WithClock(clock Clock) *IdempotencyGuard {
	g.clock = clock
	return g
}

// RunOnce 对 (scope, key) 至多执行一次 op
// 返回值依次为：结果、是否为重放、错误。op 失败时释放占位，后续调用会重新执行。
func RunOnce[T any](ctx context.Context, g *IdempotencyGuard, scope, key string, op func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T
	owner, recorded, err := g.acquire(ctx, scope, key)
	if err != nil {
		return zero, false, err
	}
	if recorded != nil {
		return decodeRecorded[T](scope, key, recorded)
	}

	value, err := op(ctx)
	if err != nil {
		g.release(scope, key, owner)
		return zero, false, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		g.release(scope, key, owner)
		return zero, false, fmt.Errorf("encode idempotent result failed: %w", err)
	}
	ok, err := g.repo.Complete(scope, key, owner, raw, g.clock.now())
	if err != nil {
		logger.Errorw("idempotency_record_failed", "scope", scope, "key", key, "error", err)
		return value, false, err
	}
	if !ok {
		// 租约已被其他执行者接管
		row, getErr := g.repo.Get(scope, key)
		if getErr == nil && row.Completed() {
			logger.Warnw("idempotency_result_superseded", "scope", scope, "key", key)
			return decodeRecorded[T](scope, key, row.ResultJSON)
		}
		logger.Warnw("idempotency_ownership_lost", "scope", scope, "key", key)
	}
	return value, false, nil
}

// RunOnceTx 与 RunOnce 相同，但 op 的写入与结果记录在同一事务内提交
func RunOnceTx[T any](ctx context.Context, g *IdempotencyGuard, scope, key string, op func(ctx context.Context, tx *gorm.DB) (T, error)) (T, bool, error) {
	var zero T
	owner, recorded, err := g.acquire(ctx, scope, key)
	if err != nil {
		return zero, false, err
	}
	if recorded != nil {
		return decodeRecorded[T](scope, key, recorded)
	}

	var value T
	err = g.repo.Transaction(func(tx *gorm.DB) error {
		v, err := op(ctx, tx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode idempotent result failed: %w", err)
		}
		ok, err := g.repo.WithTx(tx).Complete(scope, key, owner, raw, g.clock.now())
		if err != nil {
			return err
		}
		if !ok {
			return IdempotencyInFlight(scope, key)
		}
		value = v
		return nil
	})
	if err != nil {
		g.release(scope, key, owner)
		if errors.Is(err, ErrIdempotencyInFlight) {
			row, getErr := g.repo.Get(scope, key)
			if getErr == nil && row.Completed() {
				return decodeRecorded[T](scope, key, row.ResultJSON)
			}
		}
		return zero, false, err
	}
	return value, false, nil
}

// acquire 获取执行权；若已有记录结果则返回结果原文
func (g *IdempotencyGuard) acquire(ctx context.Context, scope, key string) (string, []byte, error) {
	owner := uuid.NewString()
	deadline := g.clock.now().Add(g.wait)
	for {
		now := g.clock.now()
		err := g.repo.Claim(scope, key, owner, now.Add(g.lease), now)
		if err == nil {
			return owner, nil, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return "", nil, err
		}

		row, err := g.repo.Get(scope, key)
		if err != nil {
			return "", nil, err
		}
		if row == nil {
			// 占位刚被释放，立即重试插入
			continue
		}
		if row.Completed() {
			return "", row.ResultJSON, nil
		}
		if row.LeaseUntil.Before(now) {
			ok, err := g.repo.Takeover(scope, key, owner, now.Add(g.lease), now)
			if err != nil {
				return "", nil, err
			}
			if ok {
				logger.Warnw("idempotency_lease_taken_over", "scope", scope, "key", key, "previous_owner", row.Owner)
				return owner, nil, nil
			}
			continue
		}
		if !now.Before(deadline) {
			return "", nil, IdempotencyInFlight(scope, key)
		}

		timer := time.NewTimer(g.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (g *IdempotencyGuard) release(scope, key, owner string) {
	if err := g.repo.Release(scope, key, owner); err != nil {
		logger.Warnw("idempotency_release_failed", "scope", scope, "key", key, "error", err)
	}
}

func decodeRecorded[T any](scope, key string, raw []byte) (T, bool, error) {
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, true, fmt.Errorf("decode idempotent result %s/%s failed: %w", scope, key, err)
	}
	return value, true, nil
}
