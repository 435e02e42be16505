package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/referral-rewards/internal/constants"
	"github.com/referral-rewards/internal/enums"
	"github.com/referral-rewards/internal/logger"
	"github.com/referral-rewards/internal/models"
	"github.com/referral-rewards/internal/provider"
	"github.com/referral-rewards/internal/queue"
	"github.com/referral-rewards/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskReferralAttribute, c.handleReferralAttribute)
	mux.HandleFunc(queue.TaskReferralQualify, c.handleReferralQualify)
	mux.HandleFunc(queue.TaskRewardIssue, c.handleRewardIssue)
	mux.HandleFunc(queue.TaskReferralRevoke, c.handleReferralRevoke)
}

func (c *Consumer) handleReferralAttribute(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_referral_attribute_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ReferralAttributePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_referral_attribute_unmarshal_failed", "error", err)
		return skipRetry(err)
	}
	source := payload.Source
	if source == "" {
		source = constants.ReferralSourceQueue
	}
	referral, err := c.ReferralService.Attribute(ctx, service.AttributeInput{
		Token:     payload.Token,
		Referee:   models.NewParty(payload.Referee.Type, payload.Referee.ID),
		Source:    source,
		OccurTime: payload.OccurTime,
	})
	if err != nil {
		return settle("worker_referral_attribute", err, "referee", payload.Referee.ID)
	}
	logger.Debugw("worker_referral_attribute_done", "referral_id", referral.ID, "campaign_id", referral.CampaignID)
	return nil
}

func (c *Consumer) handleReferralQualify(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_referral_qualify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ReferralQualifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_referral_qualify_unmarshal_failed", "error", err)
		return skipRetry(err)
	}
	if payload.ReferralID == 0 {
		logger.Debugw("worker_referral_qualify_skip_invalid_payload", "referral_id", payload.ReferralID)
		return nil
	}
	result, err := c.ReferralService.Qualify(ctx, service.QualifyInput{
		ReferralID: payload.ReferralID,
		Decision:   payload.Decision,
		Reason:     payload.Reason,
		Evidence:   payload.Evidence,
		OccurTime:  payload.OccurTime,
	})
	if err != nil {
		return settle("worker_referral_qualify", err, "referral_id", payload.ReferralID)
	}
	if result.Referral == nil || result.Referral.State != string(enums.ReferralQualified) {
		return nil
	}
	return c.dispatchRewardIssue(ctx, result.Referral.ID)
}

// dispatchRewardIssue 队列可用时异步发奖，否则就地执行
func (c *Consumer) dispatchRewardIssue(ctx context.Context, referralID uint) error {
	if c.QueueClient.Enabled() {
		if err := c.QueueClient.EnqueueRewardIssue(queue.RewardIssuePayload{ReferralID: referralID}); err != nil {
			logger.Warnw("worker_reward_issue_enqueue_failed", "referral_id", referralID, "error", err)
			return err
		}
		return nil
	}
	return c.issueRewards(ctx, referralID)
}

func (c *Consumer) handleRewardIssue(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_reward_issue_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.RewardIssuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_reward_issue_unmarshal_failed", "error", err)
		return skipRetry(err)
	}
	if payload.ReferralID == 0 {
		logger.Debugw("worker_reward_issue_skip_invalid_payload", "referral_id", payload.ReferralID)
		return nil
	}
	return c.issueRewards(ctx, payload.ReferralID)
}

func (c *Consumer) issueRewards(ctx context.Context, referralID uint) error {
	rewards, err := c.RewardService.IssueRewards(ctx, referralID)
	if err != nil {
		return settle("worker_reward_issue", err, "referral_id", referralID)
	}
	logger.Debugw("worker_reward_issue_done", "referral_id", referralID, "reward_count", len(rewards))
	return nil
}

func (c *Consumer) handleReferralRevoke(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_referral_revoke_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ReferralRevokePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_referral_revoke_unmarshal_failed", "error", err)
		return skipRetry(err)
	}
	if payload.ReferralID == 0 {
		logger.Debugw("worker_referral_revoke_skip_invalid_payload", "referral_id", payload.ReferralID)
		return nil
	}
	result, err := c.ReferralService.Revoke(ctx, service.SystemOperator(), payload.ReferralID, payload.Reason)
	if err != nil {
		return settle("worker_referral_revoke", err, "referral_id", payload.ReferralID)
	}
	logger.Debugw("worker_referral_revoke_done", "referral_id", payload.ReferralID, "reversal_count", len(result.Reversals))
	return nil
}

// settle 按错误类别决定任务去向：业务前置条件不满足时丢弃，冲突与可重试失败交给队列重试
func settle(event string, err error, kv ...interface{}) error {
	fields := append(kv, "error", err, "kind", string(service.KindOf(err)))
	if shouldDrop(err) {
		logger.Infow(event+"_dropped", fields...)
		return nil
	}
	logger.Warnw(event+"_failed", fields...)
	return err
}

func shouldDrop(err error) bool {
	if err == nil {
		return true
	}
	if service.IsRetryable(err) {
		return false
	}
	switch service.KindOf(err) {
	case service.KindNotFound, service.KindPrecondition, service.KindInvalidArgument, service.KindExternal:
		return true
	}
	return false
}

func skipRetry(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(err, asynq.SkipRetry)
}
