package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/referral-rewards/internal/constants"
	"github.com/referral-rewards/internal/enums"
	"github.com/referral-rewards/internal/grant"
	"github.com/referral-rewards/internal/logger"
	"github.com/referral-rewards/internal/models"
	"github.com/referral-rewards/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
)

// RewardIdemKey 计算奖励幂等键：blake2b-256(活动ID, 推荐ID, 受益方)
func RewardIdemKey(campaignID, referralID uint, beneficiary string) string {
	sum := blake2b.Sum256([]byte(fmt.Sprintf("%d|%d|%s", campaignID, referralID, strings.ToUpper(strings.TrimSpace(beneficiary)))))
	return hex.EncodeToString(sum[:])
}

// issueOutcome 发奖幂等记录的结果
type issueOutcome struct {
	RewardID   uint   `json:"reward_id"`
	State      string `json:"state"`
	ExternalID string `json:"external_id"`
	Rejected   string `json:"rejected,omitempty"`
}

// reversalOutcome 冲正幂等记录的结果
type reversalOutcome struct {
	RewardID uint   `json:"reward_id"`
	EntryID  uint   `json:"entry_id"`
	Amount   string `json:"amount"`
}

// SweepReport 补偿扫描结果
type SweepReport struct {
	ReferralsIssued int
	RewardsRetried  int
	Failed          int
}

// RewardService 奖励发放引擎，账本流水的唯一写入方
type RewardService struct {
	referralRepo repository.ReferralRepository
	rewardRepo   repository.RewardRepository
	campaigns    *CampaignService
	ledger       *LedgerService
	guard        *IdempotencyGuard
	granter      grant.Granter
	settings     RewardSettings
	clock        Clock
}

// NewRewardService 创建奖励发放引擎
func NewRewardService(
	referralRepo repository.ReferralRepository,
	rewardRepo repository.RewardRepository,
	campaigns *CampaignService,
	ledger *LedgerService,
	guard *IdempotencyGuard,
	granter grant.Granter,
	settings RewardSettings,
) *RewardService {
	if granter == nil {
		granter = grant.NewNoopGranter()
	}
	return &RewardService{
		referralRepo: referralRepo,
		rewardRepo:   rewardRepo,
		campaigns:    campaigns,
		ledger:       ledger,
		guard:        guard,
		granter:      granter,
		settings:     settings.Normalize(),
	}
}

// WithClock 替换时间来源
func (s *RewardService) WithClock(clock Clock) *RewardService {
	s.clock = clock
	return s
}

// IssueRewards 为已达标推荐按活动规则向各受益方发奖
// 已发奖的推荐直接返回已有奖励；全部奖励进入终态后推荐流转为 REWARDED。
func (s *RewardService) IssueRewards(ctx context.Context, referralID uint) ([]models.Reward, error) {
	referral, err := s.referralRepo.GetByID(referralID)
	if err != nil {
		return nil, err
	}
	if referral == nil {
		return nil, ReferralNotFound(referralID)
	}
	switch referral.State {
	case constants.ReferralStateRewarded:
		return s.rewardRepo.ListByReferral(referral.ID)
	case constants.ReferralStateQualified:
	default:
		return nil, ReferralStateInvalid(referral.ID, referral.State, constants.ReferralStateRewarded)
	}

	campaign, err := s.campaigns.GetActive(ctx, referral.CampaignID)
	if err != nil {
		return nil, err
	}
	targets, err := s.issueTargets(campaign, referral)
	if err != nil {
		return nil, err
	}

	var firstErr, rejected error
	for _, target := range targets {
		if _, err := s.issueWithRetry(ctx, campaign, referral, target); err != nil {
			// 终态拒绝的奖励已取消，不阻塞推荐结算
			if errors.Is(err, ErrGrantRejected) {
				if rejected == nil {
					rejected = err
				}
				continue
			}
			logger.Warnw("reward_issue_failed",
				"referral_id", referral.ID,
				"beneficiary", target.Beneficiary,
				"retryable", IsRetryable(err),
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	rewards, err := s.rewardRepo.ListByReferral(referral.ID)
	if err != nil {
		return nil, err
	}
	if firstErr != nil {
		return rewards, firstErr
	}
	if err := s.finalizeReferral(ctx, referral, rewards); err != nil {
		return rewards, err
	}
	return rewards, rejected
}

// RetryPendingReward 重新发放待发放奖励；推荐已撤销时取消该奖励
func (s *RewardService) RetryPendingReward(ctx context.Context, rewardID uint) (*models.Reward, error) {
	reward, err := s.rewardRepo.GetByID(rewardID)
	if err != nil {
		return nil, err
	}
	if reward == nil {
		return nil, RewardNotFound(rewardID)
	}
	if enums.RewardState(reward.State).Terminal() {
		return reward, nil
	}
	referral, err := s.referralRepo.GetByID(reward.ReferralID)
	if err != nil {
		return nil, err
	}
	if referral == nil {
		return nil, ReferralNotFound(reward.ReferralID)
	}
	if referral.State == constants.ReferralStateRevoked {
		if err := s.cancelPending(ctx, reward, referral.RevokeReason); err != nil {
			return nil, err
		}
		return s.mustGetReward(reward.ID)
	}
	if _, err := s.IssueRewards(ctx, referral.ID); err != nil {
		current, getErr := s.rewardRepo.GetByID(reward.ID)
		if getErr != nil {
			return nil, getErr
		}
		return current, err
	}
	return s.mustGetReward(reward.ID)
}

// ReverseReferral 撤销推荐的奖励效果：待发放奖励取消，已发放奖励按余额追加 MINUS 冲正流水
// 推荐本身状态不在此处变更。
func (s *RewardService) ReverseReferral(ctx context.Context, referralID uint, reason string) ([]models.LedgerEntry, error) {
	referral, err := s.referralRepo.GetByID(referralID)
	if err != nil {
		return nil, err
	}
	if referral == nil {
		return nil, ReferralNotFound(referralID)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = constants.RevokeReasonAdmin
	}
	rewards, err := s.rewardRepo.ListByReferral(referral.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.LedgerEntry, 0, len(rewards))
	for i := range rewards {
		entry, err := s.reverseReward(ctx, rewards[i].ID, reason)
		if err != nil {
			return entries, err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}
	logger.Infow("referral_rewards_reversed", "referral_id", referral.ID, "entries", len(entries), "reason", reason)
	return entries, nil
}

// ListRewards 返回推荐下的奖励
func (s *RewardService) ListRewards(ctx context.Context, referralID uint) ([]models.Reward, error) {
	return s.rewardRepo.ListByReferral(referralID)
}

// List 按条件查询奖励
func (s *RewardService) List(ctx context.Context, filter repository.RewardListFilter) ([]models.Reward, int64, error) {
	return s.rewardRepo.List(filter)
}

// CampaignSpent 返回活动在其币种下的净支出
func (s *RewardService) CampaignSpent(ctx context.Context, campaignID uint) (decimal.Decimal, error) {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.ledger.SumByCampaign(ctx, campaign.ID, campaign.Currency)
}

// SweepPending 补偿扫描：重新发放滞留在 QUALIFIED 的推荐与滞留的待发放奖励
func (s *RewardService) SweepPending(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	before := s.clock.now().Add(-s.settings.SweepInterval)

	referrals, err := s.referralRepo.ListByStateBefore(constants.ReferralStateQualified, before, s.settings.SweepBatchSize)
	if err != nil {
		return report, err
	}
	handled := make(map[uint]struct{}, len(referrals))
	for _, referral := range referrals {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		handled[referral.ID] = struct{}{}
		if _, err := s.IssueRewards(ctx, referral.ID); err != nil {
			report.Failed++
			logger.Warnw("reward_sweep_issue_failed", "referral_id", referral.ID, "error", err)
			continue
		}
		report.ReferralsIssued++
	}

	rewards, err := s.rewardRepo.ListPendingBefore(before, s.settings.SweepBatchSize)
	if err != nil {
		return report, err
	}
	for _, reward := range rewards {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if _, ok := handled[reward.ReferralID]; ok {
			continue
		}
		if _, err := s.RetryPendingReward(ctx, reward.ID); err != nil {
			report.Failed++
			logger.Warnw("reward_sweep_retry_failed", "reward_id", reward.ID, "error", err)
			continue
		}
		report.RewardsRetried++
	}
	return report, nil
}

// issueTargets 依据规则生成各受益方的奖励模板，并补上规则已移除但仍存在的奖励
func (s *RewardService) issueTargets(campaign *models.Campaign, referral *models.Referral) ([]models.Reward, error) {
	rules, err := campaign.Rules()
	if err != nil {
		return nil, CampaignConfigInvalid("reward rules unreadable: " + err.Error())
	}
	existing, err := s.rewardRepo.ListByReferral(referral.ID)
	if err != nil {
		return nil, err
	}

	targets := make([]models.Reward, 0, len(rules))
	covered := make(map[string]struct{}, len(rules))
	for _, beneficiary := range enums.Beneficiaries() {
		for _, rule := range rules {
			if rule.Beneficiary != string(beneficiary) {
				continue
			}
			party := referral.Referrer()
			if beneficiary == enums.BeneficiaryReferee {
				party = referral.Referee()
			}
			covered[rule.Beneficiary] = struct{}{}
			targets = append(targets, models.Reward{
				CampaignID:      campaign.ID,
				ReferralID:      referral.ID,
				Beneficiary:     rule.Beneficiary,
				BeneficiaryType: party.Type,
				BeneficiaryID:   party.ID,
				RewardType:      rule.RewardType,
				Spec:            rule.Spec,
				Amount:          models.NewMoneyFromDecimal(rule.Amount.Decimal),
				Currency:        campaign.Currency,
				State:           constants.RewardStatePending,
				IdemKey:         RewardIdemKey(campaign.ID, referral.ID, rule.Beneficiary),
			})
		}
	}
	for _, reward := range existing {
		if _, ok := covered[reward.Beneficiary]; ok {
			continue
		}
		targets = append(targets, reward)
	}
	return targets, nil
}

func (s *RewardService) issueWithRetry(ctx context.Context, campaign *models.Campaign, referral *models.Referral, target models.Reward) (*models.Reward, error) {
	var lastErr error
	for attempt := 0; attempt < s.settings.ConflictRetryLimit; attempt++ {
		reward, err := s.issueOne(ctx, campaign, referral, target)
		if err == nil {
			return reward, nil
		}
		lastErr = err
		if !errors.Is(err, ErrConcurrentModification) {
			return nil, err
		}
		logger.Debugw("reward_issue_conflict_retry", "referral_id", referral.ID, "beneficiary", target.Beneficiary, "attempt", attempt+1)
	}
	return nil, lastErr
}

func (s *RewardService) issueOne(ctx context.Context, campaign *models.Campaign, referral *models.Referral, target models.Reward) (*models.Reward, error) {
	outcome, replay, err := RunOnce(ctx, s.guard, constants.IdempotencyScopeRewardCreation, target.IdemKey,
		func(ctx context.Context) (issueOutcome, error) {
			reward, err := s.loadOrCreate(target)
			if err != nil {
				return issueOutcome{}, err
			}
			if enums.RewardState(reward.State).Terminal() {
				return outcomeOf(reward), nil
			}
			return s.grantPending(ctx, campaign, referral, reward)
		})
	if err != nil {
		return nil, err
	}
	if replay {
		logger.Debugw("reward_issue_replayed", "reward_id", outcome.RewardID, "state", outcome.State)
	} else if outcome.Rejected != "" {
		return nil, GrantRejected(outcome.RewardID, grant.Terminal(outcome.Rejected, nil))
	}
	return s.mustGetReward(outcome.RewardID)
}

func (s *RewardService) loadOrCreate(target models.Reward) (*models.Reward, error) {
	existing, err := s.rewardRepo.GetByIdemKey(target.IdemKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	now := s.clock.now()
	reward := target
	reward.ID = 0
	reward.State = constants.RewardStatePending
	reward.CreatedAt = now
	reward.UpdatedAt = now
	if err := s.rewardRepo.Create(&reward); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		existing, err = s.rewardRepo.GetByIdemKey(target.IdemKey)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, ConcurrentModification(target.ReferralID, 0)
		}
		return existing, nil
	}
	logger.Infow("reward_created", "reward_id", reward.ID, "referral_id", reward.ReferralID, "beneficiary", reward.Beneficiary, "amount", reward.Amount.String())
	return &reward, nil
}

func (s *RewardService) grantPending(ctx context.Context, campaign *models.Campaign, referral *models.Referral, reward *models.Reward) (issueOutcome, error) {
	if err := s.reserveBudget(campaign, referral, reward); err != nil {
		return issueOutcome{}, err
	}
	ok, err := s.rewardRepo.TouchAttempt(reward.ID, constants.RewardStatePending, s.clock.now())
	if err != nil {
		return issueOutcome{}, err
	}
	if !ok {
		return issueOutcome{}, ConcurrentModification(referral.ID, reward.ID)
	}

	grantCtx, cancel := context.WithTimeout(ctx, s.settings.GrantTimeout)
	result, grantErr := s.granter.Grant(grantCtx, grant.Request{
		IdemKey:         reward.IdemKey,
		BeneficiaryType: reward.BeneficiaryType,
		BeneficiaryID:   reward.BeneficiaryID,
		RewardType:      reward.RewardType,
		Amount:          reward.Amount.Decimal,
		Currency:        reward.Currency,
		Spec:            reward.Spec,
	})
	cancel()

	if grantErr != nil {
		code := grant.FailureCode(grantErr)
		if grant.IsRetryable(grantErr) {
			if err := s.rewardRepo.UpdateFields(reward.ID, map[string]interface{}{"fail_reason": code}); err != nil {
				logger.Errorw("reward_fail_reason_update_failed", "reward_id", reward.ID, "error", err)
			}
			logger.Warnw("reward_grant_retryable", "reward_id", reward.ID, "code", code, "error", grantErr)
			return issueOutcome{}, GrantRetryable(reward.ID, grantErr)
		}
		now := s.clock.now()
		err := s.cancelTx(reward, map[string]interface{}{
			"state":           constants.RewardStateCancelled,
			"revoked_at":      now,
			"fail_reason":     constants.RewardFailReasonRejected + ":" + code,
			"budget_reserved": false,
			"updated_at":      now,
		})
		if err != nil {
			return issueOutcome{}, err
		}
		logger.Warnw("reward_grant_rejected", "reward_id", reward.ID, "code", code, "error", grantErr)
		return issueOutcome{RewardID: reward.ID, State: constants.RewardStateCancelled, Rejected: code}, nil
	}

	now := s.clock.now()
	err = s.rewardRepo.Transaction(func(tx *gorm.DB) error {
		ok, err := s.rewardRepo.WithTx(tx).TransitState(reward.ID, constants.RewardStatePending, map[string]interface{}{
			"state":       constants.RewardStateGranted,
			"granted_at":  now,
			"external_id": result.ExternalID,
			"fail_reason": "",
			"updated_at":  now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ConcurrentModification(referral.ID, reward.ID)
		}
		_, err = s.ledger.PostTx(tx, PostInput{
			RewardID:  reward.ID,
			Direction: constants.DirectionPlus,
			Amount:    reward.Amount,
			Currency:  reward.Currency,
			Reason:    constants.LedgerReasonRewardGranted,
		})
		return err
	})
	if err != nil {
		return issueOutcome{}, err
	}
	logger.Infow("reward_granted",
		"reward_id", reward.ID,
		"referral_id", referral.ID,
		"beneficiary", reward.Beneficiary,
		"amount", reward.Amount.String(),
		"external_id", result.ExternalID,
	)
	return issueOutcome{RewardID: reward.ID, State: constants.RewardStateGranted, ExternalID: result.ExternalID}, nil
}

// reserveBudget 在活动行锁内为奖励占用预算，奖励已占用时直接返回
// 占用额包含发放中与已发放的金额，冲正与取消时归还。
func (s *RewardService) reserveBudget(campaign *models.Campaign, referral *models.Referral, reward *models.Reward) error {
	if reward.BudgetReserved {
		return nil
	}
	exceeded := false
	var reserved decimal.Decimal
	err := s.rewardRepo.Transaction(func(tx *gorm.DB) error {
		ok, current, err := s.campaigns.ReserveBudgetTx(tx, campaign.ID, reward.Amount.Decimal)
		if err != nil {
			return err
		}
		reserved = current
		if !ok {
			exceeded = true
			return nil
		}
		marked, err := s.rewardRepo.WithTx(tx).TransitState(reward.ID, constants.RewardStatePending, map[string]interface{}{
			"budget_reserved": true,
		})
		if err != nil {
			return err
		}
		if !marked {
			return ConcurrentModification(referral.ID, reward.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if exceeded {
		if err := s.rewardRepo.UpdateFields(reward.ID, map[string]interface{}{"fail_reason": constants.RewardFailReasonBudget}); err != nil {
			logger.Errorw("reward_fail_reason_update_failed", "reward_id", reward.ID, "error", err)
		}
		logger.Warnw("reward_budget_exceeded",
			"campaign_id", campaign.ID,
			"reward_id", reward.ID,
			"reserved", reserved.StringFixed(2),
			"amount", reward.Amount.String(),
		)
		return CampaignBudgetExceeded(campaign.ID, referral.ID)
	}
	reward.BudgetReserved = true
	return nil
}

// cancelTx 将待发放奖励置为取消并归还其占用的预算
func (s *RewardService) cancelTx(reward *models.Reward, updates map[string]interface{}) error {
	return s.rewardRepo.Transaction(func(tx *gorm.DB) error {
		ok, err := s.rewardRepo.WithTx(tx).TransitState(reward.ID, constants.RewardStatePending, updates)
		if err != nil {
			return err
		}
		if !ok {
			return ConcurrentModification(reward.ReferralID, reward.ID)
		}
		if !reward.BudgetReserved {
			return nil
		}
		return s.campaigns.ReleaseBudgetTx(tx, reward.CampaignID, reward.Amount.Decimal)
	})
}

func (s *RewardService) finalizeReferral(ctx context.Context, referral *models.Referral, rewards []models.Reward) error {
	for _, reward := range rewards {
		if !enums.RewardState(reward.State).Terminal() {
			return nil
		}
	}
	if !CanTransitReferral(referral.State, constants.ReferralStateRewarded) {
		return ReferralStateInvalid(referral.ID, referral.State, constants.ReferralStateRewarded)
	}
	now := s.clock.now()
	ok, err := s.referralRepo.TransitState(referral.ID, []string{constants.ReferralStateQualified}, map[string]interface{}{
		"state":       constants.ReferralStateRewarded,
		"rewarded_at": now,
		"updated_at":  now,
	})
	if err != nil {
		return err
	}
	if ok {
		logger.Infow("referral_rewarded", "referral_id", referral.ID, "rewards", len(rewards))
		return nil
	}

	current, err := s.referralRepo.GetByID(referral.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return ReferralNotFound(referral.ID)
	}
	switch current.State {
	case constants.ReferralStateRewarded:
		return nil
	case constants.ReferralStateRevoked:
		// 发奖过程中推荐被撤销，补做冲正
		if _, err := s.ReverseReferral(ctx, current.ID, current.RevokeReason); err != nil {
			return err
		}
		return ReferralStateInvalid(current.ID, current.State, constants.ReferralStateRewarded)
	}
	return ConcurrentModification(referral.ID, 0)
}

// reverseReward 对单个奖励执行撤销：PENDING 取消，GRANTED 冲正余额
func (s *RewardService) reverseReward(ctx context.Context, rewardID uint, reason string) (*models.LedgerEntry, error) {
	var lastErr error
	for attempt := 0; attempt < s.settings.ConflictRetryLimit; attempt++ {
		reward, err := s.mustGetReward(rewardID)
		if err != nil {
			return nil, err
		}
		switch reward.State {
		case constants.RewardStateCancelled:
			return nil, nil
		case constants.RewardStatePending:
			err = s.cancelPending(ctx, reward, reason)
			if err == nil {
				// 取消与并发发放竞争时，发放可能已先完成
				current, getErr := s.mustGetReward(rewardID)
				if getErr != nil {
					return nil, getErr
				}
				if current.State != constants.RewardStateGranted {
					return nil, nil
				}
				return s.reverseGranted(ctx, current, reason)
			}
		case constants.RewardStateGranted:
			return s.reverseGranted(ctx, reward, reason)
		default:
			return nil, nil
		}
		lastErr = err
		if !errors.Is(err, ErrConcurrentModification) {
			return nil, err
		}
	}
	return nil, lastErr
}

// cancelPending 在发奖幂等键下取消待发放奖励，与发放尝试互斥
func (s *RewardService) cancelPending(ctx context.Context, reward *models.Reward, reason string) error {
	_, _, err := RunOnce(ctx, s.guard, constants.IdempotencyScopeRewardCreation, reward.IdemKey,
		func(ctx context.Context) (issueOutcome, error) {
			current, err := s.mustGetReward(reward.ID)
			if err != nil {
				return issueOutcome{}, err
			}
			if current.State != constants.RewardStatePending {
				return outcomeOf(current), nil
			}
			now := s.clock.now()
			if err := s.cancelTx(current, map[string]interface{}{
				"state":           constants.RewardStateCancelled,
				"revoked_at":      now,
				"revoke_reason":   reason,
				"budget_reserved": false,
				"updated_at":      now,
			}); err != nil {
				return issueOutcome{}, err
			}
			logger.Infow("reward_cancelled", "reward_id", current.ID, "reason", reason)
			return issueOutcome{RewardID: current.ID, State: constants.RewardStateCancelled}, nil
		})
	return err
}

func (s *RewardService) reverseGranted(ctx context.Context, reward *models.Reward, reason string) (*models.LedgerEntry, error) {
	var posted *models.LedgerEntry
	outcome, replay, err := RunOnceTx(ctx, s.guard, constants.IdempotencyScopeRewardReversal, reward.IdemKey,
		func(ctx context.Context, tx *gorm.DB) (reversalOutcome, error) {
			balance, err := s.ledger.BalanceTx(tx, reward.ID)
			if err != nil {
				return reversalOutcome{}, err
			}
			if !balance.IsPositive() {
				return reversalOutcome{RewardID: reward.ID}, nil
			}
			entry, err := s.ledger.PostTx(tx, PostInput{
				RewardID:  reward.ID,
				Direction: constants.DirectionMinus,
				Amount:    models.NewMoneyFromDecimal(balance),
				Currency:  reward.Currency,
				Reason:    constants.LedgerReasonReferralRevoke,
			})
			if err != nil {
				return reversalOutcome{}, err
			}
			if err := s.rewardRepo.WithTx(tx).UpdateFields(reward.ID, map[string]interface{}{
				"revoke_reason":   reason,
				"revoked_at":      s.clock.now(),
				"budget_reserved": false,
			}); err != nil {
				return reversalOutcome{}, err
			}
			if reward.BudgetReserved {
				if err := s.campaigns.ReleaseBudgetTx(tx, reward.CampaignID, balance); err != nil {
					return reversalOutcome{}, err
				}
			}
			posted = entry
			return reversalOutcome{RewardID: reward.ID, EntryID: entry.ID, Amount: entry.Amount.String()}, nil
		})
	if err != nil {
		return nil, err
	}
	if replay || outcome.EntryID == 0 {
		return nil, nil
	}
	logger.Infow("reward_reversed", "reward_id", reward.ID, "entry_id", outcome.EntryID, "amount", outcome.Amount, "reason", reason)
	return posted, nil
}

func (s *RewardService) mustGetReward(id uint) (*models.Reward, error) {
	reward, err := s.rewardRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if reward == nil {
		return nil, RewardNotFound(id)
	}
	return reward, nil
}

func outcomeOf(reward *models.Reward) issueOutcome {
	return issueOutcome{RewardID: reward.ID, State: reward.State, ExternalID: reward.ExternalID}
}
