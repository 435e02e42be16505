package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/referral-rewards/internal/constants"
	"github.com/referral-rewards/internal/enums"
	"github.com/referral-rewards/internal/logger"
	"github.com/referral-rewards/internal/models"
	"github.com/referral-rewards/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const tokenCreateAttempts = 3

// AttributeInput 归因入参
type AttributeInput struct {
	Token     string
	Referee   models.Party
	Source    string
	OccurTime time.Time
}

// QualifyInput 资格判定入参
type QualifyInput struct {
	ReferralID uint
	Decision   string
	Reason     string
	Evidence   map[string]interface{}
	OccurTime  time.Time
}

// QualifyResult 资格判定结果
type QualifyResult struct {
	Qualification *models.Qualification
	Referral      *models.Referral
	Superseded    []models.Referral
}

// RevokeResult 撤销结果
type RevokeResult struct {
	Referral  *models.Referral
	Reversals []models.LedgerEntry
}

// ReferralService 推荐生命周期状态机
type ReferralService struct {
	referralRepo repository.ReferralRepository
	campaigns    *CampaignService
	rewards      *RewardService
	authorizer   Authorizer
	settings     ReferralSettings
	clock        Clock
}

// NewReferralService 创建推荐服务
func NewReferralService(
	referralRepo repository.ReferralRepository,
	campaigns *CampaignService,
	rewards *RewardService,
	authorizer Authorizer,
	settings ReferralSettings,
) *ReferralService {
	return &ReferralService{
		referralRepo: referralRepo,
		campaigns:    campaigns,
		rewards:      rewards,
		authorizer:   authorizer,
		settings:     settings.Normalize(),
	}
}

// WithClock 替换时间来源
func (s *ReferralService) WithClock(clock Clock) *ReferralService {
	s.clock = clock
	return s
}

// IssueToken 为推荐人生成归因令牌
func (s *ReferralService) IssueToken(ctx context.Context, campaignID uint, referrer models.Party, ttl time.Duration) (*models.AttributionToken, error) {
	if referrer.IsZero() {
		return nil, AttributionTokenInvalid("referrer required")
	}
	campaign, err := s.campaigns.GetActive(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = s.settings.TokenTTL
	}
	now := s.clock.now()
	for attempt := 0; attempt < tokenCreateAttempts; attempt++ {
		token := &models.AttributionToken{
			Token:        strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")),
			CampaignID:   campaign.ID,
			ReferrerType: referrer.Type,
			ReferrerID:   referrer.ID,
			ExpireAt:     now.Add(ttl),
			CreatedAt:    now,
		}
		err := s.referralRepo.CreateToken(token)
		if err == nil {
			logger.Infow("attribution_token_issued", "campaign_id", campaign.ID, "referrer", referrer.Key(), "expire_at", token.ExpireAt)
			return token, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
	}
	return nil, ConcurrentModification(0, 0)
}

// Attribute 校验令牌并创建 ATTRIBUTED 推荐
func (s *ReferralService) Attribute(ctx context.Context, input AttributeInput) (*models.Referral, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Token))
	if code == "" {
		return nil, AttributionTokenInvalid("token required")
	}
	referee := models.NewParty(input.Referee.Type, input.Referee.ID)
	if referee.IsZero() {
		return nil, AttributionTokenInvalid("referee required")
	}
	token, err := s.referralRepo.GetToken(code)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, AttributionTokenInvalid("token not found")
	}

	now := s.clock.now()
	occurAt := now
	if !input.OccurTime.IsZero() {
		occurAt = input.OccurTime.UTC()
	}
	if token.IsExpired(occurAt) {
		return nil, AttributionTokenExpired(token.CampaignID)
	}
	campaign, err := s.campaigns.GetActive(ctx, token.CampaignID)
	if err != nil {
		return nil, err
	}
	referrer := token.Referrer()
	if campaign.BlockSelfReferral && referrer.Equal(referee) {
		logger.Warnw("referral_self_blocked", "campaign_id", campaign.ID, "party", referee.Key())
		return nil, SelfReferralNotAllowed(campaign.ID, referee.Key())
	}

	open, err := s.referralRepo.FindOpenByPair(campaign.ID, referee, referrer)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, DuplicateReferral(campaign.ID, referee.Key())
	}
	credited, err := s.referralRepo.FindCreditedByReferee(campaign.ID, referee)
	if err != nil {
		return nil, err
	}
	if credited != nil {
		return nil, DuplicateReferral(campaign.ID, referee.Key())
	}

	source := strings.ToLower(strings.TrimSpace(input.Source))
	if source == "" {
		source = constants.ReferralSourceLink
	}
	referral := &models.Referral{
		CampaignID:   campaign.ID,
		ReferrerType: referrer.Type,
		ReferrerID:   referrer.ID,
		RefereeType:  referee.Type,
		RefereeID:    referee.ID,
		Token:        token.Token,
		Source:       source,
		State:        constants.ReferralStateCreated,
		CreatedAt:    occurAt,
		UpdatedAt:    now,
	}
	if !CanTransitReferral(referral.State, constants.ReferralStateAttributed) {
		return nil, ReferralStateInvalid(0, referral.State, constants.ReferralStateAttributed)
	}
	activeKey := referralActiveKey(campaign.ID, referee, referrer)
	referral.State = constants.ReferralStateAttributed
	referral.AttributedAt = &now
	referral.ActiveKey = &activeKey

	if err := s.referralRepo.Create(referral); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, DuplicateReferral(campaign.ID, referee.Key())
		}
		return nil, err
	}
	logger.Infow("referral_attributed",
		"referral_id", referral.ID,
		"campaign_id", campaign.ID,
		"referrer", referrer.Key(),
		"referee", referee.Key(),
		"source", source,
	)
	return referral, nil
}

// Qualify 记录资格判定；QUALIFIED 判定按归因模型挑选唯一达标推荐，其余候选被撤销
func (s *ReferralService) Qualify(ctx context.Context, input QualifyInput) (*QualifyResult, error) {
	decision := strings.ToUpper(strings.TrimSpace(input.Decision))
	if !enums.Decision(decision).Valid() {
		return nil, QualificationInvalid("unknown decision " + input.Decision)
	}
	referral, err := s.referralRepo.GetByID(input.ReferralID)
	if err != nil {
		return nil, err
	}
	if referral == nil {
		return nil, ReferralNotFound(input.ReferralID)
	}
	switch referral.State {
	case constants.ReferralStateCreated, constants.ReferralStateRevoked:
		return nil, ReferralStateInvalid(referral.ID, referral.State, constants.ReferralStateQualified)
	}

	now := s.clock.now()
	occurAt := now
	if !input.OccurTime.IsZero() {
		occurAt = input.OccurTime.UTC()
	}
	record := &models.Qualification{
		ReferralID: referral.ID,
		Decision:   decision,
		Reason:     strings.TrimSpace(input.Reason),
		OccurredAt: occurAt,
		CreatedAt:  now,
	}
	if len(input.Evidence) > 0 {
		record.Evidence = input.Evidence
	}

	// 已达标或被拒绝时仅追加判定记录
	if decision == constants.DecisionRejected || referral.State != constants.ReferralStateAttributed {
		if err := s.referralRepo.CreateQualification(record); err != nil {
			return nil, err
		}
		logger.Infow("referral_qualification_recorded", "referral_id", referral.ID, "decision", decision, "state", referral.State)
		return &QualifyResult{Qualification: record, Referral: referral}, nil
	}

	campaign, err := s.campaigns.Get(ctx, referral.CampaignID)
	if err != nil {
		return nil, err
	}
	winner, losers, err := s.resolveWinner(campaign, referral, occurAt)
	if err != nil {
		return nil, err
	}
	if !IsWithinWindow(campaign, winner.CreatedAt, occurAt) {
		// 判定照常留档，推荐保持 ATTRIBUTED
		if err := s.referralRepo.CreateQualification(record); err != nil {
			return nil, err
		}
		logger.Warnw("referral_window_expired", "campaign_id", campaign.ID, "referral_id", winner.ID, "created_at", winner.CreatedAt, "occur_at", occurAt)
		return nil, ReferralWindowExpired(campaign.ID, winner.ID)
	}

	supersedeReason := constants.RevokeReasonSupersededFirst
	if campaign.AttributionModel == constants.AttributionLast {
		supersedeReason = constants.RevokeReasonSupersededLast
	}
	creditKey := referralCreditKey(campaign.ID, winner.Referee())
	record.ReferralID = winner.ID

	err = s.referralRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.referralRepo.WithTx(tx)
		if err := repo.CreateQualification(record); err != nil {
			return err
		}
		ok, err := repo.TransitState(winner.ID, []string{constants.ReferralStateAttributed}, map[string]interface{}{
			"state":        constants.ReferralStateQualified,
			"qualified_at": now,
			"credit_key":   creditKey,
			"updated_at":   now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ConcurrentModification(winner.ID, 0)
		}
		for _, loser := range losers {
			ok, err := repo.TransitState(loser.ID, []string{constants.ReferralStateAttributed}, map[string]interface{}{
				"state":         constants.ReferralStateRevoked,
				"revoked_at":    now,
				"revoke_reason": supersedeReason,
				"active_key":    nil,
				"updated_at":    now,
			})
			if err != nil {
				return err
			}
			if !ok {
				return ConcurrentModification(loser.ID, 0)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ConcurrentModification(winner.ID, 0)
		}
		return nil, err
	}

	qualified, err := s.mustGetReferral(winner.ID)
	if err != nil {
		return nil, err
	}
	superseded := make([]models.Referral, 0, len(losers))
	for _, loser := range losers {
		current, err := s.mustGetReferral(loser.ID)
		if err != nil {
			return nil, err
		}
		superseded = append(superseded, *current)
		logger.Infow("referral_superseded", "referral_id", loser.ID, "winner_id", winner.ID, "reason", supersedeReason)
	}
	logger.Infow("referral_qualified",
		"referral_id", winner.ID,
		"requested_referral_id", referral.ID,
		"campaign_id", campaign.ID,
		"attribution_model", campaign.AttributionModel,
		"superseded", len(superseded),
	)
	return &QualifyResult{Qualification: record, Referral: qualified, Superseded: superseded}, nil
}

// Revoke 撤销推荐；已发奖的推荐状态不变，改为追加冲正流水
func (s *ReferralService) Revoke(ctx context.Context, op Operator, referralID uint, reason string) (*RevokeResult, error) {
	if err := authorize(s.authorizer, op, constants.AuthzObjectReferral, constants.AuthzActionRevoke); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = constants.RevokeReasonAdmin
	}
	referral, err := s.mustGetReferral(referralID)
	if err != nil {
		return nil, err
	}

	switch referral.State {
	case constants.ReferralStateRevoked:
		return &RevokeResult{Referral: referral}, nil
	case constants.ReferralStateRewarded:
		return s.reverseRewarded(ctx, op, referral, reason)
	}

	now := s.clock.now()
	ok, err := s.referralRepo.TransitState(referral.ID, referralRevocableStates(), map[string]interface{}{
		"state":         constants.ReferralStateRevoked,
		"revoked_at":    now,
		"revoke_reason": reason,
		"active_key":    nil,
		"credit_key":    nil,
		"updated_at":    now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.mustGetReferral(referral.ID)
		if err != nil {
			return nil, err
		}
		switch current.State {
		case constants.ReferralStateRevoked:
			return &RevokeResult{Referral: current}, nil
		case constants.ReferralStateRewarded:
			return s.reverseRewarded(ctx, op, current, reason)
		}
		return nil, ConcurrentModification(referral.ID, 0)
	}
	logger.Infow("referral_revoked", "referral_id", referral.ID, "from_state", referral.State, "operator", op.ID, "reason", reason)

	var reversals []models.LedgerEntry
	if s.rewards != nil {
		reversals, err = s.rewards.ReverseReferral(ctx, referral.ID, reason)
		if err != nil {
			return nil, err
		}
	}
	current, err := s.mustGetReferral(referral.ID)
	if err != nil {
		return nil, err
	}
	return &RevokeResult{Referral: current, Reversals: reversals}, nil
}

// Get 获取推荐
func (s *ReferralService) Get(ctx context.Context, id uint) (*models.Referral, error) {
	return s.mustGetReferral(id)
}

// List 按条件查询推荐
func (s *ReferralService) List(ctx context.Context, op Operator, filter repository.ReferralListFilter) ([]models.Referral, int64, error) {
	if err := authorize(s.authorizer, op, constants.AuthzObjectReferral, constants.AuthzActionRead); err != nil {
		return nil, 0, err
	}
	return s.referralRepo.List(filter)
}

// ListQualifications 返回推荐的判定记录
func (s *ReferralService) ListQualifications(ctx context.Context, referralID uint) ([]models.Qualification, error) {
	if _, err := s.mustGetReferral(referralID); err != nil {
		return nil, err
	}
	return s.referralRepo.ListQualifications(referralID)
}

// resolveWinner 在被推荐人的 ATTRIBUTED 候选中按归因模型挑选达标推荐
// 仅判定时刻之前的归因参与竞争；都晚于判定时刻时退回全部候选。
func (s *ReferralService) resolveWinner(campaign *models.Campaign, referral *models.Referral, occurAt time.Time) (*models.Referral, []models.Referral, error) {
	open, err := s.referralRepo.ListOpenByReferee(campaign.ID, referral.Referee())
	if err != nil {
		return nil, nil, err
	}
	candidates := make([]models.Referral, 0, len(open))
	for _, item := range open {
		if item.State == constants.ReferralStateAttributed {
			candidates = append(candidates, item)
		}
	}
	eligible := make([]models.Referral, 0, len(candidates))
	for _, item := range candidates {
		if !item.CreatedAt.After(occurAt) {
			eligible = append(eligible, item)
		}
	}
	if len(eligible) == 0 {
		eligible = candidates
	}
	if len(eligible) == 0 {
		return nil, nil, ConcurrentModification(referral.ID, 0)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].ID < eligible[j].ID
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})
	winner := eligible[0]
	if campaign.AttributionModel == constants.AttributionLast {
		winner = eligible[len(eligible)-1]
	}

	losers := make([]models.Referral, 0, len(candidates))
	for _, item := range candidates {
		if item.ID != winner.ID {
			losers = append(losers, item)
		}
	}
	return &winner, losers, nil
}

func (s *ReferralService) reverseRewarded(ctx context.Context, op Operator, referral *models.Referral, reason string) (*RevokeResult, error) {
	if s.rewards == nil {
		return &RevokeResult{Referral: referral}, nil
	}
	reversals, err := s.rewards.ReverseReferral(ctx, referral.ID, reason)
	if err != nil {
		return nil, err
	}
	logger.Infow("referral_reward_reversed", "referral_id", referral.ID, "operator", op.ID, "entries", len(reversals), "reason", reason)
	return &RevokeResult{Referral: referral, Reversals: reversals}, nil
}

func (s *ReferralService) mustGetReferral(id uint) (*models.Referral, error) {
	referral, err := s.referralRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if referral == nil {
		return nil, ReferralNotFound(id)
	}
	return referral, nil
}

func referralActiveKey(campaignID uint, referee, referrer models.Party) string {
	return strings.Join([]string{strconv.FormatUint(uint64(campaignID), 10), referee.Key(), referrer.Key()}, ":")
}

func referralCreditKey(campaignID uint, referee models.Party) string {
	return strconv.FormatUint(uint64(campaignID), 10) + ":" + referee.Key()
}
