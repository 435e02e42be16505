package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/referral-rewards/internal/constants"
)

type denyAuthorizer struct {
	allowed map[string]bool
}

func (a denyAuthorizer) EnforceOperator(operatorID, object, action string) (bool, error) {
	return a.allowed[object+":"+action], nil
}

func TestAttributeCreatesAttributedReferral(t *testing.T) {
	env := setupServiceTest(t)
	campaign := createTestCampaign(t, env, nil)

	referral := attributeTestReferral(t, env, campaign.ID, testUser("alice"), testUser("carol"))
	if referral.State != constants.ReferralStateAttributed {
		t.Fatalf("expected ATTRIBUTED, got %s", referral.State)
	}
	if referral.AttributedAt == nil || referral.Source != constants.ReferralSourceLink {
		t.Fatalf("unexpected referral: %+v", referral)
	}
	if !referral.CreatedAt.Equal(testBaseTime) {
		t.Fatalf("create time should be captured from clock, got %v", referral.CreatedAt)
	}
}

func TestAttributeSelfReferral(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()

	blocked := createTestCampaign(t, env, nil)
	token, err := env.referrals.IssueToken(ctx, blocked.ID, testUser("alice"), 0)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	_, err = env.referrals.Attribute(ctx, AttributeInput{Token: token.Token, Referee: testUser("alice")})
	if !errors.Is(err, ErrSelfReferralNotAllowed) {
		t.Fatalf("expected self referral error, got %v", err)
	}
	if KindOf(err) != KindPrecondition {
		t.Fatalf("self referral should be a precondition error, got %s", KindOf(err))
	}

	open := createTestCampaign(t, env, func(in *CampaignInput) { in.BlockSelfReferral = false })
	referral := attributeTestReferral(t, env, open.ID, testUser("alice"), testUser("alice"))
	if referral.State != constants.ReferralStateAttributed {
		t.Fatalf("self referral should be allowed when block is off, got %s", referral.State)
	}
}

// 重复判定以 (活动, 推荐人, 被推荐人) 为粒度：同一被推荐人可被多个推荐人归因，
// 由 FIRST/LAST 模型在达标时裁决；受理后的被推荐人不再接受新归因。
func TestAttributeRejectsDuplicateUntilRevoked(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, env, nil)

	first := attributeTestReferral(t, env, campaign.ID, testUser("alice"), testUser("carol"))
	// 不同推荐人对同一被推荐人的归因是候选，不算重复
	competing := attributeTestReferral(t, env, campaign.ID, testUser("bob"), testUser("carol"))
	if competing.ID == first.ID {
		t.Fatalf("expected a separate candidate referral for another referrer")
	}
	token, err := env.referrals.IssueToken(ctx, campaign.ID, testUser("alice"), 0)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	if _, err := env.referrals.Attribute(ctx, AttributeInput{Token: token.Token, Referee: testUser("carol")}); !errors.Is(err, ErrDuplicateReferral) {
		t.Fatalf("expected duplicate referral, got %v", err)
	}

	if _, err := env.referrals.Revoke(ctx, SystemOperator(), first.ID, ""); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	again, err := env.referrals.Attribute(ctx, AttributeInput{Token: token.Token, Referee: testUser("carol")})
	if err != nil {
		t.Fatalf("attribute after revoke failed: %v", err)
	}
	if again.ID == first.ID {
		t.Fatalf("expected a new referral after revoke")
	}
}

func TestAttributeTokenErrors(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, env, nil)

	if _, err := env.referrals.Attribute(ctx, AttributeInput{Token: "NOPE", Referee: testUser("carol")}); !errors.Is(err, ErrAttributionTokenInvalid) {
		t.Fatalf("expected invalid token, got %v", err)
	}

	token, err := env.referrals.IssueToken(ctx, campaign.ID, testUser("alice"), time.Hour)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	if len(token.Token) != 32 {
		t.Fatalf("unexpected token format: %q", token.Token)
	}
	_, err = env.referrals.Attribute(ctx, AttributeInput{
		Token:     token.Token,
		Referee:   testUser("carol"),
		OccurTime: testBaseTime.Add(2 * time.Hour),
	})
	if !errors.Is(err, ErrAttributionTokenExpired) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestAttributeInactiveCampaign(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, env, nil)
	token, err := env.referrals.IssueToken(ctx, campaign.ID, testUser("alice"), 0)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	if _, err := env.campaigns.SetActive(ctx, SystemOperator(), campaign.ID, false); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if _, err := env.referrals.Attribute(ctx, AttributeInput{Token: token.Token, Referee: testUser("carol")}); !errors.Is(err, ErrCampaignInactive) {
		t.Fatalf("expected inactive campaign, got %v", err)
	}
	if _, err := env.referrals.IssueToken(ctx, campaign.ID, testUser("alice"), 0); !errors.Is(err, ErrCampaignInactive) {
		t.Fatalf("expected inactive campaign on token issue, got %v", err)
	}
}

func TestQualifyFirstTouchPicksEarliest(t *testing.T) {
	env := setupServiceTest(t)
	campaign := createTestCampaign(t, env, nil)

	a := attributeTestReferral(t, env, campaign.ID, testUser("alice"), testUser("carol"))
	env.clock.Advance(time.Hour)
	b := attributeTestReferral(t, env, campaign.ID, testUser("bob"), testUser("carol"))
	env.clock.Advance(time.Hour)

	result := qualifyTestReferral(t, env, b.ID)
	if result.Referral.ID != a.ID || result.Referral.State != constants.ReferralStateQualified {
		t.Fatalf("expected A qualified, got %+v", result.Referral)
	}
	if len(result.Superseded) != 1 || result.Superseded[0].ID != b.ID {
		t.Fatalf("expected B superseded, got %+v", result.Superseded)
	}
	if result.Superseded[0].State != constants.ReferralStateRevoked || result.Superseded[0].RevokeReason != constants.RevokeReasonSupersededFirst {
		t.Fatalf("unexpected superseded referral: %+v", result.Superseded[0])
	}
	if result.Qualification.ReferralID != a.ID {
		t.Fatalf("qualification should be recorded on the winner")
	}
}

func TestQualifyLastTouchPicksLatest(t *testing.T) {
	env := setupServiceTest(t)
	campaign := createTestCampaign(t, env, func(in *CampaignInput) { in.AttributionModel = constants.AttributionLast })

	a := attributeTestReferral(t, env, campaign.ID, testUser("alice"), testUser("carol"))
	env.clock.Advance(time.Hour)
	b := attributeTestReferral(t, env, campaign.ID, testUser("bob"), testUser("carol"))
	env.clock.Advance(time.Hour)

	result := qualifyTestReferral(t, env, a.ID)
	if result.Referral.ID != b.ID || result.Referral.State != constants.ReferralStateQualified {
		t.Fatalf("expected B qualified, got %+v", result.Referral)
	}
	revoked, err := env.referrals.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get referral failed: %v", err)
	}
	if revoked.State != constants.ReferralStateRevoked || revoked.RevokeReason != constants.RevokeReasonSupersededLast {
		t.Fatalf("expected A revoked, got %+v", revoked)
	}
}

func TestQualifyWithinWindow(t *testing.T) {
	env := setupServiceTest(t)
	campaign := createTestCampaign(t, env, nil)
	referral := attributeTestReferral(t, env, campaign.ID, testUser("alice"), testUser("carol"))

	env.clock.Advance(10 * 24 * time.Hour)
	result := qualifyTestReferral(t, env, referral.ID)
	if result.Referral.State != constants.ReferralStateQualified || result.Referral.QualifiedAt == nil {
		t.Fatalf("expected QUALIFIED on day 10, got %+v", result.Referral)
	}
}

func TestQualifyOutsideWindow(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, env, nil)
	referral := attributeTestReferral(t, env, campaign.ID, testUser("alice"), testUser("carol"))

	env.clock.Advance(31 * 24 * time.Hour)
	_, err := env.referrals.Qualify(ctx, QualifyInput{ReferralID: referral.ID, Decision: constants.DecisionQualified})
	if !errors.Is(err, ErrReferralWindowExpired) {
		t.Fatalf("expected window expired, got %v", err)
	}
	records, err := env.referrals.ListQualifications(ctx, referral.ID)
	if err != nil {
		t.Fatalf("list qualifications failed: %v", err)
	}
	if len(records) != 1 || records[0].Decision != constants.DecisionQualified {
		t.Fatalf("expired evaluation should still be recorded, got %+v", records)
	}
	current, _ := env.referrals.Get(ctx, referral.ID)
	if current.State != constants.ReferralStateAttributed {
		t.Fatalf("referral should stay ATTRIBUTED, got %s", current.State)
	}
}

func TestQualifyRejectedKeepsAttributed(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, env, nil)
	referral := attributeTestReferral(t, env, campaign.ID, testUser("alice"), testUser("carol"))

	result, err := env.referrals.Qualify(ctx, QualifyInput{
		ReferralID: referral.ID,
		Decision:   "rejected",
		Reason:     "refunded",
		Evidence:   map[string]interface{}{"order_no": "A1001"},
	})
	if err != nil {
		t.Fatalf("qualify rejected failed: %v", err)
	}
	if result.Referral.State != constants.ReferralStateAttributed {
		t.Fatalf("rejected decision must keep ATTRIBUTED, got %s", result.Referral.State)
	}
	records, _ := env.referrals.ListQualifications(ctx, referral.ID)
	if len(records) != 1 || records[0].Decision != constants.DecisionRejected {
		t.Fatalf("unexpected qualification records: %+v", records)
	}

	if _, err := env.referrals.Qualify(ctx, QualifyInput{ReferralID: referral.ID, Decision: "MAYBE"}); !errors.Is(err, ErrQualificationInvalid) {
		t.Fatalf("expected invalid decision, got %v", err)
	}
}

func TestQualifiedRefereeBlocksNewAttribution(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, env, nil)
	referral := attributeTestReferral(t, env, campaign.ID, testUser("alice"), testUser("carol"))
	qualifyTestReferral(t, env, referral.ID)

	token, err := env.referrals.IssueToken(ctx, campaign.ID, testUser("bob"), 0)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	if _, err := env.referrals.Attribute(ctx, AttributeInput{Token: token.Token, Referee: testUser("carol")}); !errors.Is(err, ErrDuplicateReferral) {
		t.Fatalf("expected duplicate referral for credited referee, got %v", err)
	}
}

func TestRevokeReferral(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, env, nil)
	referral := attributeTestReferral(t, env, campaign.ID, testUser("alice"), testUser("carol"))

	result, err := env.referrals.Revoke(ctx, SystemOperator(), referral.ID, "fraud")
	if err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if result.Referral.State != constants.ReferralStateRevoked || result.Referral.RevokeReason != "fraud" || result.Referral.RevokedAt == nil {
		t.Fatalf("unexpected revoked referral: %+v", result.Referral)
	}
	if _, err := env.referrals.Revoke(ctx, SystemOperator(), referral.ID, "again"); err != nil {
		t.Fatalf("revoking a revoked referral should be a no-op, got %v", err)
	}
	_, err = env.referrals.Qualify(ctx, QualifyInput{ReferralID: referral.ID, Decision: constants.DecisionQualified})
	if !errors.Is(err, ErrReferralStateInvalid) {
		t.Fatalf("expected state invalid for revoked referral, got %v", err)
	}
	if _, err := env.referrals.Revoke(ctx, SystemOperator(), 9999, ""); !errors.Is(err, ErrReferralNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRevokeRequiresPermission(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, env, nil)
	referral := attributeTestReferral(t, env, campaign.ID, testUser("alice"), testUser("carol"))

	env.referrals.authorizer = denyAuthorizer{allowed: map[string]bool{"referral:read": true}}
	if _, err := env.referrals.Revoke(ctx, NewOperator("viewer"), referral.ID, ""); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, _, err := env.referrals.List(ctx, NewOperator("viewer"), referralListAll()); err != nil {
		t.Fatalf("list with read permission failed: %v", err)
	}

	env.referrals.authorizer = denyAuthorizer{allowed: map[string]bool{"referral:revoke": true}}
	if _, err := env.referrals.Revoke(ctx, NewOperator("auditor"), referral.ID, ""); err != nil {
		t.Fatalf("revoke with permission failed: %v", err)
	}
}
