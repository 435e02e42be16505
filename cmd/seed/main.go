package main

import (
	"context"
	"flag"
	"strings"

	"github.com/referral-rewards/internal/config"
	"github.com/referral-rewards/internal/constants"
	"github.com/referral-rewards/internal/logger"
	"github.com/referral-rewards/internal/models"
	"github.com/referral-rewards/internal/provider"
	"github.com/referral-rewards/internal/repository"
	"github.com/referral-rewards/internal/service"
)

const demoCampaignName = "新用户邀请"

func main() {
	var operators string
	flag.StringVar(&operators, "operators", "", "预置操作员，格式: id=role1|role2,id2=role")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions("referral-seed"))
	defer logger.Sync()
	stdLog := logger.StdLogger()
	cfg.Queue.Enabled = false

	db, err := models.OpenDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false)
	if err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(db); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	container := provider.NewContainer(cfg, db)
	defer container.Close()
	ctx := context.Background()

	// 预置活动
	existing, _, err := container.CampaignService.List(ctx, service.SystemOperator(), repository.CampaignListFilter{
		Search:   demoCampaignName,
		Page:     1,
		PageSize: 1,
	})
	if err != nil {
		stdLog.Fatalf("Failed to load campaigns: %v", err)
	}
	if len(existing) > 0 {
		stdLog.Printf("Campaign already exists: %d", existing[0].ID)
	} else {
		windowDays := cfg.Referral.DefaultWindowDays
		if windowDays <= 0 {
			windowDays = 30
		}
		campaign, err := container.CampaignService.Create(ctx, service.SystemOperator(), service.CampaignInput{
			Name:              demoCampaignName,
			WindowDays:        windowDays,
			AttributionModel:  constants.AttributionFirst,
			BlockSelfReferral: true,
			Currency:          constants.CurrencyDefault,
			Rules: []models.RewardRule{
				{Beneficiary: constants.BeneficiaryReferrer, RewardType: constants.RewardTypeCash, Amount: models.MustMoney("20.00")},
				{Beneficiary: constants.BeneficiaryReferee, RewardType: constants.RewardTypeCoupon, Amount: models.MustMoney("10.00"), Spec: map[string]interface{}{"coupon_template": "WELCOME10"}},
			},
		})
		if err != nil {
			stdLog.Fatalf("Failed to create campaign: %v", err)
		}
		stdLog.Printf("Created campaign: %d (%s)", campaign.ID, campaign.Name)
	}

	// 预置操作员角色
	for id, roles := range parseOperators(operators) {
		if err := container.AuthzService.SetOperatorRoles(id, roles); err != nil {
			stdLog.Printf("Failed to assign roles for operator %s: %v", id, err)
			continue
		}
		access, err := container.AuthzService.DescribeOperator(id)
		if err != nil {
			stdLog.Printf("Failed to describe operator %s: %v", id, err)
			continue
		}
		stdLog.Printf("Operator %s roles=%v", id, access.Roles)
		for _, policy := range access.Policies {
			stdLog.Printf("  %s -> %s:%s", policy.Subject, policy.Object, policy.Action)
		}
	}

	stdLog.Println("Seed completed")
}

func parseOperators(raw string) map[string][]string {
	result := make(map[string][]string)
	for _, item := range strings.Split(raw, ",") {
		id, roles, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok || strings.TrimSpace(id) == "" {
			continue
		}
		for _, role := range strings.Split(roles, "|") {
			if role = strings.TrimSpace(role); role != "" {
				result[strings.TrimSpace(id)] = append(result[strings.TrimSpace(id)], role)
			}
		}
	}
	return result
}
