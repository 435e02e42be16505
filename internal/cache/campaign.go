package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/referral-rewards/internal/models"
)

// CampaignCache 活动配置读穿缓存
type CampaignCache struct {
	store *Store
}

// NewCampaignCache 创建活动缓存
func NewCampaignCache(store *Store) *CampaignCache {
	return &CampaignCache{store: store}
}

func campaignKey(id uint) string {
	return fmt.Sprintf("referral:campaign:%d", id)
}

// GetCampaign 读取缓存，未命中返回 nil
func (c *CampaignCache) GetCampaign(ctx context.Context, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	ok, err := c.store.GetJSON(ctx, campaignKey(id), &campaign)
	if err != nil || !ok {
		return nil, err
	}
	return &campaign, nil
}

// SetCampaign 写入缓存
func (c *CampaignCache) SetCampaign(ctx context.Context, campaign *models.Campaign, ttl time.Duration) error {
	if campaign == nil || campaign.ID == 0 {
		return nil
	}
	return c.store.SetJSON(ctx, campaignKey(campaign.ID), campaign, ttl)
}

// DeleteCampaign 失效缓存
func (c *CampaignCache) DeleteCampaign(ctx context.Context, id uint) error {
	return c.store.Del(ctx, campaignKey(id))
}
