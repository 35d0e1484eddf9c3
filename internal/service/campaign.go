package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"Outreachly/internal/cache"
	"Outreachly/internal/dispatch"
	"Outreachly/internal/model"
	"Outreachly/internal/model/dto"
	"Outreachly/internal/repository"
	pkgerrors "Outreachly/pkg/errors"
	"Outreachly/pkg/logger"
	"Outreachly/pkg/snowflake"
)

var (
	campaignService *CampaignService
	campaignOnce    sync.Once
)

func Campaign() *CampaignService {
	campaignOnce.Do(func() {
		campaignService = NewCampaignService(
			repository.Campaigns(),
			dispatch.DefaultRunner(),
			redisHeatmapCache{},
		)
	})

	return campaignService
}

// CampaignStore service 层用到的持久化操作
type CampaignStore interface {
	FindAll(ctx context.Context, orgID int64) ([]model.Campaign, error)
	FindOne(ctx context.Context, orgID, publicID int64) (*model.Campaign, error)
	Create(ctx context.Context, campaign *model.Campaign) error
	UpdateTags(ctx context.Context, orgID, publicID int64, tags model.StringList) error
	Delete(ctx context.Context, campaignID int64) error
	ClaimForSending(ctx context.Context, campaignID int64) (bool, error)
	Cancel(ctx context.Context, campaignID int64) (bool, error)
	VerifyAccountOwnership(ctx context.Context, orgID int64, accountID string) (bool, error)
	FindTemplate(ctx context.Context, orgID, publicID int64) (*model.MessageTemplate, error)
	FindLists(ctx context.Context, orgID int64, publicIDs []int64) ([]model.ContactList, error)
	HeatmapRows(ctx context.Context, orgID int64) ([]model.Campaign, error)
}

// Launcher 抢占成功后的异步投递入口
type Launcher interface {
	Launch(campaignID, orgID int64)
}

// HeatmapCache 热力图缓存，未命中返回 (nil, false, nil)
type HeatmapCache interface {
	Get(ctx context.Context, orgID int64) (dto.Heatmap, bool, error)
	Set(ctx context.Context, orgID int64, heatmap dto.Heatmap) error
}

type redisHeatmapCache struct{}

func (redisHeatmapCache) Get(ctx context.Context, orgID int64) (dto.Heatmap, bool, error) {
	return cache.GetHeatmap(ctx, orgID)
}

func (redisHeatmapCache) Set(ctx context.Context, orgID int64, heatmap dto.Heatmap) error {
	return cache.SetHeatmap(ctx, orgID, heatmap)
}

type CampaignService struct {
	store    CampaignStore
	launcher Launcher
	heatmap  HeatmapCache
}

func NewCampaignService(store CampaignStore, launcher Launcher, heatmap HeatmapCache) *CampaignService {
	return &CampaignService{
		store:    store,
		launcher: launcher,
		heatmap:  heatmap,
	}
}

func (s *CampaignService) ListCampaigns(ctx context.Context, orgID int64) ([]dto.CampaignView, error) {
	campaigns, err := s.store.FindAll(ctx, orgID)
	if err != nil {
		return nil, err
	}

	views := make([]dto.CampaignView, 0, len(campaigns))
	for i := range campaigns {
		views = append(views, dto.NewCampaignView(&campaigns[i]))
	}

	return views, nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, orgID, publicID int64) (*dto.CampaignView, error) {
	campaign, err := s.store.FindOne(ctx, orgID, publicID)
	if err != nil {
		return nil, err
	}

	view := dto.NewCampaignView(campaign)
	return &view, nil
}

// CreateCampaign 创建活动
// 名单渠道必须与模板渠道一致，混搭在创建时即拒绝
func (s *CampaignService) CreateCampaign(
	ctx context.Context,
	orgID int64,
	userID string,
	req dto.CreateCampaignRequest,
) (*dto.CampaignView, error) {
	if len(req.ListIDs) == 0 {
		return nil, pkgerrors.CampaignListsEmpty
	}

	owned, err := s.store.VerifyAccountOwnership(ctx, orgID, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, pkgerrors.AccountNotConnected
	}

	template, err := s.store.FindTemplate(ctx, orgID, req.MessageID)
	if err != nil {
		return nil, err
	}

	lists, err := s.store.FindLists(ctx, orgID, req.ListIDs)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, list := range lists {
		if list.Type != template.Type {
			return nil, pkgerrors.ListChannelMismatch
		}
		total += len(list.Contacts)
	}

	publicID, err := snowflake.NextID()
	if err != nil {
		return nil, err
	}

	status := model.CampaignStatusDraft
	if req.ScheduledAt != nil {
		status = model.CampaignStatusScheduled
	}

	campaign := &model.Campaign{
		PublicID:    publicID,
		OrgID:       orgID,
		UserID:      userID,
		Name:        req.Name,
		MessageID:   template.ID,
		AccountID:   req.AccountID,
		Status:      status,
		Total:       total,
		ScheduledAt: req.ScheduledAt,
		Tags:        model.StringList(req.Tags),
		Lists:       lists,
	}

	if err := s.store.Create(ctx, campaign); err != nil {
		return nil, err
	}

	logger.Logger.Info("Campaign created",
		zap.Int64("campaign_id", campaign.PublicID),
		zap.Int64("org_id", orgID),
		zap.String("status", string(status)),
		zap.Int("total", total),
	)

	campaign.Message = template
	view := dto.NewCampaignView(campaign)
	return &view, nil
}

func (s *CampaignService) UpdateTags(
	ctx context.Context,
	orgID, publicID int64,
	tags []string,
) (*dto.CampaignView, error) {
	if tags == nil {
		tags = []string{}
	}

	if err := s.store.UpdateTags(ctx, orgID, publicID, model.StringList(tags)); err != nil {
		return nil, err
	}

	return s.GetCampaign(ctx, orgID, publicID)
}

// SendCampaign 手动触发投递
// 抢占成功才启动 Runner，并发触发只有一个能进 SENDING
func (s *CampaignService) SendCampaign(ctx context.Context, orgID, publicID int64) (*dto.SendCampaignResponse, error) {
	campaign, err := s.store.FindOne(ctx, orgID, publicID)
	if err != nil {
		return nil, err
	}

	// 终态活动不支持重发，直接按冲突拒绝
	if campaign.Status.IsTerminal() {
		return nil, pkgerrors.CampaignAlreadySending
	}

	claimed, err := s.store.ClaimForSending(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, pkgerrors.CampaignAlreadySending
	}

	s.launcher.Launch(campaign.ID, orgID)

	logger.Logger.Info("Campaign send triggered",
		zap.Int64("campaign_id", publicID),
		zap.Int64("org_id", orgID),
		zap.Int("total", campaign.Total),
	)

	return &dto.SendCampaignResponse{
		Status: string(model.CampaignStatusSending),
		Total:  campaign.Total,
	}, nil
}

// CancelCampaign 只有 SCHEDULED 可以取消，回到 DRAFT
func (s *CampaignService) CancelCampaign(ctx context.Context, orgID, publicID int64) (*dto.CancelCampaignResponse, error) {
	campaign, err := s.store.FindOne(ctx, orgID, publicID)
	if err != nil {
		return nil, err
	}

	cancelled, err := s.store.Cancel(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		return nil, pkgerrors.CampaignNotCancellable
	}

	logger.Logger.Info("Campaign cancelled",
		zap.Int64("campaign_id", publicID),
		zap.Int64("org_id", orgID),
	)

	return &dto.CancelCampaignResponse{
		Status: string(model.CampaignStatusDraft),
	}, nil
}

// DeleteCampaign 软删除，投递中的活动不允许删
func (s *CampaignService) DeleteCampaign(ctx context.Context, orgID, publicID int64) error {
	campaign, err := s.store.FindOne(ctx, orgID, publicID)
	if err != nil {
		return err
	}

	if campaign.Status == model.CampaignStatusSending {
		return pkgerrors.CampaignDeleteSending
	}

	if err := s.store.Delete(ctx, campaign.ID); err != nil {
		return err
	}

	logger.Logger.Info("Campaign deleted",
		zap.Int64("campaign_id", publicID),
		zap.Int64("org_id", orgID),
	)

	return nil
}

// ScheduleHeatmap 按日期分桶的活动量视图
// 桶的 key 取 scheduled_at，没有定时的取 created_at
func (s *CampaignService) ScheduleHeatmap(ctx context.Context, orgID int64) (dto.Heatmap, error) {
	if cached, hit, err := s.heatmap.Get(ctx, orgID); err == nil && hit {
		return cached, nil
	} else if err != nil {
		logger.Logger.Warn("Heatmap cache read failed",
			zap.Int64("org_id", orgID),
			zap.Error(err),
		)
	}

	rows, err := s.store.HeatmapRows(ctx, orgID)
	if err != nil {
		return nil, err
	}

	heatmap := dto.Heatmap{}
	for i := range rows {
		c := &rows[i]

		bucketAt := c.CreatedAt
		if c.ScheduledAt != nil {
			bucketAt = *c.ScheduledAt
		}
		date := bucketAt.Format("2006-01-02")

		entry := heatmap[date]
		entry.Count++
		entry.Campaigns = append(entry.Campaigns, dto.HeatmapCampaign{
			Name:   c.Name,
			Status: string(c.Status),
			Total:  c.Total,
		})
		heatmap[date] = entry
	}

	if err := s.heatmap.Set(ctx, orgID, heatmap); err != nil {
		logger.Logger.Warn("Heatmap cache write failed",
			zap.Int64("org_id", orgID),
			zap.Error(err),
		)
	}

	return heatmap, nil
}
