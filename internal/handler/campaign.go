package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"Outreachly/internal/middleware"
	"Outreachly/internal/model/dto"
	"Outreachly/internal/service"
	pkgerrors "Outreachly/pkg/errors"
	"Outreachly/pkg/response"
)

// campaignID 解析路径参数里的活动 public_id
func campaignID(c *app.RequestContext) (int64, error) {
	raw := c.Param("campaign_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.CampaignNotFound
	}

	return id, nil
}

// ListCampaigns 列出当前组织的所有活动
// GET /v1/campaigns
func ListCampaigns(ctx context.Context, c *app.RequestContext) {
	orgID, ok := middleware.GetOrgID(ctx, c)
	if !ok {
		response.Error(ctx, c, pkgerrors.InvalidOrgID)
		return
	}

	views, err := service.Campaign().ListCampaigns(ctx, orgID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, views)
}

// GetCampaign 活动详情，包含名单联系人和投递日志
// GET /v1/campaigns/:campaign_id
func GetCampaign(ctx context.Context, c *app.RequestContext) {
	orgID, ok := middleware.GetOrgID(ctx, c)
	if !ok {
		response.Error(ctx, c, pkgerrors.InvalidOrgID)
		return
	}

	id, err := campaignID(c)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	view, err := service.Campaign().GetCampaign(ctx, orgID, id)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, view)
}

// CreateCampaign 创建活动，带 scheduled_at 直接进入 SCHEDULED
// POST /v1/campaigns
func CreateCampaign(ctx context.Context, c *app.RequestContext) {
	orgID, ok := middleware.GetOrgID(ctx, c)
	if !ok {
		response.Error(ctx, c, pkgerrors.InvalidOrgID)
		return
	}

	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, pkgerrors.InvalidUserID)
		return
	}

	var req dto.CreateCampaignRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	view, err := service.Campaign().CreateCampaign(ctx, orgID, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, view)
}

// UpdateCampaignTags 更新活动标签
// PATCH /v1/campaigns/:campaign_id/tags
func UpdateCampaignTags(ctx context.Context, c *app.RequestContext) {
	orgID, ok := middleware.GetOrgID(ctx, c)
	if !ok {
		response.Error(ctx, c, pkgerrors.InvalidOrgID)
		return
	}

	id, err := campaignID(c)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	var req dto.UpdateTagsRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	view, err := service.Campaign().UpdateTags(ctx, orgID, id, req.Tags)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, view)
}

// SendCampaign 手动触发投递，立即返回，发送在后台进行
// POST /v1/campaigns/:campaign_id/send
func SendCampaign(ctx context.Context, c *app.RequestContext) {
	orgID, ok := middleware.GetOrgID(ctx, c)
	if !ok {
		response.Error(ctx, c, pkgerrors.InvalidOrgID)
		return
	}

	id, err := campaignID(c)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	resp, err := service.Campaign().SendCampaign(ctx, orgID, id)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, resp)
}

// CancelCampaign 取消定时活动
// POST /v1/campaigns/:campaign_id/cancel
func CancelCampaign(ctx context.Context, c *app.RequestContext) {
	orgID, ok := middleware.GetOrgID(ctx, c)
	if !ok {
		response.Error(ctx, c, pkgerrors.InvalidOrgID)
		return
	}

	id, err := campaignID(c)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	resp, err := service.Campaign().CancelCampaign(ctx, orgID, id)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, resp)
}

// DeleteCampaign 删除活动
// DELETE /v1/campaigns/:campaign_id
func DeleteCampaign(ctx context.Context, c *app.RequestContext) {
	orgID, ok := middleware.GetOrgID(ctx, c)
	if !ok {
		response.Error(ctx, c, pkgerrors.InvalidOrgID)
		return
	}

	id, err := campaignID(c)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	if err := service.Campaign().DeleteCampaign(ctx, orgID, id); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.NoContent(ctx, c)
}

// GetScheduleHeatmap 按日期分桶的活动量
// GET /v1/campaigns/schedule
func GetScheduleHeatmap(ctx context.Context, c *app.RequestContext) {
	orgID, ok := middleware.GetOrgID(ctx, c)
	if !ok {
		response.Error(ctx, c, pkgerrors.InvalidOrgID)
		return
	}

	heatmap, err := service.Campaign().ScheduleHeatmap(ctx, orgID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, heatmap)
}
