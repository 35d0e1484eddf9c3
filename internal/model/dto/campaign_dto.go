package dto

import "time"

// ========== Campaign 相关 DTO ==========

// CreateCampaignRequest 创建活动请求
// MessageID 与 ListIDs 均为 public_id；AccountID 为网关侧账号 ID
type CreateCampaignRequest struct {
	Name        string     `json:"name" binding:"required"`
	MessageID   int64      `json:"message_id" binding:"required"`
	ListIDs     []int64    `json:"list_ids" binding:"required"`
	AccountID   string     `json:"account_id" binding:"required"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// UpdateTagsRequest 更新活动标签请求
type UpdateTagsRequest struct {
	Tags []string `json:"tags" binding:"required"`
}

// SendCampaignResponse 手动触发发送的即时响应，Runner 在后台继续执行
type SendCampaignResponse struct {
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// CancelCampaignResponse 取消定时活动的响应
type CancelCampaignResponse struct {
	Status string `json:"status"`
}

// HeatmapCampaign 热力图中的活动摘要
type HeatmapCampaign struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// HeatmapEntry 单个日期桶
type HeatmapEntry struct {
	Count     int               `json:"count"`
	Campaigns []HeatmapCampaign `json:"campaigns"`
}

// Heatmap 按 YYYY-MM-DD 分桶的活动量视图
type Heatmap map[string]HeatmapEntry
