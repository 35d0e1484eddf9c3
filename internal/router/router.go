package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"Outreachly/internal/handler"
	"Outreachly/internal/middleware"
)

func Register(h *server.Hertz) {

	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.OpenTelemetryMiddleware())

	v1 := h.Group("/v1")

	// 活动路由，全部需要鉴权
	campaigns := v1.Group("/campaigns")
	campaigns.Use(middleware.AuthMiddleware())
	{
		campaigns.GET("", handler.ListCampaigns)
		campaigns.POST("", handler.CreateCampaign)
		campaigns.GET("/schedule", handler.GetScheduleHeatmap)
		campaigns.GET("/:campaign_id", handler.GetCampaign)
		campaigns.PATCH("/:campaign_id/tags", handler.UpdateCampaignTags)
		campaigns.POST("/:campaign_id/send", handler.SendCampaign)
		campaigns.POST("/:campaign_id/cancel", handler.CancelCampaign)
		campaigns.DELETE("/:campaign_id", handler.DeleteCampaign)
	}
}
