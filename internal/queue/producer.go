package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Outreachly/pkg/logger"
	"Outreachly/storage/mq"
)

// 生命周期事件是旁路通知，发布失败只记日志，不影响投递主流程

// PublishCampaignStarted 发布活动开始事件
func PublishCampaignStarted(msg CampaignStartedMessage) error {
	if msg.MessageID == "" {
		msg.MessageID = fmt.Sprintf("evt_%s", uuid.NewString())
	}
	if msg.OccurredAt == "" {
		msg.OccurredAt = time.Now().Format(time.RFC3339)
	}

	err := mq.PublishMessage(
		mq.CampaignEventsExchange,
		mq.RoutingKeyCampaignStarted,
		msg,
	)
	if err != nil {
		logger.Logger.Error("Failed to publish campaign started event",
			zap.String("message_id", msg.MessageID),
			zap.Int64("campaign_id", msg.CampaignID),
			zap.Error(err),
		)
		return err
	}

	logger.Logger.Info("Published campaign started event",
		zap.String("message_id", msg.MessageID),
		zap.Int64("campaign_id", msg.CampaignID),
		zap.Int("total", msg.Total),
	)

	return nil
}

// PublishCampaignFinished 发布活动结束事件
func PublishCampaignFinished(msg CampaignFinishedMessage) error {
	if msg.MessageID == "" {
		msg.MessageID = fmt.Sprintf("evt_%s", uuid.NewString())
	}
	if msg.OccurredAt == "" {
		msg.OccurredAt = time.Now().Format(time.RFC3339)
	}

	err := mq.PublishMessage(
		mq.CampaignEventsExchange,
		mq.RoutingKeyCampaignFinished,
		msg,
	)
	if err != nil {
		logger.Logger.Error("Failed to publish campaign finished event",
			zap.String("message_id", msg.MessageID),
			zap.Int64("campaign_id", msg.CampaignID),
			zap.String("status", msg.Status),
			zap.Error(err),
		)
		return err
	}

	logger.Logger.Info("Published campaign finished event",
		zap.String("message_id", msg.MessageID),
		zap.Int64("campaign_id", msg.CampaignID),
		zap.String("status", msg.Status),
		zap.Int("sent", msg.Sent),
		zap.Int("failed", msg.Failed),
	)

	return nil
}
