package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"Outreachly/internal/cache"
	pkgerrors "Outreachly/pkg/errors"
	"Outreachly/pkg/logger"
	"Outreachly/storage/mq"
)

// worker 侧消费者
// 活动开始/结束事件都会让该组织的热力图缓存失效

// StartHeatmapConsumer 阻塞消费热力图失效队列
func StartHeatmapConsumer() error {
	return mq.Consume(mq.ConsumeOptions{
		Queue:         mq.HeatmapQueue,
		ConsumerTag:   "heatmap-invalidator",
		PrefetchCount: 10,
		Handler:       wrapHandler(handleCampaignEvent),
	})
}

// wrapHandler 把 SkipMessageError 转成 Ack，其他错误照常 Nack 重投
func wrapHandler(handler func([]byte) error) mq.MessageHandler {
	return func(body []byte) error {
		err := handler(body)
		if err == nil {
			return nil
		}

		var skip *pkgerrors.SkipMessageError
		if errors.As(err, &skip) {
			logger.Logger.Info("Skipping message",
				zap.String("reason", skip.Reason),
			)
			return nil
		}

		return err
	}
}

// campaignEvent 两种生命周期事件共有的字段
type campaignEvent struct {
	MessageID  string `json:"message_id"`
	CampaignID int64  `json:"campaign_id"`
	OrgID      int64  `json:"org_id"`
}

func handleCampaignEvent(body []byte) error {
	var event campaignEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return &pkgerrors.SkipMessageError{Reason: fmt.Sprintf("malformed event: %v", err)}
	}

	if event.MessageID == "" || event.OrgID == 0 {
		return &pkgerrors.SkipMessageError{Reason: "event missing message_id or org_id"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	claimed, err := cache.TryMarkMessageProcessing(ctx, event.MessageID)
	if err != nil {
		return fmt.Errorf("failed to check event idempotency: %w", err)
	}
	if !claimed {
		return &pkgerrors.SkipMessageError{Reason: "event already processed"}
	}

	if err := cache.InvalidateHeatmap(ctx, event.OrgID); err != nil {
		// 释放标记让重投的消息重试
		if relErr := cache.ReleaseMessage(ctx, event.MessageID); relErr != nil {
			logger.Logger.Warn("Failed to release event mark",
				zap.String("message_id", event.MessageID),
				zap.Error(relErr),
			)
		}
		return fmt.Errorf("failed to invalidate heatmap cache: %w", err)
	}

	if err := cache.MarkMessageProcessed(ctx, event.MessageID); err != nil {
		logger.Logger.Warn("Failed to extend event mark",
			zap.String("message_id", event.MessageID),
			zap.Error(err),
		)
	}

	logger.Logger.Info("Heatmap cache invalidated",
		zap.String("message_id", event.MessageID),
		zap.Int64("campaign_id", event.CampaignID),
		zap.Int64("org_id", event.OrgID),
	)

	return nil
}

// StartAllConsumers 启动所有消费者并阻塞到 ctx 取消
// 消费循环异常退出后延迟重启
func StartAllConsumers(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if err := StartHeatmapConsumer(); err != nil {
				logger.Logger.Error("Heatmap consumer exited",
					zap.Error(err),
				)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()

	<-ctx.Done()
}
