package cache

import (
	"context"
	"time"

	"Outreachly/storage/redis"
)

// 消费者幂等标记，SetNX 保证同一条事件只被处理一次
const (
	eventPrefix = "events"

	processingTTL = 10 * time.Minute
	processedTTL  = 24 * time.Hour
)

// TryMarkMessageProcessing 抢占事件处理权，返回 false 表示已有消费者在处理或已处理完
func TryMarkMessageProcessing(ctx context.Context, messageID string) (bool, error) {
	key := redis.Key(eventPrefix, "processing", messageID)

	return redis.Client().SetNX(ctx, key, 1, processingTTL).Result()
}

// MarkMessageProcessed 处理完成后延长标记，覆盖 MQ 重投窗口
func MarkMessageProcessed(ctx context.Context, messageID string) error {
	key := redis.Key(eventPrefix, "processing", messageID)

	return redis.Client().Set(ctx, key, 1, processedTTL).Err()
}

// ReleaseMessage 处理失败时释放标记，让重投的消息可以重试
func ReleaseMessage(ctx context.Context, messageID string) error {
	key := redis.Key(eventPrefix, "processing", messageID)

	return redis.Client().Del(ctx, key).Err()
}
