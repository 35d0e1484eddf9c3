package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"Outreachly/config"
	"Outreachly/internal/model/dto"
	"Outreachly/storage/redis"
)

// 热力图按组织缓存，活动生命周期事件触发失效
const heatmapPrefix = "heatmap"

func heatmapKey(orgID int64) string {
	return redis.Key(heatmapPrefix, fmt.Sprintf("%d", orgID))
}

// GetHeatmap 命中返回缓存的热力图，未命中返回 (nil, false, nil)
func GetHeatmap(ctx context.Context, orgID int64) (dto.Heatmap, bool, error) {
	raw, err := redis.Client().Get(ctx, heatmapKey(orgID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var heatmap dto.Heatmap
	if err := json.Unmarshal(raw, &heatmap); err != nil {
		// 缓存损坏当作未命中，由调用方重建
		return nil, false, nil
	}

	return heatmap, true, nil
}

func SetHeatmap(ctx context.Context, orgID int64, heatmap dto.Heatmap) error {
	raw, err := json.Marshal(heatmap)
	if err != nil {
		return fmt.Errorf("failed to marshal heatmap: %w", err)
	}

	ttl := time.Duration(config.Cfg.HeatmapCacheTTLSeconds) * time.Second

	return redis.Client().Set(ctx, heatmapKey(orgID), raw, ttl).Err()
}

func InvalidateHeatmap(ctx context.Context, orgID int64) error {
	return redis.Client().Del(ctx, heatmapKey(orgID)).Err()
}
