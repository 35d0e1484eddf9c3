package dispatch

// 定时活动调度器：周期扫描到期的 SCHEDULED 活动，抢占后交给 Runner
// 生命周期由进程持有的 context 控制，退出时随进程停止

import (
	"context"
	"time"

	"go.uber.org/zap"

	"Outreachly/config"
	"Outreachly/internal/model"
	"Outreachly/internal/repository"
	"Outreachly/pkg/logger"
	"Outreachly/pkg/metrics"
)

// SchedulerStore 调度器需要的持久化操作
type SchedulerStore interface {
	DueScheduled(ctx context.Context, now time.Time) ([]model.Campaign, error)
	ClaimForSending(ctx context.Context, campaignID int64) (bool, error)
}

// Launcher 抢占成功后的投递入口
type Launcher interface {
	Launch(campaignID, orgID int64)
}

type Scheduler struct {
	store    SchedulerStore
	launcher Launcher
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
}

// NewScheduler 按配置构造生产环境调度器
func NewScheduler(runner *Runner) *Scheduler {
	return NewSchedulerWith(
		repository.Campaigns(),
		runner,
		time.Duration(config.Cfg.SchedulerIntervalSeconds)*time.Second,
	)
}

func NewSchedulerWith(store SchedulerStore, launcher Launcher, interval time.Duration) *Scheduler {
	return &Scheduler{
		store:    store,
		launcher: launcher,
		logger:   logger.Logger,
		interval: interval,
		now:      time.Now,
	}
}

// Run 阻塞轮询直到 ctx 取消
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Campaign scheduler started",
		zap.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Campaign scheduler stopped")
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll 单次扫描，每个到期活动先抢占再投递
// 多实例同时轮询时条件更新保证每个活动只被提升一次
func (s *Scheduler) Poll(ctx context.Context) {
	due, err := s.store.DueScheduled(ctx, s.now())
	if err != nil {
		s.logger.Error("Failed to query due campaigns", zap.Error(err))
		return
	}

	for _, campaign := range due {
		claimed, err := s.store.ClaimForSending(ctx, campaign.ID)
		if err != nil {
			s.logger.Error("Failed to claim due campaign",
				zap.Int64("campaign_id", campaign.ID),
				zap.Error(err),
			)
			continue
		}
		if !claimed {
			// 手动触发或其他实例已抢到
			continue
		}

		s.logger.Info("Promoting scheduled campaign",
			zap.Int64("campaign_id", campaign.ID),
			zap.String("name", campaign.Name),
		)

		if m := metrics.GetMetrics(); m != nil {
			m.RecordCampaignPromoted(ctx)
		}

		s.launcher.Launch(campaign.ID, campaign.OrgID)
	}
}
