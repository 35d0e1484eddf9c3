package dispatch

// 投递执行器：活动被抢占为 SENDING 后，由独立 goroutine 逐个联系人投递
// 每个联系人发送前等待节奏间隔（首个除外），结果逐条落库

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"Outreachly/config"
	"Outreachly/internal/gateway"
	"Outreachly/internal/model"
	"Outreachly/internal/queue"
	"Outreachly/internal/repository"
	"Outreachly/pkg/logger"
	"Outreachly/pkg/metrics"
)

// signatureSeparator 邮件正文和签名之间的分隔
const signatureSeparator = "<br/><br/>--<br/>"

// Store Runner 需要的持久化操作
type Store interface {
	FindForDispatch(ctx context.Context, campaignID int64) (*model.Campaign, error)
	AccountSignature(ctx context.Context, orgID int64, accountID string) (string, error)
	AppendLog(ctx context.Context, log *model.CampaignLog) error
	UpdateProgress(ctx context.Context, campaignID int64, sent, failed int) error
	Finalize(ctx context.Context, campaignID int64, status model.CampaignStatus, sent, failed int) error
}

// Gateway 消息网关
type Gateway interface {
	SendEmail(ctx context.Context, params gateway.SendEmailParams) error
	SendChatMessage(ctx context.Context, chatID, text string, attachmentPaths []string) error
}

// Events 生命周期事件发布，实现可以是 MQ 也可以是空操作
type Events interface {
	CampaignStarted(msg queue.CampaignStartedMessage) error
	CampaignFinished(msg queue.CampaignFinishedMessage) error
}

type mqEvents struct{}

func (mqEvents) CampaignStarted(msg queue.CampaignStartedMessage) error {
	return queue.PublishCampaignStarted(msg)
}

func (mqEvents) CampaignFinished(msg queue.CampaignFinishedMessage) error {
	return queue.PublishCampaignFinished(msg)
}

type Runner struct {
	store      Store
	gateway    Gateway
	events     Events
	logger     *zap.Logger
	paceBase   time.Duration
	paceJitter time.Duration

	// sleep 可注入，测试时替换成直接返回
	sleep func(ctx context.Context, d time.Duration) error
}

var (
	defaultRunner *Runner
	runnerOnce    sync.Once
)

// DefaultRunner 返回共享的生产环境 Runner，HTTP 触发和调度器触发共用
func DefaultRunner() *Runner {
	runnerOnce.Do(func() {
		defaultRunner = NewRunner()
	})

	return defaultRunner
}

// NewRunner 按配置构造生产环境 Runner
func NewRunner() *Runner {
	return NewRunnerWith(
		repository.Campaigns(),
		gateway.Default(),
		mqEvents{},
		time.Duration(config.Cfg.DispatchPaceBaseMS)*time.Millisecond,
		time.Duration(config.Cfg.DispatchPaceJitterMS)*time.Millisecond,
	)
}

func NewRunnerWith(store Store, gw Gateway, events Events, paceBase, paceJitter time.Duration) *Runner {
	return &Runner{
		store:      store,
		gateway:    gw,
		events:     events,
		logger:     logger.Logger,
		paceBase:   paceBase,
		paceJitter: paceJitter,
		sleep:      sleepWithContext,
	}
}

// Launch 异步投递活动，调用方必须已通过条件更新把活动置为 SENDING
// 投递 goroutine 带 recover 边界，panic 时把活动收敛到 FAILED
func (r *Runner) Launch(campaignID, orgID int64) {
	go r.run(context.Background(), campaignID, orgID)
}

func (r *Runner) run(ctx context.Context, campaignID, orgID int64) {
	var sent, failed int

	// panic 时带着已落库的计数收敛到 FAILED
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Campaign dispatch panicked",
				zap.Int64("campaign_id", campaignID),
				zap.Any("panic", rec),
			)
			if err := r.store.Finalize(ctx, campaignID, model.CampaignStatusFailed, sent, failed); err != nil {
				r.logger.Error("Failed to finalize panicked campaign",
					zap.Int64("campaign_id", campaignID),
					zap.Error(err),
				)
			}
		}
	}()

	campaign, err := r.store.FindForDispatch(ctx, campaignID)
	if err != nil {
		r.logger.Error("Failed to load campaign for dispatch",
			zap.Int64("campaign_id", campaignID),
			zap.Error(err),
		)
		return
	}

	if campaign.Message == nil {
		r.logger.Error("Campaign has no message template",
			zap.Int64("campaign_id", campaignID),
		)
		if err := r.store.Finalize(ctx, campaignID, model.CampaignStatusFailed, 0, 0); err != nil {
			r.logger.Error("Failed to finalize campaign", zap.Int64("campaign_id", campaignID), zap.Error(err))
		}
		return
	}

	message := campaign.Message
	attachmentPaths := make([]string, 0, len(message.Attachments))
	for _, a := range message.Attachments {
		attachmentPaths = append(attachmentPaths, a.Path)
	}

	// 签名只拼进邮件正文，查询失败退回无签名
	emailBody := message.Body
	signature, err := r.store.AccountSignature(ctx, orgID, campaign.AccountID)
	if err != nil {
		r.logger.Warn("Failed to load account signature, sending without it",
			zap.Int64("campaign_id", campaignID),
			zap.String("account_id", campaign.AccountID),
			zap.Error(err),
		)
	} else if signature != "" {
		emailBody = message.Body + signatureSeparator + signature
	}

	if err := r.events.CampaignStarted(queue.CampaignStartedMessage{
		CampaignID: campaignID,
		OrgID:      orgID,
		Channel:    string(message.Type),
		Total:      campaign.Total,
	}); err != nil {
		r.logger.Warn("Failed to publish campaign started event",
			zap.Int64("campaign_id", campaignID),
			zap.Error(err),
		)
	}

	m := metrics.GetMetrics()
	if m != nil {
		m.AddActiveCampaign(ctx)
		defer m.SubtractActiveCampaign(ctx)
	}

	r.logger.Info("Campaign dispatch started",
		zap.Int64("campaign_id", campaignID),
		zap.String("name", campaign.Name),
		zap.Int("total", campaign.Total),
	)

	isFirst := true

	for _, list := range campaign.Lists {
		for _, contact := range list.Contacts {
			if !isFirst {
				delay := r.paceDelay()
				if err := r.sleep(ctx, delay); err != nil {
					r.logger.Warn("Campaign dispatch interrupted",
						zap.Int64("campaign_id", campaignID),
						zap.Error(err),
					)
					return
				}
			}
			isFirst = false

			deliverErr := r.deliver(ctx, campaign, list.Type, contact, emailBody, attachmentPaths)

			logEntry := &model.CampaignLog{
				CampaignID:        campaignID,
				ContactName:       contact.Name,
				ContactIdentifier: contact.Identifier,
				Status:            model.DeliveryStatusSent,
			}
			if deliverErr != nil {
				failed++
				msg := deliverErr.Error()
				logEntry.Status = model.DeliveryStatusFailed
				logEntry.Error = &msg
				r.logger.Warn("Delivery failed",
					zap.Int64("campaign_id", campaignID),
					zap.String("contact", contact.Identifier),
					zap.Error(deliverErr),
				)
			} else {
				sent++
			}

			if err := r.store.AppendLog(ctx, logEntry); err != nil {
				r.logger.Error("Failed to persist delivery log",
					zap.Int64("campaign_id", campaignID),
					zap.String("contact", contact.Identifier),
					zap.Error(err),
				)
			}

			if err := r.store.UpdateProgress(ctx, campaignID, sent, failed); err != nil {
				r.logger.Error("Failed to persist campaign progress",
					zap.Int64("campaign_id", campaignID),
					zap.Error(err),
				)
			}
		}
	}

	// 只有全军覆没才算 FAILED，零联系人的活动收敛为 SENT
	status := model.CampaignStatusSent
	if failed > 0 && sent == 0 {
		status = model.CampaignStatusFailed
	}

	if err := r.store.Finalize(ctx, campaignID, status, sent, failed); err != nil {
		r.logger.Error("Failed to finalize campaign",
			zap.Int64("campaign_id", campaignID),
			zap.Error(err),
		)
		return
	}

	if m != nil {
		m.RecordCampaignFinished(ctx, string(status))
	}

	if err := r.events.CampaignFinished(queue.CampaignFinishedMessage{
		CampaignID: campaignID,
		OrgID:      orgID,
		Status:     string(status),
		Sent:       sent,
		Failed:     failed,
	}); err != nil {
		r.logger.Warn("Failed to publish campaign finished event",
			zap.Int64("campaign_id", campaignID),
			zap.Error(err),
		)
	}

	r.logger.Info("Campaign dispatch finished",
		zap.Int64("campaign_id", campaignID),
		zap.String("status", string(status)),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)
}

// deliver 单个联系人投递，渠道由名单类型决定
func (r *Runner) deliver(
	ctx context.Context,
	campaign *model.Campaign,
	channel model.Channel,
	contact model.Contact,
	emailBody string,
	attachmentPaths []string,
) error {
	start := time.Now()

	var err error
	if channel.IsChat() {
		// 聊天渠道的 identifier 即会话 ID，正文不带签名
		err = r.gateway.SendChatMessage(ctx, contact.Identifier, campaign.Message.Body, attachmentPaths)
	} else {
		err = r.gateway.SendEmail(ctx, gateway.SendEmailParams{
			AccountID: campaign.AccountID,
			To: []gateway.Recipient{
				{DisplayName: contact.Name, Identifier: contact.Identifier},
			},
			Subject:         campaign.Message.Subject,
			Body:            emailBody,
			AttachmentPaths: attachmentPaths,
		})
	}

	if m := metrics.GetMetrics(); m != nil {
		status := string(model.DeliveryStatusSent)
		if err != nil {
			status = string(model.DeliveryStatusFailed)
		}
		m.RecordDelivery(ctx, string(channel), status, time.Since(start).Seconds())
	}

	return err
}

// paceDelay 基础间隔加随机抖动，模拟人工发送节奏
func (r *Runner) paceDelay() time.Duration {
	if r.paceJitter <= 0 {
		return r.paceBase
	}

	return r.paceBase + time.Duration(rand.Int63n(int64(r.paceJitter)))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
