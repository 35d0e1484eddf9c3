package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics OpenTelemetry 指标集合
type OTelMetrics struct {
	// 投递相关指标
	MessagesSentTotal      metric.Int64Counter
	MessageSendDuration    metric.Float64Histogram
	ActiveCampaigns        metric.Int64UpDownCounter
	CampaignsFinishedTotal metric.Int64Counter
	CampaignsPromotedTotal metric.Int64Counter
}

var (
	// 全局指标实例
	metrics *OTelMetrics
	// meter 用于创建指标
	meter = otel.Meter("outreachly")
)

// InitMetrics 初始化 OpenTelemetry 指标
func InitMetrics() error {
	var err error

	metrics = &OTelMetrics{}

	metrics.MessagesSentTotal, err = meter.Int64Counter(
		"campaign_messages_total",
		metric.WithDescription("Total number of campaign messages attempted"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return err
	}

	metrics.MessageSendDuration, err = meter.Float64Histogram(
		"campaign_message_send_duration_seconds",
		metric.WithDescription("Time spent on a single gateway send in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	metrics.ActiveCampaigns, err = meter.Int64UpDownCounter(
		"campaigns_active",
		metric.WithDescription("Number of campaigns currently in SENDING"),
		metric.WithUnit("{campaign}"),
	)
	if err != nil {
		return err
	}

	metrics.CampaignsFinishedTotal, err = meter.Int64Counter(
		"campaigns_finished_total",
		metric.WithDescription("Total number of campaigns reaching a terminal status"),
		metric.WithUnit("{campaign}"),
	)
	if err != nil {
		return err
	}

	metrics.CampaignsPromotedTotal, err = meter.Int64Counter(
		"campaigns_promoted_total",
		metric.WithDescription("Total number of scheduled campaigns promoted to SENDING"),
		metric.WithUnit("{campaign}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// GetMetrics 获取全局指标实例
func GetMetrics() *OTelMetrics {
	return metrics
}

// RecordDelivery 记录一次投递尝试
func (m *OTelMetrics) RecordDelivery(ctx context.Context, channel, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("channel", channel),
		attribute.String("status", status),
	}

	m.MessagesSentTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.MessageSendDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("channel", channel),
	))
}

// AddActiveCampaign 活动进入 SENDING
func (m *OTelMetrics) AddActiveCampaign(ctx context.Context) {
	m.ActiveCampaigns.Add(ctx, 1)
}

// SubtractActiveCampaign 活动到达终态
func (m *OTelMetrics) SubtractActiveCampaign(ctx context.Context) {
	m.ActiveCampaigns.Add(ctx, -1)
}

// RecordCampaignFinished 记录活动终态
func (m *OTelMetrics) RecordCampaignFinished(ctx context.Context, status string) {
	m.CampaignsFinishedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

// RecordCampaignPromoted 记录一次定时活动的提升
func (m *OTelMetrics) RecordCampaignPromoted(ctx context.Context) {
	m.CampaignsPromotedTotal.Add(ctx, 1)
}
