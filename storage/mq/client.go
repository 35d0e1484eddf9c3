package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"Outreachly/config"
)

// 活动生命周期事件走 topic exchange，worker 按路由键订阅
const (
	CampaignEventsExchange = "campaigns.events"

	HeatmapQueue = "campaigns.events.heatmap"

	RoutingKeyCampaignStarted  = "campaign.started"
	RoutingKeyCampaignFinished = "campaign.finished"
)

var (
	conn     *amqp.Connection
	connOnce sync.Once
	connErr  error
)

func Init() error {
	connOnce.Do(func() {
		url := config.Cfg.GetRabbitMQURL()
		conn, connErr = amqp.Dial(url)
		if connErr != nil {
			return
		}

		connErr = declareTopology()
	})

	return connErr
}

func Connection() *amqp.Connection {
	return conn
}

// declareTopology 声明 exchange / queue / binding，幂等操作
func declareTopology() error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel for topology: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		CampaignEventsExchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", CampaignEventsExchange, err)
	}

	if _, err := ch.QueueDeclare(
		HeatmapQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", HeatmapQueue, err)
	}

	for _, key := range []string{RoutingKeyCampaignStarted, RoutingKeyCampaignFinished} {
		if err := ch.QueueBind(HeatmapQueue, key, CampaignEventsExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %w", HeatmapQueue, key, err)
		}
	}

	return nil
}

func Close(ctx context.Context) error {
	if conn == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
