// Package amqp publishes lifecycle events to a RabbitMQ topic exchange,
// keyed by event type, for systems that prefer a broker over webhooks.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      *zap.Logger
}

// NewPublisher dials the broker and declares the event exchange.
func NewPublisher(url, exchange string, log *zap.Logger) (*Publisher, error) {
	var conn *amqp.Connection
	var err error

	// Retry connection up to 10 times with backoff
	maxRetries := 10
	for i := 1; i <= maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			ch, chErr := conn.Channel()
			if chErr == nil {
				if declErr := ch.ExchangeDeclare(
					exchange, // name
					"topic",  // kind
					true,     // durable
					false,    // auto-delete
					false,    // internal
					false,    // no-wait
					nil,      // arguments
				); declErr != nil {
					conn.Close()
					return nil, fmt.Errorf("declare exchange %s: %w", exchange, declErr)
				}
				return &Publisher{
					conn:     conn,
					ch:       ch,
					exchange: exchange,
					log:      log,
				}, nil
			}
			err = chErr
			conn.Close()
		}

		log.Warn("Failed to connect to RabbitMQ, retrying...",
			zap.Int("attempt", i),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)

		// Simple incremental backoff
		time.Sleep(time.Duration(i*2) * time.Second)
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

// Notify publishes the payload with the event type as routing key.
// Publish failures are logged and swallowed.
func (p *Publisher) Notify(ctx context.Context, eventType string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("Failed to marshal event", zap.String("event", eventType), zap.Error(err))
		return
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchange, // Exchange
		eventType,  // Routing key
		false,      // Mandatory
		false,      // Immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		})
	if err != nil {
		p.log.Error("Failed to publish event", zap.String("event", eventType), zap.Error(err))
		return
	}

	p.log.Info("Published event", zap.String("event", eventType), zap.String("exchange", p.exchange))
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
