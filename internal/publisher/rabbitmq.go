package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tweet_fetcher/internal/domain"
)

// RabbitMQ publishes collected records to a durable direct exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger.With("component", "publisher"),
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// RecordMessage is the JSON body of a published record.
type RecordMessage struct {
	Record         domain.Record `json:"record"`
	HasCoordinates bool          `json:"has_coordinates"`
	Timestamp      time.Time     `json:"timestamp"`
}

func newPublishing(record *domain.Record, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(RecordMessage{
		Record:         *record,
		HasCoordinates: record.HasCoordinates(),
		Timestamp:      now.UTC(),
	})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}

	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    record.PostID,
		Body:         body,
		Timestamp:    now,
	}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, record *domain.Record) error {
	msg, err := newPublishing(record, time.Now())
	if err != nil {
		return err
	}

	if err := r.channel.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published record", "post_id", record.PostID)
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
