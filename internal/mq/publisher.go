package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/meshforge/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeWorldgenJob    MessageType = "worldgen.job"
	MessageTypeWorldgenResult MessageType = "worldgen.result"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// PublishOptions — свойства AMQP сообщения для запрос/ответ.
type PublishOptions struct {
	// ReplyTo — очередь для ответа.
	ReplyTo string

	// CorrelationID — связывает ответ с запросом.
	CorrelationID string

	// Transient — не сохранять сообщение на диск (ответы в exclusive очереди).
	Transient bool
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, opts PublishOptions) error {
	publishing, err := buildPublishing(msg, opts)
	if err != nil {
		return err
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			publishing,
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
			"correlation_id", opts.CorrelationID,
		)

		return nil
	})
}

// buildPublishing собирает AMQP сообщение.
func buildPublishing(msg *Message, opts PublishOptions) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}

	mode := amqp.Persistent // задание переживёт рестарт RabbitMQ
	if opts.Transient {
		mode = amqp.Transient
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  mode,
		MessageId:     msg.ID,
		Timestamp:     msg.Timestamp,
		Type:          string(msg.Type),
		ReplyTo:       opts.ReplyTo,
		CorrelationId: opts.CorrelationID,
		Body:          body,
	}, nil
}

// PublishJob публикует задание генерации.
// Потребитель: GPU worker. Ответ придёт в очередь replyTo.
func (p *Publisher) PublishJob(ctx context.Context, job *domain.WorldgenJob, replyTo string) error {
	msg := NewMessage(MessageTypeWorldgenJob, job)
	return p.Publish(ctx, ExchangeWorldgen, RoutingKeyJob, msg, PublishOptions{
		ReplyTo:       replyTo,
		CorrelationID: job.ID.String(),
	})
}

// PublishReply публикует ответ на задание в очередь replyTo через default exchange.
func (p *Publisher) PublishReply(ctx context.Context, replyTo, correlationID string, result domain.WorldgenResult) error {
	msg := NewMessage(MessageTypeWorldgenResult, result)
	return p.Publish(ctx, ExchangeDefault, RoutingKey(replyTo), msg, PublishOptions{
		CorrelationID: correlationID,
		Transient:     true,
	})
}
