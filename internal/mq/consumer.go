package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно сообщение.
//
// Ошибка определяет судьбу сообщения (см. Settle):
//   - nil                   → ack
//   - ErrPoisonMessage      → в DLQ
//   - иная ошибка           → повтор; повторная неудача — в DLQ
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Message — распарсенный конверт.
	Message Message

	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// ReplyTo возвращает очередь для ответа.
func (d *Delivery) ReplyTo() string {
	return d.Raw.ReplyTo
}

// CorrelationID возвращает correlation id запроса.
func (d *Delivery) CorrelationID() string {
	return d.Raw.CorrelationId
}

// Outcome — решение по обработанному сообщению.
type Outcome int

const (
	OutcomeAck Outcome = iota
	OutcomeRequeue
	OutcomeDeadLetter
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeRequeue:
		return "requeue"
	default:
		return "dead-letter"
	}
}

// Settle выбирает исход по ошибке обработчика.
// Сообщение повторяется не больше одного раза: уже переотправленное
// и снова упавшее уходит в DLQ, чтобы GPU не крутил его бесконечно.
func Settle(err error, redelivered bool) Outcome {
	switch {
	case err == nil:
		return OutcomeAck
	case errors.Is(err, ErrPoisonMessage), redelivered:
		return OutcomeDeadLetter
	default:
		return OutcomeRequeue
	}
}

// Consumer читает очередь на собственном канале и
// пересоздаёт его после переподключения.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	tag      string
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue   string
	Handler Handler

	// Tag — consumer tag (пусто — генерирует брокер).
	Tag string

	// Prefetch — сообщений в работе одновременно (default: 1).
	// Для GPU worker больше 1 не имеет смысла: задания выполняются по одному.
	Prefetch int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		tag:      cfg.Tag,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start блокирует до отмены ctx или Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consumer interrupted, waiting for reconnect", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

// session открывает канал, читает до его закрытия и закрывает канал.
func (c *Consumer) session(ctx context.Context) error {
	ch, err := c.conn.OpenChannel()
	if err != nil {
		return err
	}
	defer func() {
		if !ch.IsClosed() {
			ch.Close()
		}
	}()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.queue, c.tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.Info("consumer started", "prefetch", c.prefetch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, raw)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	msg, err := DecodeMessage(raw.Body)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPoisonMessage, err)
		c.settle(raw, "", err)
		return
	}

	c.logger.Debug("received message", "message_id", msg.ID, "type", msg.Type, "redelivered", raw.Redelivered)

	err = c.handler(ctx, &Delivery{Message: msg, Raw: raw})
	c.settle(raw, msg.ID, err)
}

func (c *Consumer) settle(raw amqp.Delivery, id string, err error) {
	outcome := Settle(err, raw.Redelivered)

	var ackErr error
	switch outcome {
	case OutcomeAck:
		ackErr = raw.Ack(false)
	case OutcomeRequeue:
		ackErr = raw.Nack(false, true)
	case OutcomeDeadLetter:
		ackErr = raw.Nack(false, false)
	}

	if err != nil {
		c.logger.Error("handler failed", "message_id", id, "outcome", outcome.String(), "error", err)
	}
	if ackErr != nil {
		c.logger.Warn("settle message", "message_id", id, "outcome", outcome.String(), "error", ackErr)
	}
}

// Stop прерывает Start.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// DecodeMessage разбирает тело AMQP сообщения.
// Payload остаётся json.RawMessage до ParsePayload.
func DecodeMessage(body []byte) (Message, error) {
	var envelope struct {
		ID        string          `json:"id"`
		Type      MessageType     `json:"type"`
		Payload   json.RawMessage `json:"payload"`
		Timestamp time.Time       `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Message{}, err
	}
	if envelope.Type == "" {
		return Message{}, errors.New("message type is empty")
	}
	return Message{
		ID:        envelope.ID,
		Type:      envelope.Type,
		Payload:   envelope.Payload,
		Timestamp: envelope.Timestamp,
	}, nil
}

// ParsePayload разбирает payload в T.
// Payload, собранный в памяти (не из очереди), сначала сериализуется.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, ok := msg.Payload.(json.RawMessage)
	if !ok {
		var err error
		raw, err = json.Marshal(msg.Payload)
		if err != nil {
			return result, fmt.Errorf("marshal payload: %w", err)
		}
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
