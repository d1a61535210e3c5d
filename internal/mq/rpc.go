package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/meshforge/internal/domain"
)

// defaultReplyTimeout — сколько ждать ответа, если таймаут не задан.
const defaultReplyTimeout = time.Hour

// pendingCalls — ожидающие ответа запросы (correlation id → канал ответа).
type pendingCalls struct {
	mu     sync.Mutex
	calls  map[string]chan domain.WorldgenResult
	closed bool
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{calls: make(map[string]chan domain.WorldgenResult)}
}

// register регистрирует ожидание ответа.
func (p *pendingCalls) register(id string) (<-chan domain.WorldgenResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrReplyConsumerClosed
	}
	ch := make(chan domain.WorldgenResult, 1)
	p.calls[id] = ch
	return ch, nil
}

// resolve доставляет ответ. Возвращает false для неизвестного id
// (ответ на запрос, который уже отменён по таймауту).
func (p *pendingCalls) resolve(id string, res domain.WorldgenResult) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.calls[id]
	if !ok {
		return false
	}
	delete(p.calls, id)
	ch <- res
	return true
}

// forget удаляет ожидание без ответа.
func (p *pendingCalls) forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.calls, id)
}

// close закрывает все ожидающие каналы.
func (p *pendingCalls) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.calls {
		close(ch)
		delete(p.calls, id)
	}
}

// RPCClient отправляет задания worldgen и ждёт ответы.
//
// Ответы приходят в exclusive reply-очередь с именем, выданным сервером.
// Очередь живёт, пока живо соединение: после reconnect ожидающие
// вызовы завершаются с ErrReplyConsumerClosed.
type RPCClient struct {
	conn      *Connection
	publisher *Publisher
	logger    *slog.Logger
	timeout   time.Duration

	replyQueue string
	channel    *amqp.Channel
	pending    *pendingCalls
	done       chan struct{}
}

// RPCConfig — конфигурация RPCClient.
type RPCConfig struct {
	// ReplyTimeout — таймаут ожидания одного ответа (default: 1h).
	ReplyTimeout time.Duration

	// Logger
	Logger *slog.Logger
}

// NewRPCClient создаёт RPCClient.
func NewRPCClient(conn *Connection, cfg RPCConfig) *RPCClient {
	timeout := cfg.ReplyTimeout
	if timeout <= 0 {
		timeout = defaultReplyTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RPCClient{
		conn:      conn,
		publisher: NewPublisher(conn, logger),
		logger:    logger,
		timeout:   timeout,
		pending:   newPendingCalls(),
		done:      make(chan struct{}),
	}
}

// Start объявляет reply-очередь и запускает приём ответов.
func (c *RPCClient) Start(ctx context.Context) error {
	ch, err := c.conn.OpenChannel()
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		"",    // name — выдаст сервер
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("declare reply queue: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer tag
		true,   // auto-ack — ответы не повторяются
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("consume reply queue: %w", err)
	}

	c.channel = ch
	c.replyQueue = q.Name
	c.logger.Info("reply queue ready", "queue", q.Name)

	go c.receive(ctx, deliveries)
	return nil
}

// receive раздаёт ответы ожидающим вызовам.
func (c *RPCClient) receive(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer close(c.done)
	defer c.pending.close()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				c.logger.Warn("reply queue closed", "queue", c.replyQueue)
				return
			}
			c.dispatch(raw.CorrelationId, raw.Body)
		}
	}
}

// dispatch разбирает ответ и передаёт его вызову с тем же correlation id.
func (c *RPCClient) dispatch(correlationID string, body []byte) {
	msg, err := DecodeMessage(body)
	if err != nil {
		c.logger.Error("failed to unmarshal reply", "correlation_id", correlationID, "error", err)
		return
	}

	result, err := ParsePayload[domain.WorldgenResult](&msg)
	if err != nil {
		c.logger.Error("failed to parse reply payload", "correlation_id", correlationID, "error", err)
		return
	}

	if !c.pending.resolve(correlationID, result) {
		c.logger.Warn("reply for unknown call", "correlation_id", correlationID)
	}
}

// Call отправляет задание и ждёт ответ.
//
// Ошибка генерации на стороне worker'а возвращается в WorldgenResult.Error,
// а не как error: error — только транспортные сбои и таймауты.
func (c *RPCClient) Call(ctx context.Context, job *domain.WorldgenJob) (domain.WorldgenResult, error) {
	if c.replyQueue == "" {
		return domain.WorldgenResult{}, ErrRPCNotStarted
	}

	id := job.ID.String()
	replyCh, err := c.pending.register(id)
	if err != nil {
		return domain.WorldgenResult{}, err
	}

	if err := c.publisher.PublishJob(ctx, job, c.replyQueue); err != nil {
		c.pending.forget(id)
		return domain.WorldgenResult{}, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res, ok := <-replyCh:
		if !ok {
			return domain.WorldgenResult{}, ErrReplyConsumerClosed
		}
		return res, nil
	case <-timer.C:
		c.pending.forget(id)
		return domain.WorldgenResult{}, fmt.Errorf("%w: job %s after %s", ErrReplyTimeout, id, c.timeout)
	case <-ctx.Done():
		c.pending.forget(id)
		return domain.WorldgenResult{}, ctx.Err()
	}
}

// ReplyQueue возвращает имя reply-очереди.
func (c *RPCClient) ReplyQueue() string {
	return c.replyQueue
}

// Close закрывает канал reply-очереди.
func (c *RPCClient) Close() error {
	if c.channel == nil {
		return nil
	}
	err := c.channel.Close()
	c.pending.close()
	return err
}
