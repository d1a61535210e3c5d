package gpuworker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/meshforge/internal/domain"
	"github.com/shaiso/meshforge/internal/mq"
)

const defaultPrefetch = 1

// Replier отправляет ответ клиенту. Реализуется *mq.Publisher.
type Replier interface {
	PublishReply(ctx context.Context, replyTo, correlationID string, result domain.WorldgenResult) error
}

// Observer учитывает задания в метриках. Реализуется *telemetry.Metrics.
type Observer interface {
	ObserveWorldgenJob(status string)
}

// Worker — потребитель очереди worldgen.jobs.
type Worker struct {
	conn      *mq.Connection
	replier   Replier
	processor *Processor
	observer  Observer
	prefetch  int

	consumer *mq.Consumer

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Worker.
type Config struct {
	Conn      *mq.Connection
	Replier   Replier
	Processor *Processor

	// Observer — опционально.
	Observer Observer

	// Prefetch — сколько заданий брать одновременно (default: 1, одна GPU).
	Prefetch int

	Logger *slog.Logger
}

// New создаёт Worker.
func New(cfg Config) *Worker {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		conn:      cfg.Conn,
		replier:   cfg.Replier,
		processor: cfg.Processor,
		observer:  cfg.Observer,
		prefetch:  prefetch,
		logger:    logger,
	}
}

// Start запускает consumer в отдельной горутине.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting gpu worker", "queue", mq.QueueWorldgenJobs, "prefetch", w.prefetch)

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueWorldgenJobs),
		Handler:  w.handleJob,
		Prefetch: w.prefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("job consumer error", "error", err)
		}
	}()

	return nil
}

// Stop останавливает Worker и ждёт текущее задание.
func (w *Worker) Stop() {
	w.logger.Info("stopping gpu worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}
	w.wg.Wait()

	w.logger.Info("gpu worker stopped")
}

// handleJob обрабатывает одно сообщение из очереди.
func (w *Worker) handleJob(ctx context.Context, delivery *mq.Delivery) error {
	job, err := mq.ParsePayload[domain.WorldgenJob](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse worldgen job", "error", err)
		w.observe(domain.JobStatusFailed)
		return fmt.Errorf("%w: %w", mq.ErrPoisonMessage, err)
	}

	result := w.processor.Process(ctx, &job)
	if result.Failed() {
		w.observe(domain.JobStatusFailed)
	} else {
		w.observe(domain.JobStatusSucceeded)
	}

	replyTo := delivery.ReplyTo()
	if replyTo == "" {
		w.logger.Warn("job has no reply-to, result dropped", "job_id", job.ID)
		return nil
	}

	correlationID := delivery.CorrelationID()
	if correlationID == "" {
		correlationID = job.ID.String()
	}

	if err := w.replier.PublishReply(ctx, replyTo, correlationID, result); err != nil {
		return fmt.Errorf("publish reply: %w", err)
	}
	return nil
}

func (w *Worker) observe(status domain.JobStatus) {
	if w.observer != nil {
		w.observer.ObserveWorldgenJob(string(status))
	}
}
