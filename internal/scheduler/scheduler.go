package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Ошибки планировщика.
var (
	// ErrInvalidCron — невалидное cron-выражение.
	ErrInvalidCron = errors.New("invalid cron expression")

	// ErrNoTrigger — не задана функция запуска.
	ErrNoTrigger = errors.New("trigger is required")

	// ErrAlreadyStarted — Start вызван повторно.
	ErrAlreadyStarted = errors.New("scheduler already started")

	// ErrBusy — предыдущий запуск ещё не завершён.
	ErrBusy = errors.New("pipeline run already in progress")

	// ErrStopped — TriggerNow после Stop.
	ErrStopped = errors.New("scheduler stopped")
)

// Trigger запускает одно выполнение pipeline.
type Trigger func(ctx context.Context) error

// Scheduler периодически запускает pipeline по cron-выражению.
//
// Запуски никогда не перекрываются: если предыдущий ещё идёт,
// очередной тик пропускается.
type Scheduler struct {
	expr     string
	trigger  Trigger
	location *time.Location
	logger   *slog.Logger

	running atomic.Bool
	manual  sync.WaitGroup

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
	stopped bool
	fired   int
	failed  int
}

// Config — конфигурация Scheduler.
type Config struct {
	// Expr — cron-выражение (5 полей или дескриптор).
	Expr string

	// Trigger — функция запуска. Обязательна.
	Trigger Trigger

	// Location — часовой пояс выражения (default: time.Local).
	Location *time.Location

	Logger *slog.Logger
}

// New создаёт Scheduler и проверяет выражение.
func New(cfg Config) (*Scheduler, error) {
	if err := ValidateCronExpr(cfg.Expr); err != nil {
		return nil, err
	}
	if cfg.Trigger == nil {
		return nil, ErrNoTrigger
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		expr:     cfg.Expr,
		trigger:  cfg.Trigger,
		location: loc,
		logger:   logger,
	}, nil
}

// Start регистрирует задачу и запускает cron в фоне.
// ctx передаётся в каждый запуск Trigger.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	logger := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(s.location),
		cron.WithLogger(logger),
	)
	if _, err := c.AddJob(s.expr, s.job(ctx)); err != nil {
		return err
	}

	c.Start()
	s.cron = c
	s.started = true
	s.stopped = false

	next, _ := NextRun(s.expr, time.Now().In(s.location))
	s.logger.Info("scheduler started", "cron", s.expr, "next_run", next)
	return nil
}

// job оборачивает Tick в цепочку cron: восстановление после panic
// и пропуск тика, пока идёт предыдущий запуск.
func (s *Scheduler) job(ctx context.Context) cron.Job {
	logger := cronLogger{logger: s.logger}
	return cron.NewChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	).Then(cron.FuncJob(func() {
		_ = s.Tick(ctx)
	}))
}

// Tick выполняет один запуск синхронно.
// Если запуск уже идёт (по cron или через TriggerNow), возвращает ErrBusy.
func (s *Scheduler) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still in progress, tick skipped")
		return ErrBusy
	}
	defer s.running.Store(false)

	return s.fire(ctx)
}

// TriggerNow запускает pipeline вне расписания в фоне.
// ctx должен жить дольше запроса, который инициировал запуск.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Add под mu: Stop не должен оказаться в manual.Wait одновременно с Add.
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return ErrBusy
	}
	s.manual.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.manual.Done()
		defer s.running.Store(false)
		_ = s.fire(ctx)
	}()
	return nil
}

// Running возвращает true, пока идёт запуск.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) fire(ctx context.Context) error {
	start := time.Now()
	s.logger.Info("scheduled run started")

	err := s.trigger(ctx)

	s.mu.Lock()
	s.fired++
	if err != nil {
		s.failed++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled run failed", "duration", time.Since(start), "error", err)
		return err
	}
	s.logger.Info("scheduled run completed", "duration", time.Since(start))
	return nil
}

// Stop останавливает cron и ждёт текущий запуск,
// включая запущенный через TriggerNow.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.started = false
	s.stopped = true
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	s.manual.Wait()
	s.logger.Info("scheduler stopped")
}

// Stats возвращает число выполненных и упавших запусков.
func (s *Scheduler) Stats() (fired, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired, s.failed
}
