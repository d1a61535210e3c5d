package worldgen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/meshforge/internal/domain"
)

// Transport отправляет задание и ждёт ответ. Реализуется *mq.RPCClient.
type Transport interface {
	Call(ctx context.Context, job *domain.WorldgenJob) (domain.WorldgenResult, error)
}

// Recorder — журнал заданий (например, PostgreSQL). Необязателен.
type Recorder interface {
	RecordJob(ctx context.Context, job *domain.WorldgenJob, status domain.JobStatus, res *domain.WorldgenResult) error
}

// Observer учитывает задания в метриках. Реализуется *telemetry.Metrics.
type Observer interface {
	ObserveWorldgenJob(status string)
}

// Submission — итог одного задания.
type Submission struct {
	Image  string                `json:"image"`
	Job    uuid.UUID             `json:"job_id"`
	Result domain.WorldgenResult `json:"result"`
}

// Submitter отправляет изображения в GPU-функцию.
type Submitter struct {
	transport Transport
	recorder  Recorder
	observer  Observer
	prompt    string
	maxSide   int
	mode      domain.WorldgenMode
	logger    *slog.Logger
}

// SubmitterConfig — конфигурация Submitter.
type SubmitterConfig struct {
	// Transport — обязателен.
	Transport Transport

	// Recorder, Observer — опциональны.
	Recorder Recorder
	Observer Observer

	Prompt  string
	MaxSide int // default: 2048
	Mode    domain.WorldgenMode

	Logger *slog.Logger
}

// NewSubmitter создаёт Submitter.
func NewSubmitter(cfg SubmitterConfig) *Submitter {
	maxSide := cfg.MaxSide
	if maxSide <= 0 {
		maxSide = domain.DefaultMaxSide
	}

	mode := cfg.Mode
	if mode == "" {
		mode = domain.WorldgenModeSplat
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Submitter{
		transport: cfg.Transport,
		recorder:  cfg.Recorder,
		observer:  cfg.Observer,
		prompt:    cfg.Prompt,
		maxSide:   maxSide,
		mode:      mode,
		logger:    logger,
	}
}

// NewJob читает изображение и собирает задание.
func (s *Submitter) NewJob(path string) (*domain.WorldgenJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	return &domain.WorldgenJob{
		ID:        uuid.New(),
		ImageName: filepath.Base(path),
		Image:     data,
		OutName:   domain.WorldgenOutName(Stem(path), s.mode),
		Prompt:    s.prompt,
		MaxSide:   s.maxSide,
		Mode:      s.mode,
		CreatedAt: time.Now(),
	}, nil
}

// SubmitAll отправляет все изображения по пути, строго по одному.
//
// Останавливается на первой ошибке: транспортной или ошибке генерации.
// Возвращает итоги уже обработанных заданий.
func (s *Submitter) SubmitAll(ctx context.Context, path string) ([]Submission, error) {
	images, err := CollectImages(path)
	if err != nil {
		return nil, err
	}

	s.logger.Info("submitting worldgen jobs", "input", absPath(path), "count", len(images))

	submissions := make([]Submission, 0, len(images))
	for _, img := range images {
		sub, err := s.Submit(ctx, img)
		if sub != nil {
			submissions = append(submissions, *sub)
		}
		if err != nil {
			return submissions, err
		}
	}

	return submissions, nil
}

// Submit отправляет одно изображение и ждёт ответ.
func (s *Submitter) Submit(ctx context.Context, path string) (*Submission, error) {
	job, err := s.NewJob(path)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With("job_id", job.ID.String(), "image", job.ImageName)
	logger.Info("job queued", "out_name", job.OutName)
	s.record(ctx, job, domain.JobStatusQueued, nil)

	res, err := s.transport.Call(ctx, job)
	if err != nil {
		s.observe(domain.JobStatusFailed)
		s.record(ctx, job, domain.JobStatusFailed, &domain.WorldgenResult{JobID: job.ID, Error: err.Error()})
		return nil, fmt.Errorf("submit %s: %w", job.ImageName, err)
	}

	sub := &Submission{Image: path, Job: job.ID, Result: res}

	if res.Failed() {
		s.observe(domain.JobStatusFailed)
		s.record(ctx, job, domain.JobStatusFailed, &res)
		logger.Error("job failed", "error", res.Error)
		return sub, fmt.Errorf("%w: %s: %s", ErrJobFailed, job.ImageName, res.Error)
	}

	s.observe(domain.JobStatusSucceeded)
	s.record(ctx, job, domain.JobStatusSucceeded, &res)
	logger.Info("job done", "artifact", res.Artifact)
	return sub, nil
}

func (s *Submitter) observe(status domain.JobStatus) {
	if s.observer != nil {
		s.observer.ObserveWorldgenJob(string(status))
	}
}

// record пишет в журнал; ошибка журнала не прерывает отправку.
func (s *Submitter) record(ctx context.Context, job *domain.WorldgenJob, status domain.JobStatus, res *domain.WorldgenResult) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordJob(ctx, job, status, res); err != nil {
		s.logger.Warn("failed to record job", "job_id", job.ID.String(), "error", err)
	}
}
