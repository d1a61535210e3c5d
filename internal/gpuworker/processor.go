package gpuworker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shaiso/meshforge/internal/domain"
	"github.com/shaiso/meshforge/internal/engine"
	"github.com/shaiso/meshforge/internal/stage"
	"github.com/shaiso/meshforge/internal/telemetry"
)

// Processor выполняет одно задание генерации.
type Processor struct {
	runner    stage.Runner
	uploader  Uploader
	env       string
	generator []string
	dir       string
	workDir   string
	logger    *slog.Logger
}

// ProcessorConfig — конфигурация Processor.
type ProcessorConfig struct {
	// Runner запускает генератор. Обязателен.
	Runner stage.Runner

	// Uploader сохраняет результат. Обязателен.
	Uploader Uploader

	// Env — окружение генератора (например, worldgen_env).
	Env string

	// Generator — шаблон argv генератора.
	Generator []string

	// Dir — рабочая директория генератора (может быть пустой).
	Dir string

	// WorkDir — где создавать временные директории заданий (default: os.TempDir()).
	WorkDir string

	Logger *slog.Logger
}

// NewProcessor создаёт Processor.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Runner == nil {
		return nil, errors.New("runner is required")
	}
	if cfg.Uploader == nil {
		return nil, errors.New("uploader is required")
	}
	if len(cfg.Generator) == 0 {
		return nil, errors.New("generator command is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		runner:    cfg.Runner,
		uploader:  cfg.Uploader,
		env:       cfg.Env,
		generator: cfg.Generator,
		dir:       cfg.Dir,
		workDir:   cfg.WorkDir,
		logger:    logger,
	}, nil
}

// Process выполняет задание и всегда возвращает результат.
// Любая ошибка попадает в WorldgenResult.Error.
func (p *Processor) Process(ctx context.Context, job *domain.WorldgenJob) domain.WorldgenResult {
	logger := telemetry.WithJobID(p.logger, job.ID.String())

	artifact, err := p.generate(ctx, job, logger)
	if err != nil {
		logger.Warn("worldgen job failed", "out_name", job.OutName, "error", err)
		return domain.WorldgenResult{JobID: job.ID, Error: err.Error()}
	}

	logger.Info("worldgen job succeeded", "artifact", artifact)
	return domain.WorldgenResult{JobID: job.ID, Artifact: artifact}
}

func (p *Processor) generate(ctx context.Context, job *domain.WorldgenJob, logger *slog.Logger) (string, error) {
	if len(job.Image) == 0 {
		return "", ErrEmptyImage
	}
	outName, err := checkName(job.OutName)
	if err != nil {
		return "", err
	}
	imageName, err := checkName(job.ImageName)
	if err != nil {
		imageName = "input.png"
	}

	tmp, err := os.MkdirTemp(p.workDir, "worldgen-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	imagePath := filepath.Join(tmp, imageName)
	if err := os.WriteFile(imagePath, job.Image, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	outPath := filepath.Join(tmp, outName)

	inv, err := p.invocation(job, imagePath, outPath)
	if err != nil {
		return "", err
	}

	logger.Info("running generator",
		"image", job.ImageName,
		"mode", job.Mode,
		"max_side", job.MaxSide,
	)

	if err := p.runner.Run(ctx, inv); err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerateFailed, err)
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutputMissing, outName)
	}

	artifact, err := p.uploader.Upload(ctx, outName, outPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	return artifact, nil
}

// invocation рендерит argv генератора для задания.
func (p *Processor) invocation(job *domain.WorldgenJob, imagePath, outPath string) (domain.Invocation, error) {
	maxSide := job.MaxSide
	if maxSide <= 0 {
		maxSide = domain.DefaultMaxSide
	}
	mode := job.Mode
	if mode == "" {
		mode = domain.WorldgenModeSplat
	}

	tctx := engine.NewContext(map[string]any{
		"image":    imagePath,
		"output":   outPath,
		"prompt":   job.Prompt,
		"max_side": maxSide,
		"mode":     string(mode),
	})
	tctx.SetDir("work", filepath.Dir(outPath))

	args, err := engine.RenderArgs(p.generator, tctx)
	if err != nil {
		return domain.Invocation{}, err
	}
	dir, err := engine.Render(p.dir, tctx)
	if err != nil {
		return domain.Invocation{}, err
	}

	return domain.Invocation{Env: p.env, Args: args, Dir: dir}, nil
}

// checkName допускает только имя файла без директорий.
func checkName(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidOutName, name)
	}
	return name, nil
}
