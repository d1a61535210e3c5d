package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shaiso/meshforge/internal/domain"
	"github.com/shaiso/meshforge/internal/engine"
	"github.com/shaiso/meshforge/internal/rundir"
	"github.com/shaiso/meshforge/internal/stage"
	"github.com/shaiso/meshforge/internal/telemetry"
)

// Paths — директории pipeline. Все пути абсолютные.
type Paths struct {
	// ProjectRoot — корень проекта ({{ .Dirs.project }}).
	ProjectRoot string

	// Input — входная директория по умолчанию.
	Input string

	// Stage — общая staging-директория.
	Stage string

	// Final — общая директория результатов, в ней создаются run_<N>.
	Final string

	// StageMirror/FinalMirror — имена копий внутри run.
	StageMirror string
	FinalMirror string

	// Dirs — дополнительные именованные директории для шаблонов.
	Dirs map[string]string
}

// Ledger — журнал запусков (например, PostgreSQL).
type Ledger interface {
	// RecordRun сохраняет текущее состояние run (upsert).
	RecordRun(ctx context.Context, run *domain.Run) error

	// RecordStage сохраняет результат стадии.
	RecordStage(ctx context.Context, run *domain.Run, res domain.StageResult) error
}

// Archiver выгружает директорию завершённого run (например, в MinIO).
type Archiver interface {
	Archive(ctx context.Context, run *domain.Run) error
}

// Metrics — учёт метрик pipeline. Реализуется *telemetry.Metrics.
type Metrics interface {
	ObserveRun(status string, finishedAt time.Time)
	ObserveStage(stageID, status string, d time.Duration)
}

// Controller выполняет pipeline.
type Controller struct {
	paths            Paths
	stages           []domain.StageDef
	clearStage       bool
	clearFinal       bool
	archiveOnFailure bool

	runner   stage.Runner
	ledger   Ledger
	metrics  Metrics
	archiver Archiver
	logger   *slog.Logger
}

// Config — конфигурация Controller.
type Config struct {
	Paths  Paths
	Stages []domain.StageDef

	// ClearStage — очистить общую staging перед стадиями.
	ClearStage bool

	// ClearFinal — удалить из общей final всё, кроме run_<N>, перед стадиями.
	ClearFinal bool

	// ArchiveOnFailure — копировать staging/final в run и при ошибке стадии.
	ArchiveOnFailure bool

	// Runner — запуск процессов стадий (обязателен).
	Runner stage.Runner

	// Опциональные зависимости, nil — отключено.
	Ledger   Ledger
	Metrics  Metrics
	Archiver Archiver

	// Logger
	Logger *slog.Logger
}

// New создаёт Controller.
//
// Проверяет описание стадий: ошибка оборачивает ErrInvalidPipeline.
func New(cfg Config) (*Controller, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("%w: runner is required", ErrInvalidPipeline)
	}
	if cfg.Paths.Final == "" || cfg.Paths.Stage == "" {
		return nil, fmt.Errorf("%w: stage and final directories are required", ErrInvalidPipeline)
	}
	if err := engine.ValidateStages(cfg.Stages); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPipeline, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	paths := cfg.Paths
	if paths.StageMirror == "" {
		paths.StageMirror = rundir.DefaultStageName
	}
	if paths.FinalMirror == "" {
		paths.FinalMirror = rundir.DefaultFinalName
	}

	return &Controller{
		paths:            paths,
		stages:           append([]domain.StageDef(nil), cfg.Stages...),
		clearStage:       cfg.ClearStage,
		clearFinal:       cfg.ClearFinal,
		archiveOnFailure: cfg.ArchiveOnFailure,
		runner:           cfg.Runner,
		ledger:           cfg.Ledger,
		metrics:          cfg.Metrics,
		archiver:         cfg.Archiver,
		logger:           logger,
	}, nil
}

// Stages возвращает стадии в порядке выполнения.
func (c *Controller) Stages() []domain.StageDef {
	return append([]domain.StageDef(nil), c.stages...)
}

// Run выполняет pipeline для inputDir (пусто — Paths.Input).
//
// Возвращает run и при ошибке: по нему видно, где pipeline остановился.
// Ошибки:
//   - ErrMissingInputPath — нет входной директории
//   - *StageError — стадия завершилась с ошибкой
//   - ErrFilesystem — ошибка работы с файлами
func (c *Controller) Run(ctx context.Context, inputDir string) (*domain.Run, error) {
	rs, err := c.Execute(ctx, inputDir)
	return rs.Run, err
}

// Execute — как Run, но возвращает RunState с историей переходов.
func (c *Controller) Execute(ctx context.Context, inputDir string) (*RunState, error) {
	if inputDir == "" {
		inputDir = c.paths.Input
	}
	if abs, err := filepath.Abs(inputDir); err == nil {
		inputDir = abs
	}

	run := &domain.Run{
		InputDir: inputDir,
		Status:   domain.RunStatusPending,
	}
	rs := NewRunState(run)

	// 1. Выделяем директорию run
	rs.Enter(StateAllocateRun)
	layout, err := rundir.Allocate(c.paths.Final, c.paths.StageMirror, c.paths.FinalMirror)
	if err != nil {
		err = fmt.Errorf("%w: allocate run: %w", ErrFilesystem, err)
		c.logger.Error("failed to allocate run directory", "root", c.paths.Final, "error", err)
		run.MarkFailed("", err.Error())
		rs.Enter(StateFailed)
		c.observeRun(run)
		return rs, err
	}

	run.Number = layout.Number
	run.Name = layout.Name()
	run.Dir = layout.Root
	run.MarkRunning()

	logger := telemetry.WithRunName(c.logger, run.Name)
	ctx = telemetry.WithLogger(ctx, logger)
	logger.Info("run allocated", "dir", layout.Root, "input", inputDir)
	c.recordRun(ctx, run)

	c.fillContext(rs, layout)

	if err := c.execute(ctx, rs, layout); err != nil {
		stageID := ""
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			stageID = stageErr.StageID
		}
		run.MarkFailed(stageID, err.Error())
		rs.Enter(StateFailed)
		logger.Error("run failed", "stage", stageID, "error", err)
		c.finish(ctx, run, layout)
		return rs, err
	}

	run.MarkSucceeded()
	rs.Enter(StateDone)
	logger.Info("run saved", "dir", layout.Root, "duration", run.Duration())
	c.finish(ctx, run, layout)

	if c.archiver != nil {
		if err := c.archiver.Archive(ctx, run); err != nil {
			logger.Warn("failed to archive run", "error", err)
		}
	}

	return rs, nil
}

// execute проходит состояния от SNAPSHOT_INPUT до ARCHIVE_FINAL.
func (c *Controller) execute(ctx context.Context, rs *RunState, layout *rundir.Layout) error {
	logger := telemetry.FromContext(ctx)
	run := rs.Run

	// 2. Снапшот входных данных
	rs.Enter(StateSnapshotInput)
	if err := checkInput(run.InputDir); err != nil {
		return err
	}
	if err := rundir.CopyTree(run.InputDir, layout.Inputs); err != nil {
		return fmt.Errorf("%w: snapshot input: %w", ErrFilesystem, err)
	}
	logger.Info("inputs copied", "dst", layout.Inputs)

	// 3. Опциональная очистка общих директорий
	if c.clearStage {
		rs.Enter(StateClearStage)
		if err := rundir.ResetDir(c.paths.Stage); err != nil {
			return fmt.Errorf("%w: clear stage: %w", ErrFilesystem, err)
		}
	}
	if c.clearFinal {
		rs.Enter(StateClearFinal)
		if err := rundir.ClearOutputs(c.paths.Final); err != nil {
			return fmt.Errorf("%w: clear final: %w", ErrFilesystem, err)
		}
	}
	if err := os.MkdirAll(c.paths.Stage, 0o755); err != nil {
		return fmt.Errorf("%w: create stage: %w", ErrFilesystem, err)
	}

	// 4. Стадии, строго по порядку
	for _, def := range c.stages {
		state := StageState(def.ID)
		rs.Enter(state)

		res, err := c.runStage(ctx, rs, def)
		run.AddStageResult(res)
		c.recordStage(ctx, run, res)

		if err != nil {
			stageErr := &StageError{StageID: def.ID, State: state, Err: err}
			if c.archiveOnFailure {
				if err := c.archive(rs, layout); err != nil {
					logger.Warn("failed to archive failed run", "error", err)
				}
			}
			return stageErr
		}
	}

	// 5. Архивирование в директорию run
	return c.archive(rs, layout)
}

// archive копирует staging и final в директорию run.
func (c *Controller) archive(rs *RunState, layout *rundir.Layout) error {
	rs.Enter(StateArchiveStaging)
	if err := rundir.CopyTree(c.paths.Stage, layout.Stage); err != nil {
		return fmt.Errorf("%w: archive staging: %w", ErrFilesystem, err)
	}

	rs.Enter(StateArchiveFinal)
	if err := rundir.MergeOutputs(c.paths.Final, layout.Final); err != nil {
		return fmt.Errorf("%w: archive final: %w", ErrFilesystem, err)
	}
	return nil
}

// runStage рендерит invocation и запускает процесс стадии.
// Ошибка рендеринга или запуска — упавшая стадия.
func (c *Controller) runStage(ctx context.Context, rs *RunState, def domain.StageDef) (domain.StageResult, error) {
	logger := telemetry.WithStageID(telemetry.FromContext(ctx), def.ID)

	res := domain.StageResult{
		StageID:   def.ID,
		StartedAt: time.Now(),
	}

	err := ctx.Err()
	if err == nil {
		var inv domain.Invocation
		inv, err = c.invocation(rs, def)
		if err == nil {
			logger.Info("running stage", "name", def.DisplayName(), "env", inv.Env, "dir", inv.Dir)
			err = c.runner.Run(ctx, inv)
		}
	}

	res.FinishedAt = time.Now()
	if err != nil {
		res.Status = domain.StageStatusFailed
		res.ExitCode = stage.ExitCodeOf(err)
		res.Error = err.Error()
		logger.Error("stage failed", "error", err)
	} else {
		res.Status = domain.StageStatusSucceeded
		logger.Info("stage completed", "duration", res.Duration())
	}

	if c.metrics != nil {
		c.metrics.ObserveStage(def.ID, string(res.Status), res.Duration())
	}
	return res, err
}

// invocation собирает Invocation стадии из шаблонов.
func (c *Controller) invocation(rs *RunState, def domain.StageDef) (domain.Invocation, error) {
	args, err := engine.RenderArgs(def.Args, rs.Context)
	if err != nil {
		return domain.Invocation{}, err
	}

	dir, err := engine.Render(def.Dir, rs.Context)
	if err != nil {
		return domain.Invocation{}, fmt.Errorf("dir: %w", err)
	}
	if dir != "" && !filepath.IsAbs(dir) && c.paths.ProjectRoot != "" {
		dir = filepath.Join(c.paths.ProjectRoot, dir)
	}

	return domain.Invocation{Env: def.Env, Args: args, Dir: dir}, nil
}

// fillContext заполняет контекст шаблонов директориями run.
func (c *Controller) fillContext(rs *RunState, layout *rundir.Layout) {
	ctx := rs.Context
	for name, dir := range c.paths.Dirs {
		ctx.SetDir(name, dir)
	}
	ctx.SetDir(engine.DirInput, rs.Run.InputDir)
	ctx.SetDir(engine.DirStage, c.paths.Stage)
	ctx.SetDir(engine.DirFinal, c.paths.Final)
	ctx.SetDir(engine.DirProject, c.paths.ProjectRoot)
	ctx.SetDir(engine.DirRun, layout.Root)
	ctx.SetDir("inputs", layout.Inputs)
	ctx.Inputs["run_name"] = rs.Run.Name
	ctx.Inputs["run_number"] = strconv.Itoa(rs.Run.Number)
	ctx.LoadEnv()
}

// finish пишет run.json и фиксирует итог в журнале и метриках.
func (c *Controller) finish(ctx context.Context, run *domain.Run, layout *rundir.Layout) {
	if err := rundir.WriteManifest(layout.Root, run); err != nil {
		telemetry.FromContext(ctx).Warn("failed to write run manifest", "error", err)
	}
	c.recordRun(ctx, run)
	c.observeRun(run)
}

func (c *Controller) observeRun(run *domain.Run) {
	if c.metrics == nil {
		return
	}
	finishedAt := time.Now()
	if run.FinishedAt != nil {
		finishedAt = *run.FinishedAt
	}
	c.metrics.ObserveRun(string(run.Status), finishedAt)
}

// recordRun и recordStage не прерывают pipeline: журнал вторичен.

func (c *Controller) recordRun(ctx context.Context, run *domain.Run) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.RecordRun(ctx, run); err != nil {
		telemetry.FromContext(ctx).Warn("failed to record run", "error", err)
	}
}

func (c *Controller) recordStage(ctx context.Context, run *domain.Run, res domain.StageResult) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.RecordStage(ctx, run, res); err != nil {
		telemetry.FromContext(ctx).Warn("failed to record stage", "stage_id", res.StageID, "error", err)
	}
}

// checkInput проверяет, что входной путь существует и является директорией.
func checkInput(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingInputPath, dir)
		}
		return fmt.Errorf("%w: stat input: %w", ErrFilesystem, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: not a directory: %s", ErrMissingInputPath, dir)
	}
	return nil
}
