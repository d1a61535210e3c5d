package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/meshforge/internal/config"
	"github.com/shaiso/meshforge/internal/domain"
	"github.com/shaiso/meshforge/internal/mq"
	"github.com/shaiso/meshforge/internal/objectstore"
	"github.com/shaiso/meshforge/internal/pipeline"
	"github.com/shaiso/meshforge/internal/repo"
	"github.com/shaiso/meshforge/internal/stage"
	"github.com/shaiso/meshforge/internal/telemetry"
	"github.com/shaiso/meshforge/internal/worldgen"
)

// App — загруженная конфигурация и общие зависимости команд.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *telemetry.Metrics

	// Stdout/Stderr — куда пишут процессы стадий.
	Stdout io.Writer
	Stderr io.Writer
}

// AppOptions — параметры LoadApp.
type AppOptions struct {
	// ConfigPath — YAML файл. Пусто — MESHFORGE_CONFIG.
	ConfigPath string

	// LogOutput — куда писать логи (default: os.Stderr).
	LogOutput io.Writer

	Stdout io.Writer
	Stderr io.Writer
}

// LoadApp загружает конфигурацию и настраивает логгер.
func LoadApp(opts AppOptions) (*App, error) {
	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger := telemetry.NewLogger(telemetry.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: opts.LogOutput,
	})
	slog.SetDefault(logger)

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: telemetry.NewMetrics(),
		Stdout:  opts.Stdout,
		Stderr:  opts.Stderr,
	}
	if app.Stdout == nil {
		app.Stdout = os.Stdout
	}
	if app.Stderr == nil {
		app.Stderr = os.Stderr
	}
	return app, nil
}

// Paths возвращает абсолютные директории pipeline.
func (a *App) Paths() pipeline.Paths {
	p := a.Config.Paths

	dirs := make(map[string]string, len(p.Dirs))
	for name, dir := range p.Dirs {
		dirs[name] = p.Resolve(dir)
	}

	return pipeline.Paths{
		ProjectRoot: p.Resolve("."),
		Input:       p.Resolve(p.Input),
		Stage:       p.Resolve(p.Stage),
		Final:       p.Resolve(p.Final),
		StageMirror: p.StageMirror,
		FinalMirror: p.FinalMirror,
		Dirs:        dirs,
	}
}

// Runner создаёт ExecRunner с настроенным активатором окружений.
func (a *App) Runner() (*stage.ExecRunner, error) {
	act, err := stage.NewRegistry().Get(a.Config.Pipeline.Activator)
	if err != nil {
		return nil, err
	}
	return stage.NewExecRunner(stage.RunnerConfig{
		Activator: act,
		Stdout:    a.Stdout,
		Stderr:    a.Stderr,
		Logger:    a.Logger,
	}), nil
}

// closer собирает функции освобождения ресурсов.
type closer []func()

func (c closer) Close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// openLedger подключает журнал PostgreSQL, если он настроен.
// Недоступная БД не мешает запуску: источник истины — run.json.
func (a *App) openLedger(ctx context.Context) (*pgxpool.Pool, bool) {
	if !a.Config.Database.Enabled() {
		return nil, false
	}

	pool, err := repo.NewPool(ctx, a.Config.Database.URL)
	if err != nil {
		a.Logger.Warn("run ledger disabled", "error", err)
		return nil, false
	}
	if err := repo.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		a.Logger.Warn("run ledger disabled", "error", err)
		return nil, false
	}
	return pool, true
}

// objectStoreConfig переводит секцию конфигурации в objectstore.Config.
func objectStoreConfig(c config.ObjectStoreConfig, bucket string) objectstore.Config {
	return objectstore.Config{
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Region:    c.Region,
		UseSSL:    c.UseSSL,
		Bucket:    bucket,
	}
}

// NewObjectStore открывает бакет и создаёт его при необходимости.
func (a *App) NewObjectStore(ctx context.Context, bucket string) (*objectstore.Store, error) {
	store, err := objectstore.NewStore(objectStoreConfig(a.Config.ObjectStore, bucket))
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	return store, nil
}

// NewController собирает Controller со всеми включёнными зависимостями.
// Вызывающий обязан вызвать возвращённую функцию освобождения.
func (a *App) NewController(ctx context.Context) (*pipeline.Controller, func(), error) {
	runner, err := a.Runner()
	if err != nil {
		return nil, nil, err
	}

	var cleanup closer
	cfg := pipeline.Config{
		Paths:            a.Paths(),
		Stages:           a.Config.Pipeline.Stages,
		ClearStage:       a.Config.Pipeline.ClearStage,
		ClearFinal:       a.Config.Pipeline.ClearFinal,
		ArchiveOnFailure: a.Config.Pipeline.ArchiveOnFailure,
		Runner:           runner,
		Metrics:          a.Metrics,
		Logger:           a.Logger,
	}

	if pool, ok := a.openLedger(ctx); ok {
		cfg.Ledger = repo.NewLedger(pool)
		cleanup = append(cleanup, pool.Close)
	}

	if osc := a.Config.ObjectStore; osc.Enabled && osc.ArchiveBucket != "" {
		store, err := a.NewObjectStore(ctx, osc.ArchiveBucket)
		if err != nil {
			a.Logger.Warn("run archive upload disabled", "error", err)
		} else {
			cfg.Archiver = objectstore.NewRunArchiver(store)
		}
	}

	ctrl, err := pipeline.New(cfg)
	if err != nil {
		cleanup.Close()
		return nil, nil, err
	}
	return ctrl, cleanup.Close, nil
}

// SubmitterOptions переопределяет параметры worldgen из конфигурации.
type SubmitterOptions struct {
	Prompt  *string
	MaxSide int
	Mode    string
}

// NewSubmitter подключается к RabbitMQ и создаёт Submitter.
func (a *App) NewSubmitter(ctx context.Context, opts SubmitterOptions) (*worldgen.Submitter, func(), error) {
	wg := a.Config.Worldgen

	prompt := wg.Prompt
	if opts.Prompt != nil {
		prompt = *opts.Prompt
	}
	maxSide := wg.MaxSide
	if opts.MaxSide > 0 {
		maxSide = opts.MaxSide
	}
	modeName := wg.Mode
	if opts.Mode != "" {
		modeName = opts.Mode
	}
	mode, err := domain.ParseWorldgenMode(modeName)
	if err != nil {
		return nil, nil, err
	}

	conn, err := mq.NewConnection(a.Config.RabbitMQ.URL, a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	cleanup := closer{func() { conn.Close() }}

	if err := mq.SetupTopology(ctx, conn); err != nil {
		cleanup.Close()
		return nil, nil, fmt.Errorf("setup topology: %w", err)
	}

	rpc := mq.NewRPCClient(conn, mq.RPCConfig{
		ReplyTimeout: a.Config.RabbitMQ.ReplyTimeout,
		Logger:       a.Logger,
	})
	if err := rpc.Start(ctx); err != nil {
		cleanup.Close()
		return nil, nil, fmt.Errorf("start rpc client: %w", err)
	}
	cleanup = append(cleanup, func() { rpc.Close() })

	cfg := worldgen.SubmitterConfig{
		Transport: rpc,
		Observer:  a.Metrics,
		Prompt:    prompt,
		MaxSide:   maxSide,
		Mode:      mode,
		Logger:    a.Logger,
	}
	if pool, ok := a.openLedger(ctx); ok {
		cfg.Recorder = repo.NewJobRepo(pool)
		cleanup = append(cleanup, pool.Close)
	}

	return worldgen.NewSubmitter(cfg), cleanup.Close, nil
}

// FlushMetrics выгружает метрики в textfile, если он задан.
func (a *App) FlushMetrics() {
	path := a.Config.Metrics.Textfile
	if path == "" {
		return
	}
	path = a.Config.Paths.Resolve(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		a.Logger.Warn("failed to write metrics", "path", path, "error", err)
		return
	}
	if err := a.Metrics.WriteTextfile(path); err != nil {
		a.Logger.Warn("failed to write metrics", "path", path, "error", err)
	}
}
