package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shaiso/meshforge/internal/domain"
	"github.com/shaiso/meshforge/internal/scheduler"
)

// Config — полная конфигурация meshforge.
type Config struct {
	Paths       PathsConfig       `yaml:"paths"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Database    DatabaseConfig    `yaml:"database"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	ObjectStore ObjectStoreConfig `yaml:"objectstore"`
	Worldgen    WorldgenConfig    `yaml:"worldgen"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
}

// PathsConfig — директории проекта.
//
// Относительные пути считаются от ProjectRoot.
type PathsConfig struct {
	// ProjectRoot — корень проекта.
	ProjectRoot string `yaml:"project_root"`

	// Input — входная директория по умолчанию.
	Input string `yaml:"input"`

	// Stage — общая staging-директория.
	Stage string `yaml:"stage"`

	// Final — общая директория результатов; в ней же создаются run_<N>.
	Final string `yaml:"final"`

	// StageMirror/FinalMirror — имена копий staging/final внутри run.
	StageMirror string `yaml:"stage_mirror"`
	FinalMirror string `yaml:"final_mirror"`

	// Dirs — дополнительные именованные директории ({{ .Dirs.<name> }}).
	Dirs map[string]string `yaml:"dirs"`
}

// Resolve возвращает абсолютный путь относительно ProjectRoot.
func (p PathsConfig) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	root := p.ProjectRoot
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return filepath.Join(root, path)
}

// PipelineConfig — описание pipeline реконструкции.
type PipelineConfig struct {
	// Activator — способ активации окружений: micromamba, conda, none.
	Activator string `yaml:"activator"`

	// ClearStage — очистить staging перед запуском стадий.
	ClearStage bool `yaml:"clear_stage"`

	// ClearFinal — удалить из final всё, кроме run_<N>, перед запуском стадий.
	ClearFinal bool `yaml:"clear_final"`

	// ArchiveOnFailure — архивировать staging/final в run даже при ошибке стадии.
	ArchiveOnFailure bool `yaml:"archive_on_failure"`

	// Stages — стадии в порядке выполнения.
	Stages []domain.StageDef `yaml:"stages"`
}

// LogConfig — настройки логирования.
type LogConfig struct {
	// Level: DEBUG, INFO, WARN, ERROR.
	Level string `yaml:"level"`

	// Format: json, text.
	Format string `yaml:"format"`
}

// MetricsConfig — настройки метрик.
type MetricsConfig struct {
	// Textfile — путь .prom файла для node_exporter textfile collector.
	// Пусто — метрики pipeline не выгружаются.
	Textfile string `yaml:"textfile"`

	// Addr — адрес HTTP сервера GPU worker (/healthz, /metrics).
	Addr string `yaml:"addr"`
}

// DatabaseConfig — журнал запусков в PostgreSQL.
type DatabaseConfig struct {
	// URL — DSN. Пусто — журнал отключён.
	URL string `yaml:"url"`
}

// Enabled возвращает true, если журнал включён.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RabbitMQConfig — транспорт заданий worldgen.
type RabbitMQConfig struct {
	URL string `yaml:"url"`

	// ReplyTimeout — сколько ждать ответа на одно задание.
	ReplyTimeout time.Duration `yaml:"reply_timeout"`

	// Prefetch — сколько заданий GPU worker берёт одновременно.
	Prefetch int `yaml:"prefetch"`
}

// ObjectStoreConfig — хранилище артефактов (MinIO / S3).
type ObjectStoreConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`

	// Bucket — бакет артефактов worldgen.
	Bucket string `yaml:"bucket"`

	// ArchiveBucket — бакет для выгрузки директорий run. Пусто — не выгружать.
	ArchiveBucket string `yaml:"archive_bucket"`
}

// WorldgenConfig — генерация сцен из изображений.
type WorldgenConfig struct {
	// Input — файл или директория с изображениями.
	Input string `yaml:"input"`

	// Prompt — текстовая подсказка генератору.
	Prompt string `yaml:"prompt"`

	// MaxSide — максимальная сторона изображения в пикселях.
	MaxSide int `yaml:"max_side"`

	// Mode — splat или mesh.
	Mode string `yaml:"mode"`

	// Env — окружение генератора на GPU worker.
	Env string `yaml:"env"`

	// Generator — argv генератора (шаблоны .Inputs.image, .Inputs.output, ...).
	Generator []string `yaml:"generator"`

	// Dir — рабочая директория генератора.
	Dir string `yaml:"dir"`

	// OutputDir — куда GPU worker складывает артефакты, если хранилище отключено.
	OutputDir string `yaml:"output_dir"`
}

// ScheduleConfig — периодический запуск pipeline.
type ScheduleConfig struct {
	// Cron — выражение cron (5 полей). Пусто — расписание не задано.
	Cron string `yaml:"cron"`

	// Input — входная директория для запусков по расписанию.
	Input string `yaml:"input"`
}

// Validate проверяет обязательные поля.
func (c *Config) Validate() error {
	var problems []string

	if c.Paths.Input == "" {
		problems = append(problems, "paths.input is required")
	}
	if c.Paths.Stage == "" {
		problems = append(problems, "paths.stage is required")
	}
	if c.Paths.Final == "" {
		problems = append(problems, "paths.final is required")
	}
	if c.Paths.StageMirror == "" || c.Paths.FinalMirror == "" {
		problems = append(problems, "paths.stage_mirror and paths.final_mirror are required")
	}
	if strings.HasPrefix(c.Paths.StageMirror, "run_") || strings.HasPrefix(c.Paths.FinalMirror, "run_") {
		problems = append(problems, "mirror names must not look like run directories")
	}

	switch c.Pipeline.Activator {
	case "micromamba", "conda", "none":
	default:
		problems = append(problems, fmt.Sprintf("pipeline.activator: unknown %q", c.Pipeline.Activator))
	}

	if len(c.Pipeline.Stages) == 0 {
		problems = append(problems, "pipeline.stages must not be empty")
	}

	if _, err := domain.ParseWorldgenMode(c.Worldgen.Mode); err != nil {
		problems = append(problems, fmt.Sprintf("worldgen.mode: %v", err))
	}
	if c.Worldgen.MaxSide <= 0 {
		problems = append(problems, "worldgen.max_side must be positive")
	}

	if c.Schedule.Cron != "" {
		if err := scheduler.ValidateCronExpr(c.Schedule.Cron); err != nil {
			problems = append(problems, fmt.Sprintf("schedule.cron: %v", err))
		}
	}

	if c.RabbitMQ.Prefetch <= 0 {
		problems = append(problems, "rabbitmq.prefetch must be positive")
	}

	if c.ObjectStore.Enabled {
		if c.ObjectStore.Endpoint == "" || c.ObjectStore.Bucket == "" {
			problems = append(problems, "objectstore.endpoint and objectstore.bucket are required when enabled")
		}
		if strings.Contains(c.ObjectStore.Endpoint, "://") {
			problems = append(problems, fmt.Sprintf("objectstore.endpoint must not include scheme: %q", c.ObjectStore.Endpoint))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
