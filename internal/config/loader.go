package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix — префикс переменных окружения.
const DefaultEnvPrefix = "MESHFORGE"

// EnvConfigPath — переменная с путём к файлу конфигурации.
const EnvConfigPath = "MESHFORGE_CONFIG"

// Loader — загрузчик конфигурации (builder).
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader создаёт загрузчик с префиксом MESHFORGE.
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
	}
}

// WithConfigPath задаёт путь к YAML файлу. Пустой путь — без файла.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix задаёт префикс переменных окружения.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator добавляет дополнительный валидатор.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load загружает конфигурацию.
// Приоритет: значения по умолчанию → YAML файл → переменные окружения.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, err
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	return cfg, nil
}

// loadFromFile читает YAML поверх значений по умолчанию.
// Неизвестные ключи — ошибка.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReadConfig, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: parse %s: %v", ErrReadConfig, l.configPath, err)
	}

	return nil
}

// envReader применяет переменные окружения и собирает ошибки разбора.
type envReader struct {
	prefix string
	errs   []error
}

// key возвращает имя переменной с префиксом.
func (r *envReader) key(name string) string {
	return r.prefix + "_" + name
}

// Имена перечисляются по возрастанию приоритета.

func (r *envReader) str(dst *string, names ...string) {
	for _, n := range names {
		*dst = envString(n, *dst)
	}
}

func (r *envReader) boolean(dst *bool, names ...string) {
	for _, n := range names {
		v, err := envBool(n, *dst)
		if err != nil {
			r.errs = append(r.errs, err)
			continue
		}
		*dst = v
	}
}

func (r *envReader) integer(dst *int, names ...string) {
	for _, n := range names {
		v, err := envInt(n, *dst)
		if err != nil {
			r.errs = append(r.errs, err)
			continue
		}
		*dst = v
	}
}

// loadFromEnv применяет переменные окружения.
func (l *Loader) loadFromEnv(cfg *Config) error {
	r := &envReader{prefix: l.envPrefix}

	// paths
	r.str(&cfg.Paths.ProjectRoot, r.key("PATHS_PROJECT_ROOT"))
	r.str(&cfg.Paths.Input, r.key("PATHS_INPUT"))
	r.str(&cfg.Paths.Stage, r.key("PATHS_STAGE"))
	r.str(&cfg.Paths.Final, r.key("PATHS_FINAL"))

	// pipeline
	r.str(&cfg.Pipeline.Activator, r.key("PIPELINE_ACTIVATOR"))
	r.boolean(&cfg.Pipeline.ClearStage, r.key("PIPELINE_CLEAR_STAGE"))
	r.boolean(&cfg.Pipeline.ClearFinal, r.key("PIPELINE_CLEAR_FINAL"))
	r.boolean(&cfg.Pipeline.ArchiveOnFailure, r.key("PIPELINE_ARCHIVE_ON_FAILURE"))

	// log
	r.str(&cfg.Log.Level, "LOG_LEVEL", r.key("LOG_LEVEL"))
	r.str(&cfg.Log.Format, "LOG_FORMAT", r.key("LOG_FORMAT"))

	// metrics
	r.str(&cfg.Metrics.Textfile, r.key("METRICS_TEXTFILE"))
	r.str(&cfg.Metrics.Addr, r.key("METRICS_ADDR"))

	// database
	r.str(&cfg.Database.URL, "DB_URL", r.key("DATABASE_URL"))

	// rabbitmq
	r.str(&cfg.RabbitMQ.URL, "RABBITMQ_URL", r.key("RABBITMQ_URL"))
	if d, err := envDuration(r.key("RABBITMQ_REPLY_TIMEOUT"), cfg.RabbitMQ.ReplyTimeout); err != nil {
		r.errs = append(r.errs, err)
	} else {
		cfg.RabbitMQ.ReplyTimeout = d
	}
	r.integer(&cfg.RabbitMQ.Prefetch, r.key("RABBITMQ_PREFETCH"))

	// objectstore
	r.boolean(&cfg.ObjectStore.Enabled, r.key("OBJECTSTORE_ENABLED"))
	r.str(&cfg.ObjectStore.Endpoint, r.key("OBJECTSTORE_ENDPOINT"))
	r.str(&cfg.ObjectStore.AccessKey, r.key("OBJECTSTORE_ACCESS_KEY"))
	r.str(&cfg.ObjectStore.SecretKey, r.key("OBJECTSTORE_SECRET_KEY"))
	r.str(&cfg.ObjectStore.Region, r.key("OBJECTSTORE_REGION"))
	r.boolean(&cfg.ObjectStore.UseSSL, r.key("OBJECTSTORE_USE_SSL"))
	r.str(&cfg.ObjectStore.Bucket, r.key("OBJECTSTORE_BUCKET"))
	r.str(&cfg.ObjectStore.ArchiveBucket, r.key("OBJECTSTORE_ARCHIVE_BUCKET"))

	// worldgen
	r.str(&cfg.Worldgen.Input, "WG_INPUT", r.key("WORLDGEN_INPUT"))
	r.str(&cfg.Worldgen.Prompt, "WG_PROMPT", r.key("WORLDGEN_PROMPT"))
	r.integer(&cfg.Worldgen.MaxSide, "WG_MAX_SIDE", r.key("WORLDGEN_MAX_SIDE"))
	r.str(&cfg.Worldgen.Mode, "WG_MODE", r.key("WORLDGEN_MODE"))
	r.str(&cfg.Worldgen.Env, r.key("WORLDGEN_ENV"))
	r.str(&cfg.Worldgen.OutputDir, r.key("WORLDGEN_OUTPUT_DIR"))

	// schedule
	r.str(&cfg.Schedule.Cron, r.key("SCHEDULE_CRON"))
	r.str(&cfg.Schedule.Input, r.key("SCHEDULE_INPUT"))

	return errors.Join(r.errs...)
}

// Load загружает конфигурацию из path (может быть пустым) с префиксом MESHFORGE.
func Load(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}

// LoadFromEnv загружает конфигурацию, путь к файлу берётся из MESHFORGE_CONFIG.
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv(EnvConfigPath))
}
