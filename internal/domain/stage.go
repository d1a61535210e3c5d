package domain

import (
	"time"
)

// StageDef — определение стадии pipeline.
//
// Стадия — один вызов внешнего инструмента (реконструкция, оценка формы,
// слияние/текстурирование) в собственном изолированном окружении.
// Args — шаблоны, рендерятся перед запуском через engine.RenderArgs:
//
//	args: ["python", "-m", "apps.infer", "-in_dir", "{{ .Dirs.input }}"]
type StageDef struct {
	// ID — уникальный идентификатор стадии ("icon", "deca", "merge").
	ID string `yaml:"id" json:"id"`

	// Name — человекочитаемое имя для логов.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Env — имя изолированного окружения (micromamba/conda env).
	Env string `yaml:"env" json:"env"`

	// Args — argv команды (шаблоны).
	Args []string `yaml:"args" json:"args"`

	// Dir — рабочая директория. Пусто — текущая директория процесса.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`
}

// DisplayName возвращает Name или ID, если Name не задан.
func (s StageDef) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Invocation — структурированное описание запуска внешнего процесса.
//
// Invocation не содержит shell-строки: окружение, argv и рабочая
// директория передаются раздельно, поэтому quoting не нужен.
type Invocation struct {
	// Env — имя изолированного окружения. Пусто — запуск без активации.
	Env string `json:"env,omitempty"`

	// Args — argv: Args[0] — исполняемый файл.
	Args []string `json:"args"`

	// Dir — рабочая директория процесса.
	Dir string `json:"dir,omitempty"`
}

// StageResult — результат выполнения одной стадии.
type StageResult struct {
	// StageID — ID стадии из StageDef.
	StageID string `json:"stage_id"`

	// Status — SUCCEEDED или FAILED.
	Status StageStatus `json:"status"`

	// ExitCode — код завершения процесса.
	// -1, если процесс не удалось запустить.
	ExitCode int `json:"exit_code"`

	// StartedAt — время запуска.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения.
	FinishedAt time.Time `json:"finished_at"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`
}

// Duration возвращает продолжительность выполнения стадии.
func (r StageResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed возвращает true, если стадия упала.
func (r StageResult) Failed() bool {
	return r.Status == StageStatusFailed
}
