package engine

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Context — контекст для рендеринга шаблонов.
//
// Используется в Go templates для доступа к данным:
//   - {{ .Inputs.param_name }}
//   - {{ .Dirs.stage }}
//   - {{ .Env.VAR_NAME }}
type Context struct {
	// Inputs — произвольные параметры (для GPU-задания: image, output, prompt, ...).
	Inputs map[string]any `json:"inputs"`

	// Dirs — именованные директории pipeline.
	Dirs map[string]string `json:"dirs"`

	// Env — переменные окружения.
	Env map[string]string `json:"env"`
}

// Имена директорий в Context.Dirs.
const (
	DirInput   = "input"
	DirStage   = "stage"
	DirFinal   = "final"
	DirProject = "project"
	DirRun     = "run"
)

// NewContext создаёт новый контекст с входными параметрами.
func NewContext(inputs map[string]any) *Context {
	if inputs == nil {
		inputs = make(map[string]any)
	}
	return &Context{
		Inputs: inputs,
		Dirs:   make(map[string]string),
		Env:    make(map[string]string),
	}
}

// SetDir устанавливает именованную директорию.
func (c *Context) SetDir(name, path string) {
	c.Dirs[name] = path
}

// SetEnv устанавливает переменную окружения.
func (c *Context) SetEnv(key, value string) {
	c.Env[key] = value
}

// LoadEnv копирует переменные окружения процесса в контекст.
func (c *Context) LoadEnv() {
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			c.Env[k] = v
		}
	}
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// join — путь из нескольких частей
	"join": func(parts ...string) string {
		return filepath.Join(parts...)
	},

	// base — последний элемент пути
	"base": filepath.Base,

	// stem — имя файла без расширения
	"stem": func(p string) string {
		b := filepath.Base(p)
		return strings.TrimSuffix(b, filepath.Ext(b))
	},

	"lower":   strings.ToLower,
	"upper":   strings.ToUpper,
	"trim":    strings.TrimSpace,
	"replace": strings.ReplaceAll,
}

// Render рендерит строковый шаблон с контекстом.
//
// Строка без "{{" возвращается как есть.
func Render(tmpl string, ctx *Context) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderArgs рендерит каждый элемент argv.
//
// Каждый элемент остаётся одним аргументом: пробелы в подставленных
// путях не разбивают его на части.
func RenderArgs(args []string, ctx *Context) ([]string, error) {
	result := make([]string, len(args))
	for i, a := range args {
		rendered, err := Render(a, ctx)
		if err != nil {
			return nil, fmt.Errorf("arg %d %q: %w", i, a, err)
		}
		result[i] = rendered
	}
	return result, nil
}

// MustRender рендерит шаблон и паникует при ошибке.
// Используется только для тестов.
func MustRender(tmpl string, ctx *Context) string {
	result, err := Render(tmpl, ctx)
	if err != nil {
		panic(err)
	}
	return result
}
