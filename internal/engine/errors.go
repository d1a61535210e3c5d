package engine

import "errors"

// Ошибки валидации стадий.
var (
	// ErrEmptyStages — pipeline не содержит стадий.
	ErrEmptyStages = errors.New("pipeline has no stages")

	// ErrEmptyStageID — стадия не имеет ID.
	ErrEmptyStageID = errors.New("stage has empty ID")

	// ErrDuplicateStageID — несколько стадий с одинаковым ID.
	ErrDuplicateStageID = errors.New("duplicate stage ID")

	// ErrEmptyEnv — у стадии не задано окружение.
	ErrEmptyEnv = errors.New("stage has empty env")

	// ErrEmptyArgs — у стадии пустой argv.
	ErrEmptyArgs = errors.New("stage has empty args")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	StageID string // ID стадии, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StageID != "" {
		return "stage " + e.StageID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stageID, field, message string, err error) *ValidationError {
	return &ValidationError{
		StageID: stageID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
