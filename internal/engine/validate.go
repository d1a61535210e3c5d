package engine

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/shaiso/meshforge/internal/domain"
)

// ValidateStages выполняет валидацию списка стадий.
//
// Проверяет:
// - Наличие стадий
// - Непустые и уникальные ID
// - Заданное окружение
// - Непустой argv
// - Синтаксис шаблонов в args и dir
func ValidateStages(stages []domain.StageDef) error {
	if len(stages) == 0 {
		return ErrEmptyStages
	}

	seen := make(map[string]bool, len(stages))
	for i := range stages {
		if err := ValidateStage(&stages[i], seen); err != nil {
			return err
		}
	}
	return nil
}

// ValidateStage валидирует одну стадию.
// seen — уже встреченные ID (для проверки уникальности).
func ValidateStage(s *domain.StageDef, seen map[string]bool) error {
	if s.ID == "" {
		return NewValidationError("", "id", "stage has empty ID", ErrEmptyStageID)
	}

	if seen[s.ID] {
		return NewValidationError(s.ID, "id",
			fmt.Sprintf("duplicate stage ID: %s", s.ID), ErrDuplicateStageID)
	}
	seen[s.ID] = true

	if s.Env == "" {
		return NewValidationError(s.ID, "env", "stage has empty env", ErrEmptyEnv)
	}

	if len(s.Args) == 0 {
		return NewValidationError(s.ID, "args", "stage has empty args", ErrEmptyArgs)
	}

	for _, a := range append(append([]string(nil), s.Args...), s.Dir) {
		if err := checkTemplate(a); err != nil {
			return NewValidationError(s.ID, "args", err.Error(), ErrTemplateParse)
		}
	}

	return nil
}

// checkTemplate проверяет только синтаксис шаблона, без рендеринга.
func checkTemplate(s string) error {
	if !strings.Contains(s, "{{") {
		return nil
	}
	if _, err := template.New("").Funcs(templateFuncs).Parse(s); err != nil {
		return fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	return nil
}
