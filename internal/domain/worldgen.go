package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorldgenMode — формат результата генерации сцены.
type WorldgenMode string

const (
	// WorldgenModeSplat — gaussian splat (.ply).
	WorldgenModeSplat WorldgenMode = "splat"

	// WorldgenModeMesh — треугольный меш (.glb).
	WorldgenModeMesh WorldgenMode = "mesh"
)

// ErrUnknownWorldgenMode — неизвестный режим генерации.
var ErrUnknownWorldgenMode = errors.New("unknown worldgen mode")

// ParseWorldgenMode парсит строку в WorldgenMode.
// Пустая строка — splat.
func ParseWorldgenMode(s string) (WorldgenMode, error) {
	switch WorldgenMode(s) {
	case "", WorldgenModeSplat:
		return WorldgenModeSplat, nil
	case WorldgenModeMesh:
		return WorldgenModeMesh, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownWorldgenMode, s)
	}
}

// DefaultMaxSide — максимальная сторона изображения по умолчанию.
const DefaultMaxSide = 2048

// WorldgenJob — запрос к удалённой GPU-функции image-to-3D.
//
// Содержит бинарные данные изображения и скалярные параметры.
// Ответ — WorldgenResult с именем артефакта или ошибкой.
type WorldgenJob struct {
	// ID — идентификатор задания (он же correlation id в очереди).
	ID uuid.UUID `json:"id"`

	// ImageName — исходное имя файла изображения.
	ImageName string `json:"image_name"`

	// Image — содержимое файла изображения.
	Image []byte `json:"image"`

	// OutName — имя артефакта в хранилище результатов.
	OutName string `json:"out_name"`

	// Prompt — текстовая подсказка генератору (может быть пустой).
	Prompt string `json:"prompt,omitempty"`

	// MaxSide — изображение уменьшается, если большая сторона превышает MaxSide.
	MaxSide int `json:"max_side"`

	// Mode — splat или mesh.
	Mode WorldgenMode `json:"mode"`

	// CreatedAt — время создания задания.
	CreatedAt time.Time `json:"created_at"`
}

// WorldgenResult — ответ удалённой GPU-функции.
type WorldgenResult struct {
	// JobID — ID задания, на которое пришёл ответ.
	JobID uuid.UUID `json:"job_id"`

	// Artifact — имя записанного артефакта.
	Artifact string `json:"artifact,omitempty"`

	// Error — текст ошибки. Пусто при успехе.
	Error string `json:"error,omitempty"`
}

// Failed возвращает true, если генерация завершилась ошибкой.
func (r WorldgenResult) Failed() bool {
	return r.Error != ""
}

// WorldgenOutName возвращает имя артефакта для изображения со stem.
//
//	splat: worldgen_splat_<stem>.ply
//	mesh:  worldgen_splat_<stem>_mesh.glb
func WorldgenOutName(stem string, mode WorldgenMode) string {
	if mode == WorldgenModeMesh {
		return fmt.Sprintf("worldgen_splat_%s_mesh.glb", stem)
	}
	return fmt.Sprintf("worldgen_splat_%s.ply", stem)
}
