package worldgen

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SupportedExtensions — расширения изображений (в нижнем регистре).
var SupportedExtensions = []string{
	".jpg", ".jpeg", ".png", ".webp", ".bmp", ".tif", ".tiff", ".heic", ".heif",
}

// IsImage проверяет расширение файла без учёта регистра.
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// CollectImages возвращает изображения по пути.
//
// Файл с поддерживаемым расширением — список из одного файла.
// Директория — поддерживаемые файлы верхнего уровня, отсортированные по имени.
func CollectImages(path string) ([]string, error) {
	if path == "" {
		return nil, ErrEmptyInput
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, absPath(path))
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		if IsImage(path) {
			return []string{path}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNoImages, absPath(path))
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var images []string
	for _, e := range entries {
		if !IsImage(e.Name()) || !isFile(filepath.Join(path, e.Name()), e) {
			continue
		}
		images = append(images, filepath.Join(path, e.Name()))
	}
	sort.Strings(images)

	if len(images) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoImages, absPath(path))
	}
	return images, nil
}

// Stem возвращает имя файла без расширения.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// isFile проверяет, что запись — файл (символические ссылки разыменовываются).
func isFile(path string, e fs.DirEntry) bool {
	if e.Type().IsRegular() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
