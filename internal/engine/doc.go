// Package engine рендерит аргументы стадий и валидирует описание pipeline.
//
// Аргументы стадий в конфиге — Go templates:
//
//	{{ .Dirs.input }}   — исходная директория входных данных
//	{{ .Dirs.stage }}   — общая staging-директория
//	{{ .Dirs.final }}   — общая директория финальных результатов
//	{{ .Dirs.project }} — корень проекта
//	{{ .Dirs.run }}     — директория текущего run
//	{{ .Inputs.name }}  — произвольные параметры
//	{{ .Env.HOME }}     — переменные окружения
//
// Отсутствующий ключ — ошибка рендеринга, а не пустая строка.
package engine
