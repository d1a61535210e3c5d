// Package repo хранит журнал запусков в PostgreSQL (pgx).
//
// Журнал необязателен: источник истины — директории run_<N> и их run.json.
// Таблицы:
//   - pipeline_runs  — один ряд на run (ключ — абсолютный путь директории)
//   - stage_results  — результаты стадий
//   - worldgen_jobs  — задания удалённой генерации
package repo
