// Package rundir ведёт версионирование директорий выполнения pipeline.
//
// Структура на диске:
//
//	<final>/
//	├── mesh.glb            — результаты последнего run
//	├── texture.png
//	├── run_1/
//	│   ├── inputs/         — снапшот входных данных
//	│   ├── 1_stage/        — копия staging-директории
//	│   ├── 2_final/        — копия финальных результатов (без run_*)
//	│   └── run.json        — манифест run
//	└── run_2/
//
// Имена run_<N> — единственная структура, которую пакет разбирает.
// Все остальные записи в корне игнорируются аллокатором и
// копируются merger'ом как обычные результаты.
//
// Операции не транзакционны: прерванное копирование оставляет
// частично заполненную директорию. Конкурентные вызовы на одном
// корне не поддерживаются.
package rundir
