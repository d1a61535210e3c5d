// Package pipeline реализует контроллер локального pipeline реконструкции.
//
// Controller выполняет строго последовательный конечный автомат:
//
//	ALLOCATE_RUN → SNAPSHOT_INPUT → (CLEAR_STAGE) → (CLEAR_FINAL)
//	  → STAGE:<id> ... → ARCHIVE_STAGING → ARCHIVE_FINAL → DONE
//
// Любая ошибка переводит run в FAILED. Отката нет: частично записанные
// файлы остаются на диске, повторный запуск получает новый run_<N>.
//
// Каждая стадия — внешний процесс в своём окружении (stage.Runner).
// Стадия возвращает domain.StageResult; первая упавшая стадия
// останавливает pipeline, следующие не запускаются.
//
// Общие директории staging и final разделяются всеми запусками:
// одновременно должен работать только один pipeline на проект.
package pipeline
