// Package stage запускает внешние инструменты в изолированных окружениях.
//
// # Обзор
//
// Стадия pipeline — вызов внешнего ML-инструмента (ICON, DECA, скрипт
// слияния), установленного в собственном micromamba/conda окружении.
// Пакет отвечает только за запуск процесса: что инструмент читает и
// куда пишет, определяется его аргументами и здесь не проверяется.
//
// # Invocation
//
// Запуск описывается структурой domain.Invocation:
//
//	inv := domain.Invocation{
//	    Env:  "icon_env",
//	    Args: []string{"python", "-m", "apps.infer", "-gpu", "0"},
//	    Dir:  "/opt/models/ICON",
//	}
//
// Shell не используется: Activator превращает (Env, Args) в argv
// лаунчера окружения, например
//
//	micromamba run -n icon_env python -m apps.infer -gpu 0
//
// # Activator
//
// Реестр активаторов по имени:
//   - micromamba — micromamba run -n <env> ...
//   - conda      — conda run --no-capture-output -n <env> ...
//   - none       — argv без изменений, Env игнорируется
//
// # Ошибки
//
// Ненулевой код завершения возвращается как *ExitError (оборачивает
// ErrProcessFailed) с кодом процесса. Вывод процесса не перехватывается:
// stdout/stderr наследуются, прогресс виден в реальном времени.
// Таймаута нет: зависший инструмент блокирует вызывающего, пока ctx
// не будет отменён.
package stage
