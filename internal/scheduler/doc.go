// Package scheduler запускает pipeline по расписанию.
//
// Структура:
//   - scheduler.go — Scheduler (Start, Tick, Stop) поверх robfig/cron
//   - cron.go      — парсинг cron-выражений и адаптер логгера
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Expr: "0 3 * * *",
//	    Trigger: func(ctx context.Context) error {
//	        _, err := controller.Run(ctx, inputDir)
//	        return err
//	    },
//	    Logger: logger,
//	})
//	sched.Start(ctx)
//	defer sched.Stop()
//
// Каждый запуск получает новый run_<N>. Перекрытие запусков исключено
// (cron.SkipIfStillRunning): pipeline пишет в общую staging-директорию.
package scheduler
