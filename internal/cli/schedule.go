package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/meshforge/internal/api"
	"github.com/shaiso/meshforge/internal/scheduler"
)

// NewScheduleCmd создаёт команду периодического запуска pipeline.
//
// Команда работает до SIGINT/SIGTERM; текущий run дожидается завершения.
// С --addr поднимается HTTP API: список run и внеплановый запуск.
func NewScheduleCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	var cronExpr string
	var inputDir string
	var addr string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on a cron schedule (runs never overlap)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()

			if cronExpr == "" {
				cronExpr = app.Config.Schedule.Cron
			}
			if cronExpr == "" {
				return errors.New("cron expression is required (--cron or schedule.cron)")
			}
			if inputDir == "" {
				inputDir = app.Config.Paths.Resolve(app.Config.Schedule.Input)
			}
			if inputDir == "" {
				inputDir = app.Paths().Input
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ctrl, cleanup, err := app.NewController(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			sched, err := scheduler.New(scheduler.Config{
				Expr: cronExpr,
				Trigger: func(ctx context.Context) error {
					run, err := ctrl.Run(ctx, inputDir)
					app.FlushMetrics()
					if run != nil {
						app.Logger.Info("scheduled run finished", "run", run.Name, "status", run.Status)
					}
					return err
				},
				Logger: app.Logger,
			})
			if err != nil {
				return err
			}

			if err := sched.Start(ctx); err != nil {
				return err
			}
			out.Success("scheduler started: " + cronExpr)

			if addr != "" {
				h := api.NewHandler(api.Config{
					FinalDir: app.Paths().Final,
					Trigger:  func() error { return sched.TriggerNow(ctx) },
					Metrics:  app.Metrics.Handler(),
					Logger:   app.Logger,
				})
				go func() {
					if err := api.ListenAndServe(ctx, addr, h.Routes(), app.Logger); err != nil {
						app.Logger.Error("http server error", "error", err)
						stop()
					}
				}()
			}

			<-ctx.Done()
			sched.Stop()

			fired, failed := sched.Stats()
			app.Logger.Info("scheduler finished", "runs", fired, "failed", failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (default: schedule.cron)")
	cmd.Flags().StringVar(&inputDir, "input_dir", "", "Input directory (default: schedule.input, then paths.input)")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP API address, e.g. :8080 (default: no server)")

	return cmd
}
