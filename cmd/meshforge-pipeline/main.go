// meshforge-pipeline — однократный запуск pipeline реконструкции.
//
// Использование:
//
//	meshforge-pipeline [--input_dir DIR]
//
// Конфигурация: файл из MESHFORGE_CONFIG, переменные MESHFORGE_*.
// Код завершения: 0 — успех, код упавшей стадии, иначе 1.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/meshforge/internal/cli"
	"github.com/shaiso/meshforge/internal/pipeline"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var app *cli.App
	appFn := func() (*cli.App, error) {
		if app != nil {
			return app, nil
		}
		a, err := cli.LoadApp(cli.AppOptions{})
		if err != nil {
			return nil, err
		}
		app = a
		return app, nil
	}
	outputFn := func() *cli.Output { return cli.NewOutput(false) }

	cmd := cli.NewPipelineCmd("meshforge-pipeline", appFn, outputFn)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", cli.DescribeError(err))
		os.Exit(pipeline.ExitCode(err))
	}
}
