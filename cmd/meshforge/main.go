// meshforge — инструмент командной строки.
//
// Использование:
//
//	meshforge [--config FILE] [--json] <command> [flags]
//
// Команды:
//
//	run       Однократный запуск pipeline
//	runs      Просмотр run_<N>
//	worldgen  Генерация сцен на GPU worker
//	schedule  Запуск pipeline по cron
//	config    Итоговая конфигурация
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shaiso/meshforge/internal/cli"
	"github.com/shaiso/meshforge/internal/pipeline"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	rootCmd := cli.NewRootCmd(version, cli.AppOptions{})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", cli.DescribeError(err))
		os.Exit(pipeline.ExitCode(err))
	}
}
