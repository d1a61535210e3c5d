package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/meshforge/internal/domain"
	"github.com/shaiso/meshforge/internal/pipeline"
	"github.com/shaiso/meshforge/internal/stage"
)

// NewPipelineCmd создаёт команду однократного запуска pipeline.
func NewPipelineCmd(use string, appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	var inputDir string

	cmd := &cobra.Command{
		Use:   use,
		Short: "Run the reconstruction pipeline once",
		Long: `Allocates a new run_<N> directory, snapshots the input, runs every
stage in its own environment and archives staging and final outputs into the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()

			ctrl, cleanup, err := app.NewController(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if inputDir == "" {
				inputDir = app.Paths().Input
			}

			run, runErr := ctrl.Run(cmd.Context(), inputDir)
			app.FlushMetrics()

			if run != nil {
				printRun(out, run)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&inputDir, "input_dir", "", "Input directory (default: paths.input from config)")

	return cmd
}

// printRun выводит итог run: таблицу стадий или JSON.
func printRun(out *Output, run *domain.Run) {
	headers := []string{"STAGE", "STATUS", "EXIT", "DURATION", "ERROR"}
	rows := make([][]string, len(run.Stages))
	for i, s := range run.Stages {
		rows[i] = []string{
			s.StageID,
			string(s.Status),
			strconv.Itoa(s.ExitCode),
			formatDuration(s.Duration()),
			orDash(s.Error),
		}
	}
	out.Print(headers, rows, run)

	if !out.JSONMode() {
		out.Success(fmt.Sprintf("%s %s: %s", run.Name, run.Status, run.Dir))
	}
}

// DescribeError формирует диагностику для завершения процесса.
func DescribeError(err error) string {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		code := stage.ExitCodeOf(stageErr.Err)
		if code > 0 {
			return fmt.Sprintf("stage %q failed with exit code %d: %v", stageErr.StageID, code, stageErr.Err)
		}
		return fmt.Sprintf("stage %q failed: %v", stageErr.StageID, stageErr.Err)
	}
	if errors.Is(err, pipeline.ErrMissingInputPath) {
		return fmt.Sprintf("input directory not found: %v", err)
	}
	return err.Error()
}
