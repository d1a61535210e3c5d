package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/meshforge/internal/domain"
	"github.com/shaiso/meshforge/internal/repo"
	"github.com/shaiso/meshforge/internal/rundir"
)

// statusUnknown — run без run.json (ещё идёт или процесс был убит).
const statusUnknown = "UNKNOWN"

// NewRunsCmd создаёт группу команд просмотра runs.
func NewRunsCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect pipeline runs",
	}

	cmd.AddCommand(
		newRunsListCmd(appFn, outputFn),
		newRunsShowCmd(appFn, outputFn),
	)

	return cmd
}

func newRunsListCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	var fromDB bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()

			var runs []domain.Run
			if fromDB {
				runs, err = listRunsFromDB(cmd.Context(), app, limit)
			} else {
				runs, err = rundir.ReadManifests(app.Paths().Final)
			}
			if err != nil {
				return err
			}

			headers := []string{"RUN", "STATUS", "STARTED", "DURATION", "FAILED_STAGE"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					r.Name,
					runStatus(r),
					formatTime(r.StartedAt),
					formatDuration(r.Duration()),
					orDash(r.FailedStage),
				}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromDB, "db", false, "Read runs from the database ledger instead of run directories")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of results (with --db)")

	return cmd
}

func newRunsShowCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN",
		Short: "Show run details (RUN is N or run_N)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()

			n, err := ParseRunArg(args[0])
			if err != nil {
				return err
			}

			dir, err := rundir.FindRun(app.Paths().Final, n)
			if err != nil {
				return err
			}
			run, err := rundir.ReadManifest(dir)
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(run)
				return nil
			}

			out.Table([]string{"FIELD", "VALUE"}, [][]string{
				{"run", run.Name},
				{"dir", run.Dir},
				{"input", run.InputDir},
				{"status", string(run.Status)},
				{"state", orDash(run.State)},
				{"started", formatTime(run.StartedAt)},
				{"finished", formatTime(run.FinishedAt)},
				{"failed_stage", orDash(run.FailedStage)},
				{"error", orDash(run.Error)},
			})
			out.Raw("\n")
			printRun(out, run)
			return nil
		},
	}
}

func listRunsFromDB(ctx context.Context, app *App, limit int) ([]domain.Run, error) {
	if !app.Config.Database.Enabled() {
		return nil, errors.New("database.url is not configured")
	}
	pool, err := repo.NewPool(ctx, app.Config.Database.URL)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	return repo.NewRunRepo(pool).List(ctx, limit)
}

// ParseRunArg принимает "7" или "run_7".
func ParseRunArg(s string) (int, error) {
	if n, ok := rundir.ParseRunNumber(s); ok {
		return n, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid run %q: expected N or run_N", s)
	}
	return n, nil
}

func runStatus(r domain.Run) string {
	if r.Status == "" {
		return statusUnknown
	}
	return string(r.Status)
}
