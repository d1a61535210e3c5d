package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/meshforge/internal/repo"
	"github.com/shaiso/meshforge/internal/worldgen"
)

// NewWorldgenCmd создаёт группу команд генерации сцен.
func NewWorldgenCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worldgen",
		Short: "Generate 3D scenes from images on the GPU worker",
	}

	cmd.AddCommand(
		newWorldgenSubmitCmd(appFn, outputFn),
		newWorldgenJobsCmd(appFn, outputFn),
	)

	return cmd
}

func newWorldgenSubmitCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	var prompt string
	var maxSide int
	var mode string

	cmd := &cobra.Command{
		Use:   "submit [PATH]",
		Short: "Submit an image or a directory of images (default: worldgen.input)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()

			path := app.Config.Worldgen.Input
			if len(args) == 1 {
				path = args[0]
			}

			// проверяем вход до подключения к брокеру
			if _, err := worldgen.CollectImages(path); err != nil {
				return err
			}

			opts := SubmitterOptions{MaxSide: maxSide, Mode: mode}
			if cmd.Flags().Changed("prompt") {
				opts.Prompt = &prompt
			}

			sub, cleanup, err := app.NewSubmitter(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			results, submitErr := sub.SubmitAll(cmd.Context(), path)

			headers := []string{"IMAGE", "JOB_ID", "ARTIFACT", "ERROR"}
			rows := make([][]string, len(results))
			for i, r := range results {
				rows[i] = []string{r.Image, r.Job.String(), orDash(r.Result.Artifact), orDash(r.Result.Error)}
			}
			out.Print(headers, rows, results)

			return submitErr
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Text prompt (default: worldgen.prompt)")
	cmd.Flags().IntVar(&maxSide, "max-side", 0, "Downscale images larger than this (default: worldgen.max_side)")
	cmd.Flags().StringVar(&mode, "mode", "", "Output mode: splat or mesh (default: worldgen.mode)")

	return cmd
}

func newWorldgenJobsCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recorded worldgen jobs (requires database.url)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()

			if !app.Config.Database.Enabled() {
				return errors.New("database.url is not configured")
			}
			pool, err := repo.NewPool(cmd.Context(), app.Config.Database.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			jobs, err := repo.NewJobRepo(pool).List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}

			headers := []string{"JOB_ID", "IMAGE", "MODE", "STATUS", "ARTIFACT", "CREATED"}
			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = []string{
					j.ID.String(), j.ImageName, j.Mode, string(j.Status),
					orDash(j.Artifact), formatTime(&j.CreatedAt),
				}
			}
			out.Print(headers, rows, jobs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of results")

	return cmd
}
