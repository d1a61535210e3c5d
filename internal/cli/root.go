package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd создаёт корневую команду meshforge.
//
// Конфигурация загружается лениво, после разбора флагов, один раз.
func NewRootCmd(version string, opts AppOptions) *cobra.Command {
	var configPath string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "meshforge",
		Short:         "meshforge — 3D reconstruction pipeline and scene generation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $MESHFORGE_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	var app *App
	appFn := func() (*App, error) {
		if app != nil {
			return app, nil
		}
		o := opts
		if configPath != "" {
			o.ConfigPath = configPath
		}
		a, err := LoadApp(o)
		if err != nil {
			return nil, err
		}
		app = a
		return app, nil
	}
	outputFn := func() *Output {
		return NewOutputTo(jsonOutput, rootCmd.OutOrStdout(), rootCmd.ErrOrStderr())
	}

	rootCmd.AddCommand(
		NewPipelineCmd("run", appFn, outputFn),
		NewRunsCmd(appFn, outputFn),
		NewWorldgenCmd(appFn, outputFn),
		NewScheduleCmd(appFn, outputFn),
		NewConfigCmd(appFn, outputFn),
	)

	return rootCmd
}
