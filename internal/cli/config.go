package cli

import (
	"net/url"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/meshforge/internal/config"
)

const redacted = "******"

// NewConfigCmd создаёт команду вывода итоговой конфигурации.
func NewConfigCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (defaults, file and environment merged)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()

			cfg := redact(*app.Config)
			if out.JSONMode() {
				out.JSON(cfg)
				return nil
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			out.Raw(string(data))
			return nil
		},
	})

	return cmd
}

// redact скрывает секреты в копии конфигурации.
func redact(cfg config.Config) config.Config {
	if cfg.ObjectStore.SecretKey != "" {
		cfg.ObjectStore.SecretKey = redacted
	}
	if cfg.Database.URL != "" {
		cfg.Database.URL = redactURL(cfg.Database.URL)
	}
	cfg.RabbitMQ.URL = redactURL(cfg.RabbitMQ.URL)
	return cfg
}

// redactURL скрывает пароль в DSN.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	return u.Redacted()
}
