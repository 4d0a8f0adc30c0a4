package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"protocolo/common"
	"protocolo/config"
	"protocolo/infra/tracing"
	"protocolo/servehttp"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Execute runs the command line, the process exit code is derived from the returned error.
func Execute() error {
	return NewRootCommand().Execute()
}

func NewRootCommand() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:           "protocolo",
		Short:         "protocol lifecycle and SLA engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("PROTOCOLO_CONFIG"), "TOML configuration file")

	loadConfig := func() (*config.Config, error) {
		return config.Load(configFile)
	}
	root.AddCommand(newServeCommand(loadConfig), newWorkflowsCommand(loadConfig))
	return root
}

type configLoader func() (*config.Config, error)

func newServeCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the REST api",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), c, cmd.OutOrStdout())
		},
	}
}

func serve(ctx context.Context, c *config.Config, out io.Writer) error {
	common.ConfigureLogger(out, c.Log.Level, c.Log.Format)
	logrus.Info("service start")

	closer, err := tracing.InitGlobalTracer(c.Tracing)
	if err != nil {
		return fmt.Errorf("tracer initialization failed: %w", err)
	}
	defer closer.Close()

	app, err := servehttp.Build(ctx, c)
	if err != nil {
		return err
	}
	defer app.Close()

	return servehttp.StartHTTPServer(app.Engine, c.HTTP.Addr, time.Duration(c.HTTP.ShutdownTimeoutSeconds)*time.Second)
}
