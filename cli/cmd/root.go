package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arcbox-labs/buildkit-client/internal/grpcutil"
	buildctllog "github.com/arcbox-labs/buildkit-client/pkg/log"
	"github.com/arcbox-labs/buildkit-client/pkg/version"
)

var (
	daemonAddr  string
	logLevel    string
	metricsAddr string
)

// RootCmd is the buildctl entry point. It mirrors the teacher's top-level
// RootCmd shape: persistent flags shared by every subcommand, configured in
// PersistentPreRunE before any subcommand's RunE runs.
var RootCmd = &cobra.Command{
	Use:   "buildctl",
	Short: "buildctl drives a remote container-image build daemon",
	Long:  `buildctl drives a remote container-image build daemon over its session protocol plane.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logLevel
		if level == "" {
			level = os.Getenv(buildctllog.EnvVar)
		}
		if err := buildctllog.Configure(level); err != nil {
			return err
		}
		log.Debugf("buildctl %s connecting to %s", version.String(), daemonAddr)

		if metricsAddr != "" {
			go func() {
				if err := grpcutil.ServeMetrics(cmd.Context(), metricsAddr); err != nil {
					log.WithError(err).Warn("metrics server exited")
				}
			}()
		}
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&daemonAddr, "addr", "127.0.0.1:1234", "daemon address, host:port")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", fmt.Sprintf("log level, must be one of: panic, fatal, error, warn, info, debug, trace [$%s]", buildctllog.EnvVar))
	RootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus client RPC metrics on this address")

	RootCmd.AddCommand(newCmdHealth())
	RootCmd.AddCommand(newCmdLocal())
	RootCmd.AddCommand(newCmdGithub())
	RootCmd.AddCommand(newCmdVersion())
}
