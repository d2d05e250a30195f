package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/responder/internal/daemon"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Capture and respond until interrupted",
		Long: `Run the responder in the foreground.

Opens one capture handle per worker, answers every accepted handshake segment and
exports metrics until SIGINT or SIGTERM. SIGHUP reloads the log configuration.

Examples:
  responder run                              # defaults: socket engine on eth0, port 80
  responder run -c /etc/responder/config.yml
  RESPONDER_CAPTURE_INTERFACE=ens5 responder run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := daemon.New(configFile, pidFile, Version)
			if err != nil {
				return err
			}
			if err := d.Start(); err != nil {
				d.Stop()
				return fmt.Errorf("failed to start: %w", err)
			}
			return d.Run()
		},
	}
}
