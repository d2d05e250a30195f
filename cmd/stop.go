package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/responder/internal/daemon"
)

func newStopCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running responder",
		Long: `Send SIGTERM to the responder recorded in the PID file and wait for it to exit.
The responder closes its capture handles, flushes logs and removes the PID file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(pidFile, timeout, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "time to wait for the process to exit")
	return cmd
}

func runStop(pidFile string, timeout time.Duration, out io.Writer) error {
	if err := daemon.StopProcess(pidFile, timeout); err != nil {
		return fmt.Errorf("failed to stop: %w", err)
	}
	fmt.Fprintln(out, "responder stopped")
	return nil
}
