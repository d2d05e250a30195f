package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/responder/internal/daemon"
)

func newReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload the log configuration of a running responder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReload(pidFile, cmd.OutOrStdout())
		},
	}
}

func runReload(pidFile string, out io.Writer) error {
	if err := daemon.ReloadProcess(pidFile); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	fmt.Fprintln(out, "reload signal sent")
	return nil
}
