// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X firestige.xyz/responder/cmd.Version=...".
var Version = "0.1.0"

var (
	// Global flags
	configFile string
	pidFile    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "responder",
		Short: "Responder - reflect TCP handshake segments back to their sender",
		Long: `Responder captures Ethernet frames on a network interface, selects IPv4 TCP
handshake segments (no payload) for a configured port, and answers each one with a
crafted frame whose link, network and transport addressing are reversed and whose
checksums are recomputed.

Features:
  - Capture engines: raw AF_PACKET socket, AF_PACKET TPACKET_V3 ring with fanout, pcap file replay
  - Strict frame validation: header lengths, truncation, IPv4 and TCP checksums
  - Per-peer response rate limiting
  - Prometheus metrics and structured logging`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and RESPONDER_* environment when empty)")
	root.PersistentFlags().StringVarP(&pidFile, "pid-file", "p", "/var/run/responder.pid",
		"daemon PID file path")

	root.AddCommand(newRunCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newStopCmd())
	root.AddCommand(newReloadCmd())
	return root
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}
