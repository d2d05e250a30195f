package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/responder/internal/config"
	"firestige.xyz/responder/internal/daemon"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and print the effective settings",
		Long: `Load the configuration file (plus RESPONDER_* environment overrides), apply
defaults, validate it, and print the effective configuration as YAML.

Examples:
  responder validate -c config.yml
  RESPONDER_FILTER_PORT=443 responder validate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(configFile, cmd.OutOrStdout())
		},
	}
}

func runValidate(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if _, err := daemon.NewDissector(cfg); err != nil {
		return err
	}
	rendered, err := cfg.Render()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "# configuration is valid")
	_, err = out.Write(rendered)
	return err
}
