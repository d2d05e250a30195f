package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"firestige.xyz/responder/internal/capture"
	"firestige.xyz/responder/internal/config"
	"firestige.xyz/responder/internal/core"
	"firestige.xyz/responder/internal/daemon"
	"firestige.xyz/responder/internal/responder"
)

type inspectOptions struct {
	respondOut string
	verbose    bool
}

func newInspectCmd() *cobra.Command {
	var opts inspectOptions
	cmd := &cobra.Command{
		Use:   "inspect <file.pcap>",
		Short: "Dissect a capture file offline",
		Long: `Replay an Ethernet pcap file through the dissector using the filter section of
the configuration, and print the disposition of every frame.

With --respond-out, the responses that would have been sent are written to a pcap file.

Examples:
  responder inspect handshake.pcap
  responder inspect -c config.yml --respond-out replies.pcap handshake.pcap`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runInspect(ctx, cfg, args[0], opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.respondOut, "respond-out", "o", "", "write crafted responses to this pcap file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "print header fields of accepted frames")
	return cmd
}

type inspectSummary struct {
	frames, accepted, passed, errors, responses int
}

func runInspect(ctx context.Context, cfg *config.GlobalConfig, path string, opts inspectOptions, out io.Writer) error {
	dissector, err := daemon.NewDissector(cfg)
	if err != nil {
		return err
	}
	extra := map[string]interface{}{"path": path}
	if opts.respondOut != "" {
		extra["output"] = opts.respondOut
	}
	h, err := capture.Open(capture.PcapFileEngine, capture.Options{
		MaxFrameSize: cfg.Capture.MaxFrameSize,
		Extra:        extra,
	})
	if err != nil {
		return err
	}
	driver := capture.NewDriver(h, dissector, capture.WithMaxFrameSize(cfg.Capture.MaxFrameSize))
	defer driver.Close()

	craft := daemon.CraftOptions(cfg)
	var sum inspectSummary
	for ctx.Err() == nil {
		d := driver.Poll()
		if d.Failed() && errors.Is(d.Err, io.EOF) {
			break
		}
		sum.frames++

		switch {
		case d.Accepted():
			sum.accepted++
			fmt.Fprintf(out, "#%d accept %s\n", sum.frames, d.Frame)
			if opts.verbose {
				printFields(out, d.Frame)
			}
			if opts.respondOut != "" {
				if err := driver.Send(responder.Craft(d.Frame, craft...)); err != nil {
					return err
				}
				sum.responses++
			}
		case d.Passed():
			sum.passed++
			fmt.Fprintf(out, "#%d pass %s\n", sum.frames, d.Reason)
		default:
			sum.errors++
			fmt.Fprintf(out, "#%d error %s: %v\n", sum.frames, core.Classify(d.Err), d.Err)
		}
	}

	fmt.Fprintf(out, "frames=%d accepted=%d passed=%d errors=%d responses=%d\n",
		sum.frames, sum.accepted, sum.passed, sum.errors, sum.responses)
	return ctx.Err()
}

var fieldOrder = []string{"mac_src", "mac_dst", "ip_src", "ip_dst", "ip_csum", "sport", "dport", "seq", "ack", "flags", "tcp_csum"}

func printFields(out io.Writer, f *core.ParsedFrame) {
	fields := f.Fields()
	for _, k := range fieldOrder {
		fmt.Fprintf(out, "    %-8s %v\n", k, fields[k])
	}
}
