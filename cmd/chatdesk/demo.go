package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/chatdesk/internal/app"
	"github.com/five82/chatdesk/internal/demo"
)

func newDemoCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Work with demo conversation files",
		Long: `Demo files are YAML conversation lists the console can serve instead of
the backend (chatdesk --demo-file FILE). Message times are ages relative to
startup, so a file stays fresh.`,
	}

	sample := &cobra.Command{
		Use:   "sample",
		Short: "Print the built-in sample demo file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(demo.Sample())
			return err
		},
	}

	var out string
	capture := &cobra.Command{
		Use:   "capture",
		Short: "Save the backend's current conversations as a demo file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(g.appOptions())
			if err != nil {
				return err
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			convs, err := client.FetchConversations(ctx)
			if err != nil {
				return err
			}
			file := demo.Capture(convs, cfg.ExternalPrefix, time.Now())

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create demo file: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := demo.Write(w, file); err != nil {
				return err
			}
			if w != cmd.OutOrStdout() {
				fmt.Fprintf(cmd.OutOrStdout(), "captured %d conversation(s) to %s\n", len(file.Conversations), out)
			}
			return nil
		},
	}
	capture.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")

	cmd.AddCommand(sample, capture)
	return cmd
}
