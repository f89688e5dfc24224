package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/GoPolymarket/apilogs/internal/channel"
	"github.com/GoPolymarket/apilogs/internal/config"
	"github.com/GoPolymarket/apilogs/internal/model"
	"github.com/GoPolymarket/apilogs/internal/redact"
	"github.com/GoPolymarket/apilogs/internal/sink"
	"github.com/spf13/cobra"
)

func redactCommand(load configLoader) *cobra.Command {
	var name, file string
	cmd := &cobra.Command{
		Use:   "redact",
		Short: "Show what a channel would emit for a recorded call",
		Long: `Reads a call record as JSON (from --file, or stdin when omitted) and
prints it after the channel's redaction pipeline. Nothing is emitted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			// sinks are never written to, so none of them is opened
			mgr := channel.NewManager()
			err = mgr.Load(cfg.Channels, redact.NewRegistry(), func(string, config.SinkConfig) (channel.Sink, error) {
				return sink.Discard{}, nil
			})
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			var rec model.LogRecord
			if err := json.NewDecoder(in).Decode(&rec); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}

			out, err := mgr.Preview(name, &rec)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&name, "channel", "", "channel to preview")
	cmd.Flags().StringVar(&file, "file", "", "record file, - for stdin")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}
