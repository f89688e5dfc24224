package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func channelsCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List configured channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if len(cfg.Channels) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No channels configured.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "NAME\tSINK\tREDACTORS")
			fmt.Fprintln(w, "----\t----\t---------")
			for _, ch := range cfg.Channels {
				types := make([]string, 0, len(ch.Redactors))
				for _, r := range ch.Redactors {
					types = append(types, r.Type)
				}
				redactors := strings.Join(types, ",")
				if redactors == "" {
					redactors = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", ch.Name, ch.Sink.Type, redactors)
			}
			return w.Flush()
		},
	}
}
