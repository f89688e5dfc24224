package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/GoPolymarket/apilogs/internal/repository"
	"github.com/GoPolymarket/apilogs/internal/service"
	"github.com/spf13/cobra"
)

func pruneCommand(load configLoader) *cobra.Command {
	var ttlHours int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete call summaries older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Database.DSN == "" {
				return errors.New("database.dsn is not set")
			}
			if ttlHours <= 0 {
				ttlHours = cfg.CallLog.Retention.TTLHours
			}
			if ttlHours <= 0 {
				return errors.New("retention is disabled, pass --ttl-hours")
			}
			db, err := repository.NewDB(cfg)
			if err != nil {
				return err
			}
			job := service.NewRetentionJob(repository.NewPostgresCallStore(db), time.Duration(ttlHours)*time.Hour, nil)
			n, err := job.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d call summaries older than %dh.\n", n, ttlHours)
			return nil
		},
	}
	cmd.Flags().IntVar(&ttlHours, "ttl-hours", 0, "override calllog.retention.ttl_hours")
	return cmd
}
