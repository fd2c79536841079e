package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cfchat/backend/internal/directory"
	"cfchat/backend/internal/record"
	"cfchat/backend/internal/storage/migrate"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the storage is reachable and every stored record parses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sections, err := a.openSections("")
			if err != nil {
				return err
			}
			defer sections.Close()

			if err := sections.Health(); err != nil {
				return fmt.Errorf("storage unhealthy: %w", err)
			}

			dir := directory.NewFile(a.cfg.Directory.File, a.cfg.Directory.NameTTL, a.log)
			defer dir.Close()
			records := record.NewStore(sections, dir, record.WithLogger(a.log))
			report, err := records.ReloadAll()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "loaded %d players (%d created from defaults)\n", report.Loaded, report.Created)
			for _, f := range report.Failures {
				fmt.Fprintf(out, "  %s (%s): %v\n", dir.DisplayName(f.ID), f.ID, f.Err)
			}
			if len(report.Failures) > 0 {
				return fmt.Errorf("%d records failed to load", len(report.Failures))
			}
			return nil
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	var (
		to        string
		workers   int
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "migrate --to <driver>",
		Short: "Copy every stored section to another storage driver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" {
				return errors.New("--to is required")
			}
			src, err := a.openSections("")
			if err != nil {
				return err
			}
			defer src.Close()
			dst, err := a.openSections(to)
			if err != nil {
				return err
			}
			defer dst.Close()

			if workers <= 0 {
				workers = a.cfg.Records.SaveConcurrency
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := migrate.Copy(ctx, src, dst, migrate.Options{Workers: workers, Overwrite: overwrite}, a.log)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "copied %d, skipped %d, failed %d\n", result.Copied, result.Skipped, len(result.Failures))
			for _, f := range result.Failures {
				fmt.Fprintf(out, "  %s: %v\n", f.ID, f.Err)
			}
			return result.Err()
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Destination storage driver")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent copies (default: records save concurrency)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace sections that already exist in the destination")
	return cmd
}
