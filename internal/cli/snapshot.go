package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/heinrichuk/pmoai/internal/seed"
	"github.com/heinrichuk/pmoai/internal/snapshot"
	"github.com/heinrichuk/pmoai/internal/storage"
	"github.com/heinrichuk/pmoai/internal/store"
)

// NewSnapshotCommand groups the offline snapshot archive commands.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect or create snapshots in the archive",
	}
	cmd.AddCommand(newSnapshotListCommand(rootOpts))
	cmd.AddCommand(newSnapshotShowCommand(rootOpts))
	cmd.AddCommand(newSnapshotCreateCommand(rootOpts))
	return cmd
}

func newSnapshotListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalogued snapshots, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			archive, err := storage.OpenArchive(cfg.DataDir, logger)
			if err != nil {
				return err
			}
			defer archive.Close()

			entries, err := archive.Catalog()
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeIndented(cmd.OutOrStdout(), entries)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTAKEN AT\tWORKSTREAMS\tMILESTONES\tRISKS\tISSUES\tDEPENDENCIES")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
					e.ID, e.TakenAt.Format(time.RFC3339), e.Workstreams, e.Milestones, e.Risks, e.Issues, e.Dependencies)
			}
			return tw.Flush()
		},
	}
}

func newSnapshotShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a snapshot as stored on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			archive, err := storage.OpenArchive(cfg.DataDir, logger)
			if err != nil {
				return err
			}
			defer archive.Close()

			snap, err := archive.Load(args[0])
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), snap)
		},
	}
}

func newSnapshotCreateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Capture the sample portfolio once and persist it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			st := store.New(logger)
			if err := st.Load(seed.Bundle(time.Now().Round(0))); err != nil {
				return err
			}
			archive, err := storage.OpenArchive(cfg.DataDir, logger)
			if err != nil {
				return err
			}
			defer archive.Close()

			sched := snapshot.NewScheduler(st, archive, snapshot.Cadence{Every: cfg.Snapshots.Interval}, logger)
			snap, err := sched.Capture()
			if err != nil {
				return err
			}

			if opts.Format == "json" {
				return writeIndented(cmd.OutOrStdout(), map[string]any{
					"id":   snap.ID,
					"date": snap.Date,
					"file": storage.FileName(snap.ID),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", snap.ID, storage.FileName(snap.ID))
			return nil
		},
	}
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
