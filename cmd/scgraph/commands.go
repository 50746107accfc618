package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systemshift/supplygraph/internal/app"
	"github.com/systemshift/supplygraph/internal/config"
	"github.com/systemshift/supplygraph/internal/query"
	"github.com/systemshift/supplygraph/internal/server/archive"
)

func newSyncCmd(e *env) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy every snapshot of the configured source into the SQLite archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if e.cfg.Source.Kind == config.SourceSQLite {
				return fmt.Errorf("source is already the archive at %s", e.cfg.Source.ArchivePath)
			}

			src, closeSrc, err := app.OpenSource(ctx, e.cfg.Source, e.logger)
			if err != nil {
				return err
			}
			if closeSrc != nil {
				defer closeSrc()
			}

			db, err := archive.NewSQLite(ctx, e.cfg.Source.ArchivePath, e.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			note(cmd, "syncing %d snapshots into %s", src.Len(), e.cfg.Source.ArchivePath)
			res, err := db.Sync(ctx, src, archive.SyncOptions{Force: force})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-copy timestamps that are already archived")
	return cmd
}

func newExportCmd(e *env) *cobra.Command {
	var t int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Mirror one timestamp's graph into Neo4j",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := app.Open(ctx, e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			g, err := a.Store.Graph(ctx, t)
			if err != nil {
				return err
			}

			mirror, err := archive.NewMirror(ctx, archive.Neo4jConfig{
				URI:      e.cfg.Neo4j.URI,
				Username: e.cfg.Neo4j.User,
				Password: e.cfg.Neo4j.Password,
				Database: e.cfg.Neo4j.Database,
			}, e.logger)
			if err != nil {
				return err
			}
			defer mirror.Close(ctx)

			if err := mirror.EnsureIndexes(ctx); err != nil {
				return err
			}
			res, err := mirror.Export(ctx, t, g)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&t, "t", 0, "timestamp index")
	return cmd
}

func newResolveCmd(e *env) *cobra.Command {
	var (
		t       int
		product string
		units   int
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Decide how a demand for a product offering can be met",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := app.Open(ctx, e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.Resolver.Resolve(ctx, t, product, units)
			if err != nil {
				return err
			}
			note(cmd, "%s: %s", product, out.Tier)
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&t, "t", 0, "timestamp index")
	cmd.Flags().StringVar(&product, "product", "", "product offering id")
	cmd.Flags().IntVar(&units, "units", 1, "units demanded")
	must(cmd.MarkFlagRequired("product"))
	return cmd
}

func newCentralityCmd(e *env) *cobra.Command {
	var t int
	cmd := &cobra.Command{
		Use:   "centrality",
		Short: "Rank nodes by degree centrality",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := app.Open(ctx, e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.Store.Raw(ctx, t)
			if err != nil {
				return err
			}
			rank, err := query.DegreeCentrality(ctx, snap)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rank)
		},
	}
	cmd.Flags().IntVar(&t, "t", 0, "timestamp index")
	return cmd
}
