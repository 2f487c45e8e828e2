package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/ingest"
	"github.com/joseph-ayodele/docrepo/internal/server"
)

func newIngestCmd(a *app) *cobra.Command {
	var module, item, subject, tags, date, actor string
	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Ingest one PDF and link it to a source module item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []ingest.Option{ingest.WithSubject(subject), ingest.WithTags(tags)}
			if date != "" {
				d, err := time.Parse("2006-01-02", date)
				if err != nil {
					return common.NewAppError(common.CodeValidation, "--date must be YYYY-MM-DD", common.ErrInvalidInput)
				}
				opts = append(opts, ingest.WithDocumentDate(d))
			}
			if actor != "" {
				opts = append(opts, ingest.WithActor(actor))
			}
			return a.withComponents(cmd.Context(), func(c *server.Components) error {
				res, err := c.Ingest.IngestFile(cmd.Context(), args[0], module, item, opts...)
				if err != nil {
					return err
				}
				if res.Outcome == ingest.OutcomeDisabled {
					fmt.Fprintln(cmd.OutOrStdout(), "ingestion is disabled (INGEST_ENABLED=false)")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (link created: %t, sha256 %s)\n",
					res.Outcome, res.DocumentID, res.LinkCreated, res.ContentHash)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "source module (required)")
	cmd.Flags().StringVar(&item, "item", "", "source item id (required)")
	cmd.Flags().StringVar(&subject, "subject", "", "document subject")
	cmd.Flags().StringVar(&tags, "tags", "", "free-form tags")
	cmd.Flags().StringVar(&date, "date", "", "document date YYYY-MM-DD")
	cmd.Flags().StringVar(&actor, "actor", "", "recorded as created_by (default \"system\")")
	_ = cmd.MarkFlagRequired("module")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func newIngestDirCmd(a *app) *cobra.Command {
	var module string
	var includeHidden bool
	cmd := &cobra.Command{
		Use:   "ingest-dir DIR",
		Short: "Ingest every PDF below DIR, keyed by relative path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withComponents(cmd.Context(), func(c *server.Components) error {
				results, stats, err := c.Ingest.IngestDirectory(cmd.Context(), args[0], module, !includeHidden)
				printResults(cmd.OutOrStdout(), results, stats)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&module, "module", "directory", "source module recorded on every link")
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "also ingest dot files and dot directories")
	return cmd
}

func newIngestBatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest-batch MANIFEST",
		Short: "Ingest the files listed in a JSON manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ingest.LoadManifest(args[0])
			if err != nil {
				return err
			}
			baseDir, err := filepath.Abs(filepath.Dir(args[0]))
			if err != nil {
				return err
			}
			return a.withComponents(cmd.Context(), func(c *server.Components) error {
				results, stats, err := c.Ingest.IngestManifest(cmd.Context(), m, baseDir)
				printResults(cmd.OutOrStdout(), results, stats)
				return err
			})
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	cfg := ingest.WatchConfig{SourceModule: ingest.InboxModule}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Ingest PDFs dropped into an inbox directory until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withComponents(cmd.Context(), func(c *server.Components) error {
				return c.Ingest.Watch(cmd.Context(), cfg)
			})
		},
	}
	cmd.Flags().StringVar(&cfg.Dir, "dir", "", "inbox directory (required)")
	cmd.Flags().StringVar(&cfg.SourceModule, "module", ingest.InboxModule, "source module recorded on every link")
	cmd.Flags().BoolVar(&cfg.InitialScan, "initial-scan", true, "ingest files already in the inbox at start")
	cmd.Flags().DurationVar(&cfg.Debounce, "debounce", 2*time.Second, "quiet period before a changed file is ingested")
	cmd.Flags().BoolVar(&cfg.SkipHidden, "skip-hidden", true, "ignore dot files and dot directories")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func printResults(w io.Writer, results []ingest.FileResult, stats ingest.DirStats) {
	for _, r := range results {
		if r.Err != "" {
			fmt.Fprintf(w, "FAIL  %s: %s\n", r.Path, r.Err)
			continue
		}
		fmt.Fprintf(w, "%-12s %s %s\n", r.Outcome, r.DocumentID, r.Path)
	}
	fmt.Fprintf(w, "scanned=%d matched=%d created=%d deduplicated=%d failed=%d\n",
		stats.Scanned, stats.Matched, stats.Created, stats.Deduplicated, stats.Failed)
}
