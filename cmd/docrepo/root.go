package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/server"
)

// app is shared by every subcommand; it is filled in by the root PersistentPreRunE.
type app struct {
	cfg    *common.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "docrepo",
		Short:        "Operate the document repository: ingest PDFs, run OCR, search",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.cfg = common.LoadConfig()
			a.logger = common.NewLoggerTo(a.cfg.Log, cmd.ErrOrStderr())
			return a.cfg.Validate()
		},
	}
	root.AddCommand(
		newMigrateCmd(a),
		newDBHealthCmd(a),
		newIngestCmd(a),
		newIngestDirCmd(a),
		newIngestBatchCmd(a),
		newOCRCmd(a),
		newSearchCmd(a),
		newWatchCmd(a),
		newShowCmd(a),
		newDeleteCmd(a),
	)
	return root
}

// withComponents builds the application for one command and closes it afterwards.
func (a *app) withComponents(ctx context.Context, fn func(c *server.Components) error) error {
	c, err := server.NewComponents(ctx, a.cfg, a.logger, nil)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}
