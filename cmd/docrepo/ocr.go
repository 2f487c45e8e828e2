package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docrepo/internal/server"
)

func newOCRCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ocr",
		Short: "Run OCR for documents",
	}
	cmd.AddCommand(newOCRRunCmd(a), newOCRRetryFailedCmd(a), newOCRPendingCmd(a))
	return cmd
}

func newOCRRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run DOCUMENT_ID",
		Short: "Run OCR for one document, whatever its current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			return a.withComponents(cmd.Context(), func(c *server.Components) error {
				orch, err := c.Orchestrator()
				if err != nil {
					return err
				}
				ok, err := orch.Process(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !ok {
					doc, err := c.Documents.GetByID(cmd.Context(), id)
					if err == nil && doc.OCRFailureReason != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "failed: %s\n", *doc.OCRFailureReason)
						return nil
					}
					fmt.Fprintln(cmd.OutOrStdout(), "failed")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "succeeded")
				return nil
			})
		},
	}
}

func newOCRRetryFailedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-failed",
		Short: "Re-run OCR for every Failed document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withComponents(cmd.Context(), func(c *server.Components) error {
				orch, err := c.Orchestrator()
				if err != nil {
					return err
				}
				n, err := orch.RetryFailed(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "processed %d\n", n)
				return err
			})
		},
	}
}

func newOCRPendingCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Run OCR for documents still Pending, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withComponents(cmd.Context(), func(c *server.Components) error {
				orch, err := c.Orchestrator()
				if err != nil {
					return err
				}
				n, err := orch.ProcessPending(cmd.Context(), limit)
				fmt.Fprintf(cmd.OutOrStdout(), "processed %d\n", n)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum documents to process, 0 for all")
	return cmd
}
