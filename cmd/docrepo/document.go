package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/entity"
	"github.com/joseph-ayodele/docrepo/internal/server"
)

func parseDocumentID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, common.NewAppError(common.CodeValidation, "DOCUMENT_ID must be a UUID", common.ErrInvalidInput)
	}
	return id, nil
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show DOCUMENT_ID",
		Short: "Print a document, its OCR state and the items linking to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			return a.withComponents(cmd.Context(), func(c *server.Components) error {
				doc, err := c.Documents.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				links, err := c.Documents.ListLinks(cmd.Context(), id)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Document *entity.Document      `json:"document"`
					Links    []entity.ExternalLink `json:"links"`
				}{doc, links})
			})
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "delete DOCUMENT_ID",
		Short: "Soft-delete a document; it leaves search and deduplication, the blob stays",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			return a.withComponents(cmd.Context(), func(c *server.Components) error {
				if err := c.Documents.SoftDelete(cmd.Context(), id, actor); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", common.SystemActor, "recorded as updated_by")
	return cmd
}
