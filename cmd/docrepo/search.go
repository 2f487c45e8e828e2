package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docrepo/internal/server"
)

func newSearchCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Full-text search over subject, tags and OCR text",
		Long: `Search accepts web-style queries: words are ANDed, "quoted phrases" match
in order, OR between words widens the match and -word excludes it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withComponents(cmd.Context(), func(c *server.Components) error {
				hits, err := c.Search.Search(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(hits)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SCORE\tDOCUMENT\tDATE\tMATCHED\tSUBJECT\tSNIPPET")
				for _, h := range hits {
					date := "-"
					if h.DocumentDate != nil {
						date = h.DocumentDate.Format("2006-01-02")
					}
					fmt.Fprintf(tw, "%.4f\t%s\t%s\t%s\t%s\t%s\n",
						h.Rank, h.DocumentID, date, strings.Join(h.MatchedFields(), ","), h.Subject, h.Snippet)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print hits as JSON")
	return cmd
}
