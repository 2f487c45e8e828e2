package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	cases := []struct {
		raw       string
		websearch string
		fts5      string
		positive  string
	}{
		{
			raw:       "invoice",
			websearch: "invoice",
			fts5:      `(("invoice"))`,
			positive:  "invoice",
		},
		{
			raw:       `Quarterly "Safety Report" -draft`,
			websearch: `quarterly "safety report" -draft`,
			fts5:      `(("quarterly" "safety report") NOT "draft")`,
			positive:  `quarterly or "safety report"`,
		},
		{
			raw:       "invoice OR receipt 2024",
			websearch: "invoice or receipt 2024",
			fts5:      `(("invoice")) OR (("receipt" "2024"))`,
			positive:  "invoice or receipt or 2024",
		},
		{
			raw:       "or invoice or",
			websearch: "invoice",
			fts5:      `(("invoice"))`,
			positive:  "invoice",
		},
		{
			raw:       `e-mail "unterminated phrase`,
			websearch: `"e mail" "unterminated phrase"`,
			fts5:      `(("e mail" "unterminated phrase"))`,
			positive:  `"e mail" or "unterminated phrase"`,
		},
		{
			raw:       `"or" invoice -OR! or either`,
			websearch: `"or" invoice -"or" or either`,
			fts5:      `(("or" "invoice") NOT "or") OR (("either"))`,
			positive:  `"or" or invoice or either`,
		},
		{
			raw:       "invoice or -draft",
			websearch: "invoice",
			fts5:      `(("invoice"))`,
			positive:  "invoice",
		},
	}
	for _, tc := range cases {
		q := ParseQuery(tc.raw)
		require.False(t, q.Empty(), tc.raw)
		require.Equal(t, tc.websearch, q.Websearch(), tc.raw)
		require.Equal(t, tc.fts5, q.FTS5(), tc.raw)
		require.Equal(t, tc.positive, q.PositiveWebsearch(), tc.raw)
	}
}

func TestParseQuery_Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", "-draft", `""`, "OR", "- - -", "!!! ???", `-"old copy"`} {
		require.True(t, ParseQuery(raw).Empty(), raw)
	}
}

func TestQuery_FTS5Column(t *testing.T) {
	q := ParseQuery(`invoice "due date" -draft`)
	require.Equal(t, `{body} : ("invoice" OR "due date")`, q.FTS5Column("body"))
}
