package search

import (
	"strings"
	"unicode"
)

// Term is a word or quoted phrase from a query.
type Term struct {
	Text    string
	Phrase  bool
	Negated bool
}

// Query is a web-style query: alternatives separated by OR, each an
// implicit AND of terms. Alternatives without a positive term are dropped.
type Query struct {
	groups [][]Term
}

// ParseQuery understands quoted phrases, implicit AND, OR and -exclusion.
func ParseQuery(raw string) Query {
	var (
		groups  [][]Term
		current []Term
	)
	flush := func() {
		if hasPositive(current) {
			groups = append(groups, current)
		}
		current = nil
	}

	rs := []rune(raw)
	for i := 0; i < len(rs); {
		if unicode.IsSpace(rs[i]) {
			i++
			continue
		}
		negated := false
		if rs[i] == '-' && i+1 < len(rs) && !unicode.IsSpace(rs[i+1]) {
			negated = true
			i++
		}

		if rs[i] == '"' {
			end := i + 1
			for end < len(rs) && rs[end] != '"' {
				end++
			}
			text := normalizeText(string(rs[i+1 : min(end, len(rs))]))
			i = end + 1
			if text != "" {
				current = append(current, Term{Text: text, Phrase: strings.Contains(text, " "), Negated: negated})
			}
			continue
		}

		start := i
		for i < len(rs) && !unicode.IsSpace(rs[i]) && rs[i] != '"' {
			i++
		}
		word := string(rs[start:i])
		if !negated && strings.EqualFold(word, "or") {
			flush()
			continue
		}
		if text := normalizeText(word); text != "" {
			current = append(current, Term{Text: text, Phrase: strings.Contains(text, " "), Negated: negated})
		}
	}
	flush()
	return Query{groups: groups}
}

// normalizeText lowercases s and reduces it to space separated runs of letters and digits.
func normalizeText(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

func hasPositive(terms []Term) bool {
	for _, t := range terms {
		if !t.Negated {
			return true
		}
	}
	return false
}

// Empty reports whether the query has nothing to look for.
func (q Query) Empty() bool { return len(q.groups) == 0 }

// Positive returns the positive terms in query order.
func (q Query) Positive() []Term {
	var out []Term
	for _, g := range q.groups {
		for _, t := range g {
			if !t.Negated {
				out = append(out, t)
			}
		}
	}
	return out
}

// String renders the normalized query in web search syntax.
func (q Query) String() string { return q.Websearch() }

func (q Query) Websearch() string {
	parts := make([]string, 0, len(q.groups))
	for _, g := range q.groups {
		terms := make([]string, 0, len(g))
		for _, t := range g {
			s := websearchTerm(t)
			if t.Negated {
				s = "-" + s
			}
			terms = append(terms, s)
		}
		parts = append(parts, strings.Join(terms, " "))
	}
	return strings.Join(parts, " or ")
}

func (q Query) PositiveWebsearch() string {
	pos := q.Positive()
	terms := make([]string, 0, len(pos))
	for _, t := range pos {
		terms = append(terms, websearchTerm(t))
	}
	return strings.Join(terms, " or ")
}

func (q Query) FTS5() string {
	parts := make([]string, 0, len(q.groups))
	for _, g := range q.groups {
		var pos, neg []string
		for _, t := range g {
			if t.Negated {
				neg = append(neg, fts5Term(t))
			} else {
				pos = append(pos, fts5Term(t))
			}
		}
		expr := "(" + strings.Join(pos, " ") + ")"
		for _, n := range neg {
			expr += " NOT " + n
		}
		parts = append(parts, "("+expr+")")
	}
	return strings.Join(parts, " OR ")
}

func (q Query) FTS5Column(column string) string {
	pos := q.Positive()
	terms := make([]string, 0, len(pos))
	for _, t := range pos {
		terms = append(terms, fts5Term(t))
	}
	return "{" + column + "} : (" + strings.Join(terms, " OR ") + ")"
}

// websearchTerm quotes phrases, and the word "or", which websearch_to_tsquery
// would otherwise read as an operator.
func websearchTerm(t Term) string {
	if t.Phrase || t.Text == "or" {
		return `"` + t.Text + `"`
	}
	return t.Text
}

// fts5Term quotes t as an FTS5 string; a multi-word string is a phrase.
func fts5Term(t Term) string {
	return `"` + strings.ReplaceAll(t.Text, `"`, `""`) + `"`
}
