package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"

	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/entity"
)

// Match is a parsed query rendered for each backend.
type Match interface {
	// Websearch is the input for websearch_to_tsquery.
	Websearch() string
	// PositiveWebsearch ORs the positive terms only; it drives per-field match flags.
	PositiveWebsearch() string
	// FTS5 is an FTS5 MATCH expression.
	FTS5() string
	// FTS5Column restricts the positive terms to one FTS5 column.
	FTS5Column(column string) string
}

// SearchRepository runs ranked full-text queries over non-deleted documents.
type SearchRepository interface {
	Search(ctx context.Context, m Match, limit int) ([]entity.SearchHit, error)
}

const postgresSearchSQL = `
WITH q AS (
    SELECT websearch_to_tsquery('simple', $1) AS query,
           websearch_to_tsquery('simple', $2) AS positive
)
SELECT d.id, d.subject, d.document_date,
       ts_rank_cd(d.search_vector, q.query) AS score,
       ts_headline('simple', coalesce(nullif(t.ocr_text, ''), d.subject), q.positive,
                   'StartSel="<<", StopSel=">>", MaxFragments=1, MaxWords=24, MinWords=8') AS snippet,
       to_tsvector('simple', d.subject) @@ q.positive AS in_subject,
       to_tsvector('simple', d.tags) @@ q.positive AS in_tags,
       to_tsvector('simple', coalesce(t.ocr_text, '')) @@ q.positive AS in_body
FROM documents d
CROSS JOIN q
LEFT JOIN document_texts t ON t.document_id = d.id
WHERE NOT d.is_deleted
  AND d.search_vector @@ q.query
ORDER BY score DESC, (d.document_date IS NULL), d.document_date DESC, d.created_at DESC
LIMIT $3`

// bm25 weights follow the fts column order: document_id, subject, tags, body.
const sqliteSearchSQL = `
SELECT d.id, d.subject, d.document_date,
       -bm25(documents_fts, 0.0, 4.0, 2.0, 1.0) AS score,
       snippet(documents_fts, -1, '<<', '>>', '...', 16) AS snippet,
       documents_fts.rowid IN (SELECT rowid FROM documents_fts WHERE documents_fts MATCH ?) AS in_subject,
       documents_fts.rowid IN (SELECT rowid FROM documents_fts WHERE documents_fts MATCH ?) AS in_tags,
       documents_fts.rowid IN (SELECT rowid FROM documents_fts WHERE documents_fts MATCH ?) AS in_body
FROM documents_fts
JOIN documents d ON d.id = documents_fts.document_id
WHERE documents_fts MATCH ?
  AND d.is_deleted = 0
ORDER BY score DESC,
         CASE WHEN d.document_date IS NULL THEN 1 ELSE 0 END,
         d.document_date DESC,
         d.created_at DESC
LIMIT ?`

type searchRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewSearchRepository(db *DB, logger *slog.Logger) SearchRepository {
	return &searchRepo{
		db:     db,
		logger: logger,
	}
}

func (r *searchRepo) Search(ctx context.Context, m Match, limit int) ([]entity.SearchHit, error) {
	var (
		query string
		args  []any
	)
	if r.db.Dialect == dialect.SQLite {
		query = sqliteSearchSQL
		args = []any{
			m.FTS5Column("subject"),
			m.FTS5Column("tags"),
			m.FTS5Column("body"),
			m.FTS5(),
			int64(limit),
		}
	} else {
		query = postgresSearchSQL
		args = []any{m.Websearch(), m.PositiveWebsearch(), int64(limit)}
	}

	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("search query failed", "dialect", r.db.Dialect, "error", err)
		return nil, fmt.Errorf("%w: search: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]entity.SearchHit, 0)
	for rows.Next() {
		var (
			h       entity.SearchHit
			docDate sql.NullTime
			snippet sql.NullString
		)
		if err := rows.Scan(&h.DocumentID, &h.Subject, &docDate, &h.Rank, &snippet,
			&h.MatchedInSubject, &h.MatchedInTags, &h.MatchedInBody); err != nil {
			return nil, fmt.Errorf("%w: scan search hit: %v", common.ErrDatabase, err)
		}
		if docDate.Valid {
			t := docDate.Time.UTC()
			h.DocumentDate = &t
		}
		h.Snippet = snippet.String
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: search: %v", common.ErrDatabase, err)
	}
	return hits, nil
}
