// Package search answers ranked full-text queries over documents.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/entity"
	"github.com/joseph-ayodele/docrepo/internal/metrics"
	"github.com/joseph-ayodele/docrepo/internal/repository"
)

// DefaultLimit caps the hit list when no limit is configured.
const DefaultLimit = 50

type Service struct {
	repo    repository.SearchRepository
	limit   int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(repo repository.SearchRepository, cfg common.SearchConfig, logger *slog.Logger, m *metrics.Metrics) *Service {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{
		repo:    repo,
		limit:   limit,
		logger:  logger,
		metrics: m,
	}
}

// Search returns hits for raw, best first. A blank query, or one with no
// positive terms, returns an empty list without querying the store.
func (s *Service) Search(ctx context.Context, raw string) ([]entity.SearchHit, error) {
	if strings.TrimSpace(raw) == "" {
		return []entity.SearchHit{}, nil
	}
	q := ParseQuery(raw)
	if q.Empty() {
		s.logger.Debug("search query has no positive terms", "query", raw)
		return []entity.SearchHit{}, nil
	}

	start := time.Now()
	hits, err := s.repo.Search(ctx, q, s.limit)
	if err != nil {
		s.logger.Error("search failed", "query", q.String(), "error", err)
		return nil, fmt.Errorf("search %q: %w", raw, err)
	}
	s.metrics.ObserveSearch(len(hits), time.Since(start))
	s.logger.Debug("search completed", "query", q.String(), "hits", len(hits), "duration_ms", time.Since(start).Milliseconds())
	return hits, nil
}
