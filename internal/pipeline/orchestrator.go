// Package pipeline drives documents through the OCR state machine.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docrepo/constants"
	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/metrics"
	"github.com/joseph-ayodele/docrepo/internal/ocr"
	"github.com/joseph-ayodele/docrepo/internal/repository"
)

type Config struct {
	MaxTextRunes     int
	MaxReasonRunes   int
	BatchConcurrency int
}

// ConfigFrom maps application config onto the orchestrator's.
func ConfigFrom(cfg common.OCRConfig) Config {
	return Config{
		MaxTextRunes:     cfg.MaxTextRunes,
		MaxReasonRunes:   cfg.MaxReasonRunes,
		BatchConcurrency: cfg.BatchConcurrency,
	}
}

// Orchestrator runs the extractor for documents and records the outcome.
// It only writes OCR state; document metadata belongs to ingestion.
type Orchestrator struct {
	docs      repository.DocumentRepository
	state     repository.OCRStateRepository
	extractor ocr.TextExtractor
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewOrchestrator(
	docs repository.DocumentRepository,
	state repository.OCRStateRepository,
	extractor ocr.TextExtractor,
	cfg Config,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTextRunes <= 0 {
		cfg.MaxTextRunes = 1_000_000
	}
	if cfg.MaxReasonRunes <= 0 {
		cfg.MaxReasonRunes = 1000
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 1
	}
	return &Orchestrator{
		docs:      docs,
		state:     state,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// Process runs (or re-runs) OCR for one document and reports whether it succeeded.
// The reset to Pending is committed before the extractor starts. If ctx ends
// during the run the document stays Pending and ctx's error is returned.
func (o *Orchestrator) Process(ctx context.Context, id uuid.UUID) (bool, error) {
	doc, err := o.docs.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("load document %s: %w", id, err)
	}
	if doc.IsDeleted {
		return false, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	if !constants.CanTransition(doc.OCRStatus, constants.OCRStatusPending) {
		return false, common.NewAppError(common.CodeConflict, fmt.Sprintf("document %s in state %q cannot be retried", id, doc.OCRStatus), common.ErrConflict)
	}
	if err := o.state.ResetToPending(ctx, id); err != nil {
		return false, fmt.Errorf("reset document %s: %w", id, err)
	}
	o.logger.Info("ocr pending", "document_id", id, "previous_status", doc.OCRStatus)

	start := time.Now()
	text, runErr := o.extractor.Extract(ctx, doc)
	elapsed := time.Since(start)
	if ctxErr := ctx.Err(); ctxErr != nil {
		o.logger.Warn("ocr interrupted; document left pending", "document_id", id, "error", ctxErr)
		return false, ctxErr
	}
	triedAt := o.now().UTC()

	if runErr != nil {
		reason := ocr.FailureReason(runErr, o.cfg.MaxReasonRunes)
		if err := o.state.MarkFailed(ctx, id, reason, triedAt); err != nil {
			return false, fmt.Errorf("record ocr failure for %s: %w", id, err)
		}
		o.metrics.ObserveOCR("failed", elapsed)
		o.logger.Warn("ocr failed", "document_id", id, "duration_ms", elapsed.Milliseconds(), "reason", reason)
		return false, nil
	}

	text = ocr.TruncateRunes(text, o.cfg.MaxTextRunes)
	if err := o.state.MarkSucceeded(ctx, id, text, triedAt); err != nil {
		return false, fmt.Errorf("record ocr success for %s: %w", id, err)
	}
	o.metrics.ObserveOCR("succeeded", elapsed)
	o.logger.Info("ocr succeeded", "document_id", id, "duration_ms", elapsed.Milliseconds(), "chars", len(text))
	return true, nil
}

// RetryFailed re-runs every Failed document. Per-document errors are logged
// and skipped; the count is of runs that reached an outcome.
func (o *Orchestrator) RetryFailed(ctx context.Context) (int, error) {
	ids, err := o.state.ListIDsByStatus(ctx, constants.OCRStatusFailed, 0)
	if err != nil {
		return 0, fmt.Errorf("list failed documents: %w", err)
	}
	o.logger.Info("retrying failed documents", "count", len(ids), "concurrency", o.cfg.BatchConcurrency)
	return o.runBatch(ctx, ids)
}

// ProcessPending runs documents that are still Pending, oldest first:
// fresh ingests and runs interrupted by a crash. limit <= 0 means all.
func (o *Orchestrator) ProcessPending(ctx context.Context, limit int) (int, error) {
	ids, err := o.state.ListIDsByStatus(ctx, constants.OCRStatusPending, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending documents: %w", err)
	}
	o.logger.Info("processing pending documents", "count", len(ids), "concurrency", o.cfg.BatchConcurrency)
	return o.runBatch(ctx, ids)
}

func (o *Orchestrator) runBatch(ctx context.Context, ids []uuid.UUID) (int, error) {
	var completed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.BatchConcurrency)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if _, err := o.Process(ctx, id); err != nil {
				o.logger.Error("ocr batch item failed", "document_id", id, "error", err)
				return nil
			}
			completed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	n := int(completed.Load())
	o.logger.Info("ocr batch finished", "requested", len(ids), "completed", n)
	if err := ctx.Err(); err != nil {
		return n, err
	}
	return n, nil
}
