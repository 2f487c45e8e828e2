// Package ingest accepts PDFs from callers and other subsystems, deduplicates
// them by content hash and records which (module, item) pairs reference them.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/docrepo/constants"
	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/contenthash"
	"github.com/joseph-ayodele/docrepo/internal/entity"
	"github.com/joseph-ayodele/docrepo/internal/metrics"
	"github.com/joseph-ayodele/docrepo/internal/pdfinfo"
	"github.com/joseph-ayodele/docrepo/internal/repository"
)

const maxSourceRunes = 200

// BlobStore is the part of blob.Store ingestion needs.
type BlobStore interface {
	Save(ctx context.Context, src io.Reader, suggestedFileName string, asOf time.Time) (string, error)
	Delete(ctx context.Context, rel string) error
}

type Service struct {
	docs    repository.DocumentRepository
	blobs   BlobStore
	cfg     common.IngestConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	tempDir string
}

func NewService(docs repository.DocumentRepository, blobs BlobStore, cfg common.IngestConfig, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		docs:    docs,
		blobs:   blobs,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// IngestExternalPDF stores the PDF read from r unless identical content is
// already stored, and links the resulting document to (sourceModule, sourceItemID).
// Calling it again with the same content and pair is a no-op that returns the same id.
func (s *Service) IngestExternalPDF(ctx context.Context, r io.Reader, originalFileName, sourceModule, sourceItemID string, opts ...Option) (Result, error) {
	if !s.cfg.Enabled {
		s.logger.Info("ingestion disabled, skipping", "source_module", sourceModule, "source_item_id", sourceItemID)
		s.metrics.ObserveIngest(string(OutcomeDisabled), 0)
		return Result{Outcome: OutcomeDisabled}, nil
	}

	o := options{actor: common.ActorIDFromContext(ctx)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.actor = strings.TrimSpace(o.actor); o.actor == "" {
		o.actor = common.SystemActor
	}
	module := strings.TrimSpace(sourceModule)
	item := strings.TrimSpace(sourceItemID)
	v := common.NewValidator().
		Field("source_module", module, common.Required, common.MaxLength(maxSourceRunes)).
		Field("source_item_id", item, common.Required, common.MaxLength(maxSourceRunes))
	if r == nil {
		v.Field("payload", nil, common.Required)
	}
	if err := v.Err(); err != nil {
		s.metrics.ObserveIngest("rejected", 0)
		return Result{}, err
	}
	fileName := SanitizeFileName(originalFileName)

	spooled, hash, size, err := s.spool(ctx, r)
	if err != nil {
		s.observeFailure(err)
		return Result{}, err
	}
	defer func() {
		_ = spooled.Close()
		_ = os.Remove(spooled.Name())
	}()

	log := s.logger.With("content_hash", hash, "source_module", module, "source_item_id", item)

	existing, err := s.docs.FindActiveByHash(ctx, hash)
	switch {
	case err == nil:
		res, err := s.link(ctx, existing, module, item)
		if err != nil {
			s.observeFailure(err)
			return Result{}, err
		}
		log.Info("document deduplicated", "document_id", res.DocumentID, "link_created", res.LinkCreated)
		s.metrics.ObserveIngest(string(res.Outcome), 0)
		return res, nil
	case !errors.Is(err, common.ErrNotFound):
		s.observeFailure(err)
		return Result{}, fmt.Errorf("lookup by hash: %w", err)
	}

	res, err := s.create(ctx, log, spooled, hash, size, fileName, module, item, o)
	if err != nil {
		s.observeFailure(err)
		return Result{}, err
	}
	if res.Outcome == OutcomeCreated {
		s.metrics.ObserveIngest(string(res.Outcome), size)
	} else {
		s.metrics.ObserveIngest(string(res.Outcome), 0)
	}
	return res, nil
}

func (s *Service) create(ctx context.Context, log *slog.Logger, spooled *os.File, hash string, size int64, fileName, module, item string, o options) (Result, error) {
	if strings.TrimSpace(s.cfg.CategoryID) == "" || strings.TrimSpace(s.cfg.ClassificationID) == "" {
		return Result{}, common.NewAppError(common.CodeConfig,
			"INGEST_CATEGORY_ID and INGEST_CLASSIFICATION_ID are required to create documents", common.ErrConfiguration)
	}

	var pageCount *int
	if s.cfg.ValidatePDF {
		info, err := pdfinfo.Inspect(spooled)
		if err != nil {
			return Result{}, err
		}
		pageCount = &info.PageCount
	}
	if _, err := spooled.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("rewind spooled payload: %w", err)
	}

	now := s.now().UTC()
	rel, err := s.blobs.Save(ctx, spooled, fileName, now)
	if err != nil {
		return Result{}, fmt.Errorf("store blob: %w", err)
	}

	doc, err := s.docs.CreateWithLink(ctx, entity.NewDocument{
		ContentHash:      hash,
		StoragePath:      rel,
		Subject:          strings.TrimSpace(o.subject),
		Tags:             strings.TrimSpace(o.tags),
		CategoryID:       s.cfg.CategoryID,
		ClassificationID: s.cfg.ClassificationID,
		OriginalFileName: fileName,
		MimeType:         constants.PDFMimeType,
		ByteSize:         size,
		PageCount:        pageCount,
		DocumentDate:     o.documentDate,
		Actor:            o.actor,
	}, module, item)
	if err != nil {
		s.removeBlob(ctx, rel)
		if !errors.Is(err, common.ErrConflict) {
			return Result{}, err
		}
		// Someone else stored the same content between lookup and insert.
		log.Info("concurrent ingest of same content, re-resolving")
		winner, ferr := s.docs.FindActiveByHash(ctx, hash)
		if ferr != nil {
			return Result{}, fmt.Errorf("re-resolve after conflict: %w", ferr)
		}
		return s.link(ctx, winner, module, item)
	}

	log.Info("document created", "document_id", doc.ID, "storage_path", rel, "bytes", size)
	return Result{
		DocumentID:  doc.ID,
		Outcome:     OutcomeCreated,
		ContentHash: hash,
		LinkCreated: true,
	}, nil
}

func (s *Service) link(ctx context.Context, doc *entity.Document, module, item string) (Result, error) {
	created, err := s.docs.EnsureLink(ctx, doc.ID, module, item)
	if err != nil {
		return Result{}, fmt.Errorf("link document: %w", err)
	}
	return Result{
		DocumentID:  doc.ID,
		Outcome:     OutcomeDeduplicated,
		ContentHash: doc.ContentHash,
		LinkCreated: created,
	}, nil
}

// spool copies the payload to a temp file while hashing it, so that large
// uploads are never held in memory and can be re-read for validation and storage.
func (s *Service) spool(ctx context.Context, r io.Reader) (*os.File, string, int64, error) {
	f, err := os.CreateTemp(s.tempDir, "docrepo-ingest-*.pdf")
	if err != nil {
		return nil, "", 0, common.NewAppError(common.CodeStorage, "create spool file", err)
	}
	fail := func(err error) (*os.File, string, int64, error) {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, "", 0, err
	}

	src := r
	if s.cfg.MaxBytes > 0 {
		src = io.LimitReader(r, s.cfg.MaxBytes+1)
	}
	hash, n, err := contenthash.Sum(io.TeeReader(src, f))
	if err != nil {
		return fail(fmt.Errorf("read payload: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if s.cfg.MaxBytes > 0 && n > s.cfg.MaxBytes {
		return fail(common.NewAppError(common.CodeValidation,
			fmt.Sprintf("payload exceeds %d bytes", s.cfg.MaxBytes), common.ErrInvalidInput))
	}
	if n == 0 {
		return fail(common.NewAppError(common.CodeValidation, "payload is empty", common.ErrInvalidInput))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fail(fmt.Errorf("rewind spool file: %w", err))
	}
	return f, hash, n, nil
}

// removeBlob runs even when ctx is already cancelled.
func (s *Service) removeBlob(ctx context.Context, rel string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), rel); err != nil {
		s.logger.Warn("failed to remove orphan blob", "storage_path", rel, "error", err)
	}
}

func (s *Service) observeFailure(err error) {
	if errors.Is(err, common.ErrInvalidInput) {
		s.metrics.ObserveIngest("rejected", 0)
		return
	}
	s.metrics.ObserveIngest("error", 0)
}
