package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/entity"
	"github.com/joseph-ayodele/docrepo/internal/ingest"
)

const (
	dateLayout          = "2006-01-02"
	defaultPendingLimit = 100
)

type Ingester interface {
	IngestExternalPDF(ctx context.Context, r io.Reader, originalFileName, sourceModule, sourceItemID string, opts ...ingest.Option) (ingest.Result, error)
}

type Processor interface {
	Process(ctx context.Context, id uuid.UUID) (bool, error)
	RetryFailed(ctx context.Context) (int, error)
	ProcessPending(ctx context.Context, limit int) (int, error)
}

type Searcher interface {
	Search(ctx context.Context, raw string) ([]entity.SearchHit, error)
}

// DocumentServer implements DocumentServiceServer. Handlers return plain
// application errors; the unary interceptor maps them onto gRPC codes.
type DocumentServer struct {
	ingester  Ingester
	processor Processor
	searcher  Searcher
	logger    *slog.Logger
}

// NewDocumentServer wires the handlers. A nil processor makes the OCR methods
// fail with a configuration error, which is how the daemon runs without an OCR executable.
func NewDocumentServer(ing Ingester, proc Processor, srch Searcher, logger *slog.Logger) *DocumentServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentServer{
		ingester:  ing,
		processor: proc,
		searcher:  srch,
		logger:    logger,
	}
}

var errOCRUnavailable = common.NewAppError(common.CodeConfig, "ocr is not configured (OCR_EXECUTABLE)", common.ErrConfiguration)

// IngestDocument request: content (base64), source_module, source_item_id,
// file_name, subject, tags, document_date (YYYY-MM-DD).
// Response: document_id, outcome, content_hash, link_created.
func (s *DocumentServer) IngestDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := readFields(req)
	content := f.requiredStr("content")
	module := f.requiredStr("source_module")
	item := f.requiredStr("source_item_id")
	fileName := f.str("file_name")
	opts := []ingest.Option{ingest.WithSubject(f.str("subject")), ingest.WithTags(f.str("tags"))}
	if d := f.str("document_date"); d != "" {
		date, err := time.Parse(dateLayout, d)
		if err != nil {
			f.v.Field("document_date", d, wrongType("a date (YYYY-MM-DD)"))
		} else {
			opts = append(opts, ingest.WithDocumentDate(date))
		}
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	payload, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, common.NewAppError(common.CodeValidation, "content must be base64", common.ErrInvalidInput)
	}

	res, err := s.ingester.IngestExternalPDF(ctx, bytes.NewReader(payload), fileName, module, item, opts...)
	if err != nil {
		return nil, err
	}
	id := ""
	if res.DocumentID != uuid.Nil {
		id = res.DocumentID.String()
	}
	return newStruct(map[string]any{
		"document_id":  id,
		"outcome":      string(res.Outcome),
		"content_hash": res.ContentHash,
		"link_created": res.LinkCreated,
	})
}

// ProcessDocument request: document_id. Response: document_id, succeeded.
func (s *DocumentServer) ProcessDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := readFields(req)
	raw := f.requiredStr("document_id")
	if raw != "" {
		f.v.Field("document_id", raw, common.UUID)
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	if s.processor == nil {
		return nil, errOCRUnavailable
	}
	id := uuid.MustParse(raw)
	ok, err := s.processor.Process(ctx, id)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{"document_id": id.String(), "succeeded": ok})
}

// RetryFailed request: empty. Response: processed.
func (s *DocumentServer) RetryFailed(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.processor == nil {
		return nil, errOCRUnavailable
	}
	n, err := s.processor.RetryFailed(ctx)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{"processed": n})
}

// ProcessPending request: limit (default 100, 0 for all). Response: processed.
func (s *DocumentServer) ProcessPending(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := readFields(req)
	limit := f.integer("limit", defaultPendingLimit)
	if err := f.err(); err != nil {
		return nil, err
	}
	if s.processor == nil {
		return nil, errOCRUnavailable
	}
	n, err := s.processor.ProcessPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{"processed": n})
}

// Search request: query. Response: hits, each with document_id, subject,
// document_date, snippet, matched_fields, score.
func (s *DocumentServer) Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := readFields(req)
	query := f.str("query")
	if err := f.err(); err != nil {
		return nil, err
	}
	hits, err := s.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(hits))
	for _, h := range hits {
		out = append(out, hitToMap(h))
	}
	return newStruct(map[string]any{"hits": out})
}

func hitToMap(h entity.SearchHit) map[string]any {
	matched := make([]any, 0, 3)
	for _, field := range h.MatchedFields() {
		matched = append(matched, field)
	}
	var date any
	if h.DocumentDate != nil {
		date = h.DocumentDate.UTC().Format(dateLayout)
	}
	return map[string]any{
		"document_id":    h.DocumentID.String(),
		"subject":        h.Subject,
		"document_date":  date,
		"snippet":        h.Snippet,
		"matched_fields": matched,
		"score":          h.Rank,
	}
}
