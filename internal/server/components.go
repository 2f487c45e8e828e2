package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/docrepo/internal/blob"
	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/ingest"
	"github.com/joseph-ayodele/docrepo/internal/metrics"
	"github.com/joseph-ayodele/docrepo/internal/ocr"
	"github.com/joseph-ayodele/docrepo/internal/pipeline"
	"github.com/joseph-ayodele/docrepo/internal/repository"
	"github.com/joseph-ayodele/docrepo/internal/search"
)

// Components is the assembled application shared by the daemon and the CLI.
type Components struct {
	DB        *repository.DB
	Blobs     *blob.Store
	Metrics   *metrics.Metrics
	Documents repository.DocumentRepository
	OCRState  repository.OCRStateRepository
	Ingest    *ingest.Service
	Search    *search.Service

	orchestrator *pipeline.Orchestrator
	ocrErr       error
}

// NewComponents connects to the database and builds every service. An unset
// OCR_EXECUTABLE leaves OCR disabled, which Orchestrator reports; one that is
// set but cannot be resolved fails construction.
func NewComponents(ctx context.Context, cfg *common.Config, logger *slog.Logger, reg prometheus.Registerer) (*Components, error) {
	db, err := ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	blobs, err := blob.NewStore(cfg.Blob.Root, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	c := &Components{
		DB:        db,
		Blobs:     blobs,
		Metrics:   m,
		Documents: repository.NewDocumentRepository(db, logger),
		OCRState:  repository.NewOCRStateRepository(db, logger),
	}
	c.Ingest = ingest.NewService(c.Documents, blobs, cfg.Ingest, logger, m)
	c.Search = search.NewService(repository.NewSearchRepository(db, logger), cfg.Search, logger, m)

	if strings.TrimSpace(cfg.OCR.Executable) == "" {
		logger.Warn("ocr disabled: OCR_EXECUTABLE is not set")
		c.ocrErr = errOCRUnavailable
		return c, nil
	}
	extractor, err := ocr.NewProcessExtractor(ocr.ConfigFrom(cfg.OCR), blobs, ocr.ExecRunner{Logger: logger}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.orchestrator = pipeline.NewOrchestrator(c.Documents, c.OCRState, extractor, pipeline.ConfigFrom(cfg.OCR), logger, m)
	return c, nil
}

// Orchestrator returns the OCR orchestrator or the configuration error that prevented building it.
func (c *Components) Orchestrator() (*pipeline.Orchestrator, error) {
	if c.orchestrator == nil {
		return nil, c.ocrErr
	}
	return c.orchestrator, nil
}

func (c *Components) Close() {
	c.DB.Close()
}

// NewGRPCServer registers the document service and the standard health
// service. Health reports SERVING for the overall server and ServiceName.
func NewGRPCServer(c *Components, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append(opts, grpc.ChainUnaryInterceptor(UnaryInterceptor(logger, c.Metrics)))
	srv := grpc.NewServer(opts...)

	var proc Processor
	if orch, err := c.Orchestrator(); err == nil {
		proc = orch
	}
	RegisterDocumentServiceServer(srv, NewDocumentServer(c.Ingest, proc, c.Search, logger))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv, hs
}
