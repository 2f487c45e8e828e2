package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/docrepo/internal/common"
)

// Manifest describes a batch of files to ingest, typically exported by another
// subsystem. Relative item paths resolve against the manifest's directory.
//
//	{
//	  "source_module": "legacy-archive",
//	  "items": [
//	    {"path": "2024/a.pdf", "source_item_id": "A-1", "subject": "Invoice", "document_date": "2024-03-01"}
//	  ]
//	}
type Manifest struct {
	SourceModule string         `json:"source_module,omitempty"`
	Items        []ManifestItem `json:"items"`
}

type ManifestItem struct {
	Path         string `json:"path"`
	SourceModule string `json:"source_module,omitempty"`
	SourceItemID string `json:"source_item_id"`
	FileName     string `json:"file_name,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Tags         string `json:"tags,omitempty"`
	DocumentDate string `json:"document_date,omitempty"`
}

const manifestDateLayout = "2006-01-02"

func manifestSchema() map[string]any {
	nonEmpty := map[string]any{"type": "string", "minLength": 1, "maxLength": maxSourceRunes}
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"path":           map[string]any{"type": "string", "minLength": 1},
			"source_module":  nonEmpty,
			"source_item_id": nonEmpty,
			"file_name":      map[string]any{"type": "string"},
			"subject":        map[string]any{"type": "string"},
			"tags":           map[string]any{"type": "string"},
			"document_date":  map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		},
		"required": []string{"path", "source_item_id"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"source_module": nonEmpty,
			"items":         map[string]any{"type": "array", "minItems": 1, "items": item},
		},
		"required": []string{"items"},
	}
}

var compiledManifestSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(manifestSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("manifest.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("manifest.json")
})

// ParseManifest validates data against the manifest schema and decodes it.
func ParseManifest(data []byte) (*Manifest, error) {
	schema, err := compiledManifestSchema()
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, common.NewAppError(common.CodeValidation, "manifest is not valid json", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	if err := schema.Validate(raw); err != nil {
		return nil, common.NewAppError(common.CodeValidation, "manifest does not match schema", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	v := common.NewValidator()
	for i, it := range m.Items {
		field := fmt.Sprintf("items[%d]", i)
		if m.moduleFor(it) == "" {
			v.Field(field+".source_module", "", common.Required)
		}
		if it.DocumentDate != "" {
			if _, err := time.Parse(manifestDateLayout, it.DocumentDate); err != nil {
				v.Field(field+".document_date", it.DocumentDate, invalidDate)
			}
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return &m, nil
}

func invalidDate(fieldName string, value interface{}) *common.ValidationError {
	return &common.ValidationError{Field: fieldName, Value: value, Message: "must be a calendar date (YYYY-MM-DD)"}
}

// LoadManifest reads and parses the manifest file at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

func (m *Manifest) moduleFor(it ManifestItem) string {
	if s := strings.TrimSpace(it.SourceModule); s != "" {
		return s
	}
	return strings.TrimSpace(m.SourceModule)
}

// IngestManifest ingests every item of m. Item failures are recorded and
// skipped; cancellation stops the batch.
func (s *Service) IngestManifest(ctx context.Context, m *Manifest, baseDir string) ([]FileResult, DirStats, error) {
	var stats DirStats
	results := make([]FileResult, 0, len(m.Items))
	for _, it := range m.Items {
		if err := ctx.Err(); err != nil {
			return results, stats, err
		}
		stats.Scanned++
		stats.Matched++

		path := it.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, filepath.FromSlash(path))
		}
		res := s.ingestManifestItem(ctx, path, m.moduleFor(it), it)
		if res.Err != "" && ctx.Err() != nil {
			return results, stats, ctx.Err()
		}
		stats.record(res)
		results = append(results, res)
	}
	s.logger.Info("manifest ingested",
		"items", len(m.Items),
		"created", stats.Created,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}

func (s *Service) ingestManifestItem(ctx context.Context, path, module string, it ManifestItem) FileResult {
	opts := []Option{WithSubject(it.Subject), WithTags(it.Tags)}
	if it.DocumentDate != "" {
		// Already checked by ParseManifest.
		if d, err := time.Parse(manifestDateLayout, it.DocumentDate); err == nil {
			opts = append(opts, WithDocumentDate(d))
		}
	}
	return s.ingestOne(ctx, path, it.FileName, module, it.SourceItemID, opts...)
}
