package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docrepo/constants"
	"github.com/joseph-ayodele/docrepo/internal/common"
)

// FileResult is the per-file outcome of a directory or manifest ingest.
type FileResult struct {
	Path         string
	SourceItemID string
	DocumentID   uuid.UUID
	Outcome      Outcome
	ContentHash  string
	Err          string
}

// DirStats summarizes a directory or manifest ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Created      uint32
	Deduplicated uint32
	Failed       uint32
}

func (st *DirStats) record(res FileResult) {
	switch {
	case res.Err != "":
		st.Failed++
	case res.Outcome == OutcomeCreated:
		st.Created++
	case res.Outcome == OutcomeDeduplicated:
		st.Deduplicated++
	}
}

// IngestFile ingests the PDF at path. The stored file name is the base name of path.
func (s *Service) IngestFile(ctx context.Context, path, sourceModule, sourceItemID string, opts ...Option) (Result, error) {
	return s.ingestPath(ctx, path, filepath.Base(path), sourceModule, sourceItemID, opts...)
}

func (s *Service) ingestPath(ctx context.Context, path, fileName, sourceModule, sourceItemID string, opts ...Option) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("open %s: %w", path, common.ErrNotFound)
		}
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return s.IngestExternalPDF(ctx, f, fileName, sourceModule, sourceItemID, opts...)
}

// IngestDirectory walks root and ingests every PDF below it. Each file is
// linked to (sourceModule, path relative to root). A failing file is recorded
// and the walk continues; only cancellation stops it early.
func (s *Service) IngestDirectory(ctx context.Context, root, sourceModule string, skipHidden bool) ([]FileResult, DirStats, error) {
	var stats DirStats
	if strings.TrimSpace(root) == "" {
		return nil, stats, common.NewAppError(common.CodeValidation, "root path is required", common.ErrInvalidInput)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve root: %w", err)
	}

	var results []FileResult
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Scanned++
			stats.Failed++
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			return nil
		}
		if path != root && skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !d.Type().IsRegular() || !constants.IsAllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		item, err := relativeItemID(root, path)
		if err != nil {
			return err
		}
		res := s.ingestOne(ctx, path, "", sourceModule, item)
		if res.Err != "" && ctx.Err() != nil {
			return ctx.Err()
		}
		stats.record(res)
		results = append(results, res)
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk %s: %w", root, err)
	}

	s.logger.Info("directory ingested",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"created", stats.Created,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}

// ingestOne never returns an error; failures land in FileResult.Err.
// An empty fileName means the base name of path.
func (s *Service) ingestOne(ctx context.Context, path, fileName, module, item string, opts ...Option) FileResult {
	out := FileResult{Path: path, SourceItemID: item}
	if fileName == "" {
		fileName = filepath.Base(path)
	}
	res, err := s.ingestPath(ctx, path, fileName, module, item, opts...)
	if err != nil {
		s.logger.Warn("file ingest failed", "path", path, "source_item_id", item, "error", err)
		out.Err = err.Error()
		return out
	}
	out.DocumentID = res.DocumentID
	out.Outcome = res.Outcome
	out.ContentHash = res.ContentHash
	return out
}

// relativeItemID renders path relative to root with forward slashes so ids
// are stable across platforms.
func relativeItemID(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	return filepath.ToSlash(rel), nil
}
