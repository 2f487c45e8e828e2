// Package ocr turns stored PDFs into text by running an external OCR tool.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/entity"
)

// Placeholders substituted inside configured arguments.
const (
	PlaceholderInput  = "{input}"
	PlaceholderOutput = "{output}"
	PlaceholderLog    = "{log}"
)

const stderrTailBytes = 512

// TextExtractor makes one attempt at extracting text from a document. It never retries.
type TextExtractor interface {
	Extract(ctx context.Context, doc *entity.Document) (string, error)
}

// BlobOpener is the part of the blob store the extractor reads from.
type BlobOpener interface {
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)
}

type Config struct {
	Executable string
	Args       []string // default: {input} {output}
	WorkRoot   string
	InputDir   string // relative to WorkRoot unless absolute
	OutputDir  string
	LogsDir    string
	Timeout    time.Duration
	KeepLogs   bool
}

// ConfigFrom maps application config onto the extractor's.
func ConfigFrom(cfg common.OCRConfig) Config {
	return Config{
		Executable: cfg.Executable,
		Args:       cfg.Args,
		WorkRoot:   cfg.WorkRoot,
		InputDir:   cfg.InputDir,
		OutputDir:  cfg.OutputDir,
		LogsDir:    cfg.LogsDir,
		Timeout:    cfg.Timeout,
		KeepLogs:   cfg.KeepLogs,
	}
}

// ProcessExtractor runs the configured executable against a private copy of the blob.
type ProcessExtractor struct {
	cfg    Config
	blobs  BlobOpener
	runner CommandRunner
	logger *slog.Logger
}

// NewProcessExtractor fails with common.ErrConfiguration when the executable is
// not an existing regular file. Work directories are created up front.
func NewProcessExtractor(cfg Config, blobs BlobOpener, runner CommandRunner, logger *slog.Logger) (*ProcessExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	exe, err := resolveExecutable(cfg.Executable)
	if err != nil {
		logger.Error("ocr executable not usable", "executable", cfg.Executable, "error", err)
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("OCR_EXECUTABLE %q: %v", cfg.Executable, err), common.ErrConfiguration)
	}
	cfg.Executable = exe
	if len(cfg.Args) == 0 {
		cfg.Args = []string{PlaceholderInput, PlaceholderOutput}
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = filepath.Join(os.TempDir(), "docrepo-ocr")
	}
	cfg.InputDir = underRoot(cfg.WorkRoot, cfg.InputDir, "input")
	cfg.OutputDir = underRoot(cfg.WorkRoot, cfg.OutputDir, "output")
	cfg.LogsDir = underRoot(cfg.WorkRoot, cfg.LogsDir, "logs")
	for _, dir := range []string{cfg.InputDir, cfg.OutputDir, cfg.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("create ocr work dir %q", dir), errors.Join(common.ErrConfiguration, err))
		}
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &ProcessExtractor{cfg: cfg, blobs: blobs, runner: runner, logger: logger}, nil
}

func resolveExecutable(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("not configured")
	}
	path := name
	if !strings.ContainsRune(name, filepath.Separator) && !strings.ContainsRune(name, '/') {
		found, err := exec.LookPath(name)
		if err != nil {
			return "", err
		}
		path = found
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !fi.Mode().IsRegular() {
		return "", errors.New("not a regular file")
	}
	return filepath.Abs(path)
}

func underRoot(root, dir, fallback string) string {
	if dir == "" {
		dir = fallback
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// Extract copies the document's blob into the work area, runs the tool and reads its text output.
// Every artifact is removed before returning; the log survives only with KeepLogs.
func (e *ProcessExtractor) Extract(ctx context.Context, doc *entity.Document) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("extract: %w", common.ErrInvalidInput)
	}
	base := fmt.Sprintf("%s-%s", doc.ID, uuid.NewString()[:8])
	in := filepath.Join(e.cfg.InputDir, base+".pdf")
	out := filepath.Join(e.cfg.OutputDir, base+".txt")
	logPath := filepath.Join(e.cfg.LogsDir, base+".log")
	defer e.cleanup(in, out, logPath)

	if err := e.stage(ctx, doc.StoragePath, in); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}

	runCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	e.logger.Info("ocr run started", "document_id", doc.ID, "executable", filepath.Base(e.cfg.Executable))
	start := time.Now()
	stdout, stderr, runErr := e.runner.Run(runCtx, e.cfg.Executable, expandArgs(e.cfg.Args, in, out, logPath)...)
	e.writeLog(logPath, stdout, stderr, runErr)

	switch {
	case ctx.Err() != nil:
		return "", ctx.Err()
	case runErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("ocr timed out after %s", e.cfg.Timeout)
	case runErr != nil:
		msg := fmt.Sprintf("ocr process failed: %v", runErr)
		if t := tail(string(stderr), stderrTailBytes); t != "" {
			msg += ": " + t
		}
		return "", errors.New(msg)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", errors.New("ocr process produced no output file")
		}
		return "", fmt.Errorf("read ocr output: %w", err)
	}
	text := Normalize(string(raw))
	e.logger.Info("ocr run finished", "document_id", doc.ID, "duration_ms", time.Since(start).Milliseconds(), "chars", len(text))
	return text, nil
}

// stage copies the blob to a private input file so the tool never sees the store.
func (e *ProcessExtractor) stage(ctx context.Context, storagePath, dst string) error {
	src, err := e.blobs.OpenRead(ctx, storagePath)
	if err != nil {
		return fmt.Errorf("open blob: %w", err)
	}
	defer func() { _ = src.Close() }()

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create ocr input: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return fmt.Errorf("copy ocr input: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close ocr input: %w", err)
	}
	return nil
}

func (e *ProcessExtractor) writeLog(path string, stdout, stderr []byte, runErr error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "== stdout\n%s\n== stderr\n%s\n", stdout, stderr)
	if runErr != nil {
		fmt.Fprintf(&b, "== error\n%v\n", runErr)
	}
	// The tool may have written its own log through {log}; append ours.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		e.logger.Warn("failed to write ocr log", "path", path, "error", err)
		return
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(b.Bytes()); err != nil {
		e.logger.Warn("failed to write ocr log", "path", path, "error", err)
	}
}

func (e *ProcessExtractor) cleanup(in, out, logPath string) {
	paths := []string{in, out}
	if !e.cfg.KeepLogs {
		paths = append(paths, logPath)
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("failed to remove ocr artifact", "path", p, "error", err)
		}
	}
}

func expandArgs(args []string, in, out, logPath string) []string {
	r := strings.NewReplacer(PlaceholderInput, in, PlaceholderOutput, out, PlaceholderLog, logPath)
	expanded := make([]string, len(args))
	for i, a := range args {
		expanded[i] = r.Replace(a)
	}
	return expanded
}
