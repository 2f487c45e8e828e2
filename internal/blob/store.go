// Package blob stores immutable document payloads on the local filesystem.
//
// Paths handed out by Save are relative to the store root, slash separated,
// and sharded by year and month: {yyyy}/{mm}/{uuid}{ext}.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docrepo/constants"
	"github.com/joseph-ayodele/docrepo/internal/common"
)

var (
	// ErrNotFound is returned by OpenRead when the blob does not exist.
	ErrNotFound = fmt.Errorf("blob: %w", common.ErrNotFound)
	// ErrInvalidPath is returned for any path that could leave the store root.
	ErrInvalidPath = fmt.Errorf("blob: invalid path: %w", common.ErrInvalidInput)
)

// Store is a filesystem blob store rooted at a single directory.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates the root directory if needed.
func NewStore(root string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, common.NewAppError(common.CodeConfig, "blob root is required", common.ErrConfiguration)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, common.NewAppError(common.CodeStorage, "create blob root", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: abs, logger: logger}, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string { return s.root }

// Save streams src into a fresh file and returns its relative path.
func (s *Store) Save(ctx context.Context, src io.Reader, suggestedFileName string, asOf time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}
	asOf = asOf.UTC()
	rel := path.Join(
		fmt.Sprintf("%04d", asOf.Year()),
		fmt.Sprintf("%02d", int(asOf.Month())),
		uuid.NewString()+blobExt(suggestedFileName),
	)
	full, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", common.NewAppError(common.CodeStorage, "create blob directory", err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", common.NewAppError(common.CodeStorage, "create blob file", err)
	}
	n, copyErr := io.Copy(f, &ctxReader{ctx: ctx, r: src})
	if copyErr == nil {
		copyErr = f.Sync()
	}
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		if rmErr := os.Remove(full); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			s.logger.Warn("failed to remove partial blob", "path", rel, "error", rmErr)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", common.NewAppError(common.CodeStorage, "write blob", copyErr)
	}

	s.logger.Debug("blob saved", "path", rel, "bytes", n)
	return rel, nil
}

// OpenRead opens the blob at rel for reading. The caller closes the reader.
func (s *Store) OpenRead(ctx context.Context, rel string) (io.ReadCloser, error) {
	full, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return nil, common.NewAppError(common.CodeStorage, "open blob", err)
	}
	return f, nil
}

// Exists reports whether a regular file is stored at rel.
func (s *Store) Exists(ctx context.Context, rel string) (bool, error) {
	full, err := s.resolve(rel)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fi, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, common.NewAppError(common.CodeStorage, "stat blob", err)
	}
	return fi.Mode().IsRegular(), nil
}

// Delete removes the blob at rel. A missing blob is not an error.
func (s *Store) Delete(ctx context.Context, rel string) error {
	full, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return common.NewAppError(common.CodeStorage, "delete blob", err)
	}
	s.logger.Debug("blob deleted", "path", rel)
	return nil
}

// resolve validates rel and maps it under the root without touching the filesystem.
func (s *Store) resolve(rel string) (string, error) {
	if err := ValidatePath(rel); err != nil {
		return "", err
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	within, err := filepath.Rel(s.root, full)
	if err != nil || within == "." || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return full, nil
}

// ValidatePath rejects empty, absolute, backslash and parent-segment paths.
func ValidatePath(rel string) error {
	switch {
	case strings.TrimSpace(rel) == "":
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	case strings.ContainsRune(rel, '\\'):
		return fmt.Errorf("%w: %q contains a backslash", ErrInvalidPath, rel)
	case strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "":
		return fmt.Errorf("%w: %q is absolute", ErrInvalidPath, rel)
	case strings.ContainsRune(rel, 0):
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidPath, rel)
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q escapes the root", ErrInvalidPath, rel)
		}
	}
	return nil
}

// blobExt keeps short alphanumeric extensions from the suggested name, else ".pdf".
func blobExt(name string) string {
	ext := constants.NormalizeExt(path.Ext(strings.ReplaceAll(name, "\\", "/")))
	if ext == "" || len(ext) > 8 {
		return constants.PDFExt
	}
	for _, c := range ext {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return constants.PDFExt
		}
	}
	return "." + ext
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
