// Package pdfinfo checks that a payload is a readable PDF and reports its page count.
package pdfinfo

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/docrepo/internal/common"
)

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

var (
	ErrNotPDF     = fmt.Errorf("pdfinfo: missing %%PDF header: %w", common.ErrInvalidInput)
	ErrUnreadable = fmt.Errorf("pdfinfo: unreadable pdf: %w", common.ErrInvalidInput)
)

// Info is what ingestion records about a PDF.
type Info struct {
	PageCount int
}

var disableConfigDir sync.Once

// HasHeader reports whether the %PDF- marker appears near the start of b.
func HasHeader(b []byte) bool {
	if len(b) > headerWindow {
		b = b[:headerWindow]
	}
	return bytes.Contains(b, []byte("%PDF-"))
}

// Inspect validates rs in relaxed mode and counts its pages.
func Inspect(rs io.ReadSeeker) (Info, error) {
	head := make([]byte, headerWindow)
	n, err := io.ReadFull(rs, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Info{}, fmt.Errorf("read pdf header: %w", err)
	}
	if !HasHeader(head[:n]) {
		return Info{}, ErrNotPDF
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return Info{}, fmt.Errorf("rewind pdf: %w", err)
	}

	// pdfcpu otherwise writes its config into the user's config dir.
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pages, err := api.PageCount(rs, conf)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return Info{PageCount: pages}, nil
}

// InspectBytes is Inspect over an in-memory payload.
func InspectBytes(b []byte) (Info, error) {
	return Inspect(bytes.NewReader(b))
}
