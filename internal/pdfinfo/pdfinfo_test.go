package pdfinfo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/testpdf"
)

func TestInspect(t *testing.T) {
	info, err := InspectBytes(testpdf.Build(3, "quarterly report"))
	require.NoError(t, err)
	require.Equal(t, 3, info.PageCount)
}

func TestInspect_NotPDF(t *testing.T) {
	_, err := InspectBytes([]byte("hello, plain text"))
	require.ErrorIs(t, err, ErrNotPDF)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestInspect_Truncated(t *testing.T) {
	doc := testpdf.Build(1, "x")
	_, err := InspectBytes(doc[:40])
	require.ErrorIs(t, err, ErrUnreadable)
}

func TestHasHeader(t *testing.T) {
	require.True(t, HasHeader([]byte("%PDF-1.4\n")))
	require.True(t, HasHeader([]byte("\xef\xbb\xbf%PDF-1.7")))
	require.False(t, HasHeader(nil))
}
