package testhelpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docrepo/constants"
	"github.com/joseph-ayodele/docrepo/internal/contenthash"
	"github.com/joseph-ayodele/docrepo/internal/entity"
)

// DocumentOption tweaks a fixture before it is inserted.
type DocumentOption func(*entity.NewDocument)

func WithSubject(s string) DocumentOption {
	return func(d *entity.NewDocument) { d.Subject = s }
}

func WithTags(s string) DocumentOption {
	return func(d *entity.NewDocument) { d.Tags = s }
}

func WithDocumentDate(t time.Time) DocumentOption {
	return func(d *entity.NewDocument) { d.DocumentDate = &t }
}

// CreateDocument inserts a Pending document for content, linked to (module, item).
func (c *TestContainer) CreateDocument(t *testing.T, content, module, item string, opts ...DocumentOption) *entity.Document {
	t.Helper()
	in := entity.NewDocument{
		ContentHash:      contenthash.SumBytes([]byte(content)),
		StoragePath:      "2024/01/" + contenthash.SumBytes([]byte(content))[:16] + ".pdf",
		CategoryID:       "cat-1",
		ClassificationID: "cls-1",
		OriginalFileName: "fixture.pdf",
		MimeType:         constants.PDFMimeType,
		ByteSize:         int64(len(content)),
		Actor:            "test",
	}
	for _, opt := range opts {
		opt(&in)
	}
	doc, err := c.RepoDocuments.CreateWithLink(c.Ctx, in, module, item)
	require.NoError(t, err)
	return doc
}
