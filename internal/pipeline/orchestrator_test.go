package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docrepo/constants"
	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/entity"
	"github.com/joseph-ayodele/docrepo/internal/pipeline"
	"github.com/joseph-ayodele/docrepo/internal/repository"
	testhelpers "github.com/joseph-ayodele/docrepo/internal/testhelpers"
)

// fakeExtractor returns scripted results per document and can inspect state mid-run.
type fakeExtractor struct {
	mu     sync.Mutex
	texts  map[uuid.UUID]string
	errs   map[uuid.UUID]error
	during func(doc *entity.Document)
	calls  int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{texts: map[uuid.UUID]string{}, errs: map[uuid.UUID]error{}}
}

func (f *fakeExtractor) Extract(ctx context.Context, doc *entity.Document) (string, error) {
	f.mu.Lock()
	f.calls++
	text, err, during := f.texts[doc.ID], f.errs[doc.ID], f.during
	f.mu.Unlock()
	if during != nil {
		during(doc)
	}
	if err != nil {
		return "", err
	}
	return text, ctx.Err()
}

// flakyState fails ResetToPending for one document.
type flakyState struct {
	repository.OCRStateRepository
	failID uuid.UUID
}

func (f flakyState) ResetToPending(ctx context.Context, id uuid.UUID) error {
	if id == f.failID {
		return errors.New("connection reset")
	}
	return f.OCRStateRepository.ResetToPending(ctx, id)
}

// storedText returns the document's OCR text, or nil when none is stored.
func storedText(t *testing.T, c *testhelpers.TestContainer, id uuid.UUID) *string {
	t.Helper()
	dt, err := c.RepoOCR.GetText(c.Ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	require.NoError(t, err)
	return dt.OCRText
}

func newOrchestrator(c *testhelpers.TestContainer, ex *fakeExtractor, cfg pipeline.Config) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(c.RepoDocuments, c.RepoOCR, ex, cfg, c.Logger, nil)
}

func TestOrchestrator_Process(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	doc := container.CreateDocument(t, "d1", "moduleA", "item-1")
	ex := newFakeExtractor()
	ex.texts[doc.ID] = "INVOICE 2024"
	orch := newOrchestrator(container, ex, pipeline.Config{})

	// when
	ok, err := orch.Process(container.Ctx, doc.ID)

	// then
	require.NoError(t, err)
	require.True(t, ok)
	got, err := container.RepoDocuments.GetByID(container.Ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, constants.OCRStatusSucceeded, got.OCRStatus)
	require.Nil(t, got.OCRFailureReason)
	require.NotNil(t, got.OCRLastTriedAt)
	text, err := container.RepoOCR.GetText(container.Ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, "INVOICE 2024", *text.OCRText)
}

func TestOrchestrator_RetryClearsStaleState(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	doc := container.CreateDocument(t, "d1", "moduleA", "item-1")
	ex := newFakeExtractor()
	ex.errs[doc.ID] = errors.New(strings.Repeat("x", 50))
	orch := newOrchestrator(container, ex, pipeline.Config{MaxReasonRunes: 10})

	ok, err := orch.Process(container.Ctx, doc.ID)
	require.NoError(t, err)
	require.False(t, ok)

	failed, err := container.RepoDocuments.GetByID(container.Ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, constants.OCRStatusFailed, failed.OCRStatus)
	require.Equal(t, strings.Repeat("x", 10), *failed.OCRFailureReason)

	// when
	var seen *entity.Document
	ex.mu.Lock()
	delete(ex.errs, doc.ID)
	ex.texts[doc.ID] = "recovered"
	ex.during = func(*entity.Document) {
		seen, _ = container.RepoDocuments.GetByID(context.Background(), doc.ID)
	}
	ex.mu.Unlock()
	ok, err = orch.Process(container.Ctx, doc.ID)

	// then
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, seen)
	require.Equal(t, constants.OCRStatusPending, seen.OCRStatus, "reset is committed before the run")
	require.Nil(t, seen.OCRFailureReason)
	require.Nil(t, seen.OCRLastTriedAt)

	done, err := container.RepoDocuments.GetByID(container.Ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, constants.OCRStatusSucceeded, done.OCRStatus)
	require.Nil(t, done.OCRFailureReason)
	require.False(t, done.OCRLastTriedAt.Before(*failed.OCRLastTriedAt))
}

func TestOrchestrator_CapsText(t *testing.T) {
	container := testhelpers.GetClean(t)
	doc := container.CreateDocument(t, "d1", "moduleA", "item-1")
	ex := newFakeExtractor()
	ex.texts[doc.ID] = "ünïcödé text that is long"
	orch := newOrchestrator(container, ex, pipeline.Config{MaxTextRunes: 7})

	ok, err := orch.Process(container.Ctx, doc.ID)
	require.NoError(t, err)
	require.True(t, ok)
	text, err := container.RepoOCR.GetText(container.Ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, "ünïcödé", *text.OCRText)
}

func TestOrchestrator_CancellationLeavesPending(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	doc := container.CreateDocument(t, "d1", "moduleA", "item-1")
	ctx, cancel := context.WithCancel(container.Ctx)
	defer cancel()
	ex := newFakeExtractor()
	ex.texts[doc.ID] = "never stored"
	ex.during = func(*entity.Document) { cancel() }
	orch := newOrchestrator(container, ex, pipeline.Config{})

	// when
	ok, err := orch.Process(ctx, doc.ID)

	// then
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, ok)
	got, err := container.RepoDocuments.GetByID(container.Ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, constants.OCRStatusPending, got.OCRStatus)
	_, err = container.RepoOCR.GetText(container.Ctx, doc.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestOrchestrator_ProcessMissingOrDeleted(t *testing.T) {
	container := testhelpers.GetClean(t)
	ex := newFakeExtractor()
	orch := newOrchestrator(container, ex, pipeline.Config{})

	_, err := orch.Process(container.Ctx, uuid.New())
	require.ErrorIs(t, err, common.ErrNotFound)

	doc := container.CreateDocument(t, "d1", "moduleA", "item-1")
	require.NoError(t, container.RepoDocuments.SoftDelete(container.Ctx, doc.ID, "test"))
	_, err = orch.Process(container.Ctx, doc.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
	require.Zero(t, ex.calls)
}

func TestOrchestrator_RetryFailedIsolatesFaults(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	ex := newFakeExtractor()
	var docs []*entity.Document
	for i, content := range []string{"a", "b", "c", "d"} {
		d := container.CreateDocument(t, content, "m", string(rune('1'+i)))
		ex.errs[d.ID] = errors.New("engine crashed")
		docs = append(docs, d)
	}
	untouched := container.CreateDocument(t, "succeeded", "m", "9")
	ex.texts[untouched.ID] = "fine"

	seed := newOrchestrator(container, ex, pipeline.Config{})
	for _, d := range docs {
		ok, err := seed.Process(container.Ctx, d.ID)
		require.NoError(t, err)
		require.False(t, ok)
	}
	ok, err := seed.Process(container.Ctx, untouched.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ex.mu.Lock()
	ex.calls = 0
	delete(ex.errs, docs[0].ID)
	ex.texts[docs[0].ID] = "now readable"
	ex.mu.Unlock()

	state := flakyState{OCRStateRepository: container.RepoOCR, failID: docs[1].ID}
	orch := pipeline.NewOrchestrator(container.RepoDocuments, state, ex, pipeline.Config{BatchConcurrency: 3}, container.Logger, nil)

	// when
	n, err := orch.RetryFailed(container.Ctx)

	// then
	require.NoError(t, err)
	require.Equal(t, 3, n, "docs[1] errored before reaching an outcome")
	require.Equal(t, 3, ex.calls)

	statuses := map[uuid.UUID]constants.OCRStatus{}
	for _, d := range append(docs, untouched) {
		got, err := container.RepoDocuments.GetByID(container.Ctx, d.ID)
		require.NoError(t, err)
		statuses[d.ID] = got.OCRStatus
	}
	require.Equal(t, constants.OCRStatusSucceeded, statuses[docs[0].ID])
	require.Equal(t, constants.OCRStatusFailed, statuses[docs[1].ID])
	require.Equal(t, constants.OCRStatusFailed, statuses[docs[2].ID])
	require.Equal(t, constants.OCRStatusFailed, statuses[docs[3].ID])
	require.Equal(t, constants.OCRStatusSucceeded, statuses[untouched.ID])
}

func TestOrchestrator_ProcessPending(t *testing.T) {
	container := testhelpers.GetClean(t)
	ex := newFakeExtractor()
	for i, content := range []string{"a", "b", "c"} {
		d := container.CreateDocument(t, content, "m", string(rune('1'+i)))
		ex.texts[d.ID] = "text " + content
	}
	orch := newOrchestrator(container, ex, pipeline.Config{BatchConcurrency: 2})

	n, err := orch.ProcessPending(container.Ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = orch.ProcessPending(container.Ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	pending, err := container.RepoOCR.ListIDsByStatus(container.Ctx, constants.OCRStatusPending, 0)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestOrchestrator_StatesStayClosed(t *testing.T) {
	container := testhelpers.GetClean(t)
	doc := container.CreateDocument(t, "d1", "m", "1")
	ex := newFakeExtractor()
	orch := newOrchestrator(container, ex, pipeline.Config{})

	for i := 0; i < 4; i++ {
		ex.mu.Lock()
		if i%2 == 0 {
			ex.errs[doc.ID] = errors.New("flaky")
		} else {
			delete(ex.errs, doc.ID)
		}
		ex.mu.Unlock()

		_, err := orch.Process(container.Ctx, doc.ID)
		require.NoError(t, err)
		got, err := container.RepoDocuments.GetByID(container.Ctx, doc.ID)
		require.NoError(t, err)
		require.True(t, got.OCRStatus.Valid())
		require.True(t, got.OCRStatus.Terminal())
		require.Equal(t, got.OCRStatus == constants.OCRStatusFailed, got.OCRFailureReason != nil)
		require.Equal(t, got.OCRStatus == constants.OCRStatusSucceeded, storedText(t, container, doc.ID) != nil)
	}
}

func TestOrchestrator_FailedRetryBlanksPreviousText(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	doc := container.CreateDocument(t, "d1", "moduleA", "item-1")
	ex := newFakeExtractor()
	ex.texts[doc.ID] = "OLD TEXT"
	orch := newOrchestrator(container, ex, pipeline.Config{})
	ok, err := orch.Process(container.Ctx, doc.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "OLD TEXT", *storedText(t, container, doc.ID))

	// when
	ex.mu.Lock()
	ex.errs[doc.ID] = errors.New("engine crashed")
	ex.mu.Unlock()
	ok, err = orch.Process(container.Ctx, doc.ID)

	// then
	require.NoError(t, err)
	require.False(t, ok)
	got, err := container.RepoDocuments.GetByID(container.Ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, constants.OCRStatusFailed, got.OCRStatus)
	require.Equal(t, "engine crashed", *got.OCRFailureReason)
	require.Nil(t, storedText(t, container, doc.ID))
}

func TestOrchestrator_FailureReasonIsStorable(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	doc := container.CreateDocument(t, "d1", "moduleA", "item-1")
	ex := newFakeExtractor()
	ex.errs[doc.ID] = errors.New("ocr process failed: ..." + strings.Repeat("é", 20)[1:] + " bad\x00byte\xff")
	orch := newOrchestrator(container, ex, pipeline.Config{MaxReasonRunes: 500})

	// when
	ok, err := orch.Process(container.Ctx, doc.ID)

	// then
	require.NoError(t, err)
	require.False(t, ok)
	got, err := container.RepoDocuments.GetByID(container.Ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, constants.OCRStatusFailed, got.OCRStatus)
	require.True(t, utf8.ValidString(*got.OCRFailureReason))
	require.NotContains(t, *got.OCRFailureReason, "\x00")
	require.Contains(t, *got.OCRFailureReason, "badbyte")
}
