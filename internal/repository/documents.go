package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docrepo/constants"
	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/contenthash"
	"github.com/joseph-ayodele/docrepo/internal/entity"
)

const (
	tableDocuments     = "documents"
	tableDocumentTexts = "document_texts"
	tableExternalLinks = "external_links"
)

var documentColumns = []string{
	"id", "content_hash", "storage_path", "subject", "tags", "category_id", "classification_id",
	"original_file_name", "mime_type", "byte_size", "page_count", "document_date",
	"ocr_status", "ocr_failure_reason", "ocr_last_tried_at",
	"is_active", "is_deleted", "created_at", "created_by", "updated_at", "updated_by",
}

var linkColumns = []string{"id", "document_id", "source_module", "source_item_id", "created_at"}

// DocumentRepository owns document content/metadata columns and external links.
// It never touches OCR state.
type DocumentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	FindActiveByHash(ctx context.Context, contentHash string) (*entity.Document, error)
	// CreateWithLink inserts a Pending document and its first link in one transaction.
	// A concurrent insert of the same content yields an error matching common.ErrConflict.
	CreateWithLink(ctx context.Context, doc entity.NewDocument, sourceModule, sourceItemID string) (*entity.Document, error)
	// EnsureLink is insert-or-ignore; it reports whether a new row was written.
	EnsureLink(ctx context.Context, documentID uuid.UUID, sourceModule, sourceItemID string) (bool, error)
	ListLinks(ctx context.Context, documentID uuid.UUID) ([]entity.ExternalLink, error)
	SoftDelete(ctx context.Context, id uuid.UUID, actor string) error
}

type documentRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	return &documentRepo{
		db:     db,
		logger: logger,
	}
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	b := r.db.builder()
	q := b.Select(documentColumns...).
		From(b.Table(tableDocuments)).
		Where(entsql.EQ("id", id.String()))
	return r.queryOne(ctx, q)
}

func (r *documentRepo) FindActiveByHash(ctx context.Context, contentHash string) (*entity.Document, error) {
	if !contenthash.Valid(contentHash) {
		return nil, common.NewAppError(common.CodeValidation, fmt.Sprintf("content hash %q is not a sha-256 hex digest", contentHash), common.ErrInvalidInput)
	}
	b := r.db.builder()
	q := b.Select(documentColumns...).
		From(b.Table(tableDocuments)).
		Where(entsql.And(
			entsql.EQ("content_hash", contentHash),
			entsql.EQ("is_deleted", false),
		))
	return r.queryOne(ctx, q)
}

func (r *documentRepo) queryOne(ctx context.Context, q querier) (*entity.Document, error) {
	query, args := q.Query()
	doc, err := scanDocument(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError(common.CodeNotFound, "document not found", common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to query document", "error", err)
		return nil, fmt.Errorf("%w: query document: %v", common.ErrDatabase, err)
	}
	return doc, nil
}

func (r *documentRepo) CreateWithLink(ctx context.Context, in entity.NewDocument, sourceModule, sourceItemID string) (*entity.Document, error) {
	now := dbNow()
	actor := in.Actor
	if actor == "" {
		actor = common.ActorIDFromContext(ctx)
	}
	doc := &entity.Document{
		ID:               uuid.New(),
		ContentHash:      in.ContentHash,
		StoragePath:      in.StoragePath,
		Subject:          in.Subject,
		Tags:             in.Tags,
		CategoryID:       in.CategoryID,
		ClassificationID: in.ClassificationID,
		OriginalFileName: in.OriginalFileName,
		MimeType:         in.MimeType,
		ByteSize:         in.ByteSize,
		PageCount:        in.PageCount,
		DocumentDate:     utcPtr(in.DocumentDate),
		OCRStatus:        constants.OCRStatusPending,
		IsActive:         true,
		CreatedAt:        now,
		CreatedBy:        actor,
		UpdatedAt:        now,
		UpdatedBy:        actor,
	}

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		b := r.db.builder()
		ins := b.Insert(tableDocuments).
			Columns(documentColumns...).
			Values(
				doc.ID.String(), doc.ContentHash, doc.StoragePath, doc.Subject, doc.Tags, doc.CategoryID, doc.ClassificationID,
				doc.OriginalFileName, doc.MimeType, doc.ByteSize, nullInt(doc.PageCount), nullTime(doc.DocumentDate),
				string(doc.OCRStatus), nil, nil,
				doc.IsActive, doc.IsDeleted, doc.CreatedAt, doc.CreatedBy, doc.UpdatedAt, doc.UpdatedBy,
			)
		if _, err := exec(ctx, tx, ins); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		link := b.Insert(tableExternalLinks).
			Columns(linkColumns...).
			Values(uuid.NewString(), doc.ID.String(), sourceModule, sourceItemID, now)
		if _, err := exec(ctx, tx, link); err != nil {
			return fmt.Errorf("insert external link: %w", err)
		}
		return nil
	})
	if err != nil {
		if IsUniqueViolation(err) {
			r.logger.Warn("document content already stored", "content_hash", in.ContentHash, "error", err)
			return nil, fmt.Errorf("create document: %w: %w", common.ErrConflict, err)
		}
		r.logger.Error("failed to create document", "content_hash", in.ContentHash, "source_module", sourceModule, "error", err)
		return nil, fmt.Errorf("%w: create document: %v", common.ErrDatabase, err)
	}
	return doc, nil
}

func (r *documentRepo) EnsureLink(ctx context.Context, documentID uuid.UUID, sourceModule, sourceItemID string) (bool, error) {
	b := r.db.builder()
	ins := b.Insert(tableExternalLinks).
		Columns(linkColumns...).
		Values(uuid.NewString(), documentID.String(), sourceModule, sourceItemID, dbNow()).
		OnConflict(
			entsql.ConflictColumns("document_id", "source_module", "source_item_id"),
			entsql.DoNothing(),
		)
	n, err := exec(ctx, r.db.SQL, ins)
	if err != nil {
		r.logger.Error("failed to ensure external link", "document_id", documentID, "source_module", sourceModule, "source_item_id", sourceItemID, "error", err)
		return false, fmt.Errorf("%w: ensure link: %v", common.ErrDatabase, err)
	}
	return n > 0, nil
}

func (r *documentRepo) ListLinks(ctx context.Context, documentID uuid.UUID) ([]entity.ExternalLink, error) {
	b := r.db.builder()
	query, args := b.Select(linkColumns...).
		From(b.Table(tableExternalLinks)).
		Where(entsql.EQ("document_id", documentID.String())).
		OrderBy("created_at", "source_module", "source_item_id").
		Query()
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list links: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.ExternalLink
	for rows.Next() {
		var l entity.ExternalLink
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.SourceModule, &l.SourceItemID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan link: %v", common.ErrDatabase, err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list links: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *documentRepo) SoftDelete(ctx context.Context, id uuid.UUID, actor string) error {
	if actor == "" {
		actor = common.ActorIDFromContext(ctx)
	}
	b := r.db.builder()
	upd := b.Update(tableDocuments).
		Set("is_deleted", true).
		Set("is_active", false).
		Set("updated_at", dbNow()).
		Set("updated_by", actor).
		Where(entsql.And(
			entsql.EQ("id", id.String()),
			entsql.EQ("is_deleted", false),
		))
	n, err := exec(ctx, r.db.SQL, upd)
	if err != nil {
		r.logger.Error("failed to soft delete document", "document_id", id, "error", err)
		return fmt.Errorf("%w: soft delete: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	r.logger.Info("document soft deleted", "document_id", id, "actor", actor)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (*entity.Document, error) {
	var (
		d         entity.Document
		status    string
		pageCount sql.NullInt64
		docDate   sql.NullTime
		reason    sql.NullString
		lastTried sql.NullTime
	)
	err := s.Scan(
		&d.ID, &d.ContentHash, &d.StoragePath, &d.Subject, &d.Tags, &d.CategoryID, &d.ClassificationID,
		&d.OriginalFileName, &d.MimeType, &d.ByteSize, &pageCount, &docDate,
		&status, &reason, &lastTried,
		&d.IsActive, &d.IsDeleted, &d.CreatedAt, &d.CreatedBy, &d.UpdatedAt, &d.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	if d.OCRStatus, err = constants.ParseOCRStatus(status); err != nil {
		return nil, err
	}
	if pageCount.Valid {
		n := int(pageCount.Int64)
		d.PageCount = &n
	}
	if docDate.Valid {
		t := docDate.Time.UTC()
		d.DocumentDate = &t
	}
	if reason.Valid {
		d.OCRFailureReason = &reason.String
	}
	if lastTried.Valid {
		t := lastTried.Time.UTC()
		d.OCRLastTriedAt = &t
	}
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}

// dbNow is the current time at the precision both backends keep.
func dbNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC().Truncate(time.Microsecond)
	return &u
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return int64(*n)
}
