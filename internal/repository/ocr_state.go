package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docrepo/constants"
	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/entity"
)

// OCRStateRepository owns the OCR columns of documents and the document_texts table.
// Pending -> outcome transitions are guarded in SQL and report common.ErrConflict on a miss.
type OCRStateRepository interface {
	// ResetToPending clears failure reason, last-tried and text for a non-deleted document.
	ResetToPending(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID, text string, triedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, triedAt time.Time) error
	// ListIDsByStatus returns non-deleted ids oldest first; limit <= 0 means no limit.
	ListIDsByStatus(ctx context.Context, status constants.OCRStatus, limit int) ([]uuid.UUID, error)
	GetText(ctx context.Context, id uuid.UUID) (*entity.DocumentText, error)
}

type ocrStateRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewOCRStateRepository(db *DB, logger *slog.Logger) OCRStateRepository {
	return &ocrStateRepo{
		db:     db,
		logger: logger,
	}
}

func (r *ocrStateRepo) ResetToPending(ctx context.Context, id uuid.UUID) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		b := r.db.builder()
		upd := b.Update(tableDocuments).
			Set("ocr_status", string(constants.OCRStatusPending)).
			SetNull("ocr_failure_reason").
			SetNull("ocr_last_tried_at").
			Where(entsql.And(
				entsql.EQ("id", id.String()),
				entsql.EQ("is_deleted", false),
			))
		n, err := exec(ctx, tx, upd)
		if err != nil {
			r.logger.Error("failed to reset ocr state", "document_id", id, "error", err)
			return fmt.Errorf("%w: reset ocr state: %v", common.ErrDatabase, err)
		}
		if n == 0 {
			return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
		}
		return r.blankText(ctx, tx, id)
	})
}

func (r *ocrStateRepo) MarkSucceeded(ctx context.Context, id uuid.UUID, text string, triedAt time.Time) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		b := r.db.builder()
		upd := b.Update(tableDocuments).
			Set("ocr_status", string(constants.OCRStatusSucceeded)).
			SetNull("ocr_failure_reason").
			Set("ocr_last_tried_at", triedAt.UTC()).
			Where(pendingGuard(id))
		if err := r.transition(ctx, tx, upd, id, constants.OCRStatusSucceeded); err != nil {
			return err
		}
		ins := b.Insert(tableDocumentTexts).
			Columns("document_id", "ocr_text", "updated_at").
			Values(id.String(), text, dbNow()).
			OnConflict(
				entsql.ConflictColumns("document_id"),
				entsql.ResolveWithNewValues(),
			)
		if _, err := exec(ctx, tx, ins); err != nil {
			r.logger.Error("failed to store ocr text", "document_id", id, "error", err)
			return fmt.Errorf("%w: store ocr text: %v", common.ErrDatabase, err)
		}
		return nil
	})
}

func (r *ocrStateRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string, triedAt time.Time) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		b := r.db.builder()
		upd := b.Update(tableDocuments).
			Set("ocr_status", string(constants.OCRStatusFailed)).
			Set("ocr_failure_reason", reason).
			Set("ocr_last_tried_at", triedAt.UTC()).
			Where(pendingGuard(id))
		if err := r.transition(ctx, tx, upd, id, constants.OCRStatusFailed); err != nil {
			return err
		}
		return r.blankText(ctx, tx, id)
	})
}

func pendingGuard(id uuid.UUID) *entsql.Predicate {
	return entsql.And(
		entsql.EQ("id", id.String()),
		entsql.EQ("ocr_status", string(constants.OCRStatusPending)),
		entsql.EQ("is_deleted", false),
	)
}

func (r *ocrStateRepo) transition(ctx context.Context, tx *sql.Tx, upd *entsql.UpdateBuilder, id uuid.UUID, to constants.OCRStatus) error {
	n, err := exec(ctx, tx, upd)
	if err != nil {
		r.logger.Error("failed to update ocr state", "document_id", id, "to", to, "error", err)
		return fmt.Errorf("%w: update ocr state: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		r.logger.Warn("ocr transition lost its guard", "document_id", id, "to", to)
		return common.NewAppError(common.CodeConflict, fmt.Sprintf("document %s is no longer Pending", id), common.ErrConflict)
	}
	return nil
}

func (r *ocrStateRepo) blankText(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	upd := r.db.builder().Update(tableDocumentTexts).
		SetNull("ocr_text").
		Set("updated_at", dbNow()).
		Where(entsql.EQ("document_id", id.String()))
	if _, err := exec(ctx, tx, upd); err != nil {
		r.logger.Error("failed to blank ocr text", "document_id", id, "error", err)
		return fmt.Errorf("%w: blank ocr text: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *ocrStateRepo) ListIDsByStatus(ctx context.Context, status constants.OCRStatus, limit int) ([]uuid.UUID, error) {
	if !status.Valid() {
		return nil, common.NewAppError(common.CodeValidation,
			fmt.Sprintf("ocr status %q is not one of %s", status, strings.Join(constants.OCRStatuses(), ", ")), common.ErrInvalidInput)
	}
	b := r.db.builder()
	sel := b.Select("id").
		From(b.Table(tableDocuments)).
		Where(entsql.And(
			entsql.EQ("ocr_status", string(status)),
			entsql.EQ("is_deleted", false),
		)).
		OrderBy("created_at", "id")
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list documents by ocr status", "status", status, "error", err)
		return nil, fmt.Errorf("%w: list by ocr status: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan id: %v", common.ErrDatabase, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list by ocr status: %v", common.ErrDatabase, err)
	}
	return ids, nil
}

func (r *ocrStateRepo) GetText(ctx context.Context, id uuid.UUID) (*entity.DocumentText, error) {
	b := r.db.builder()
	query, args := b.Select("document_id", "ocr_text", "updated_at").
		From(b.Table(tableDocumentTexts)).
		Where(entsql.EQ("document_id", id.String())).
		Query()

	var (
		dt   entity.DocumentText
		text sql.NullString
	)
	err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&dt.DocumentID, &text, &dt.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError(common.CodeNotFound, fmt.Sprintf("document text %s not found", id), common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get document text: %v", common.ErrDatabase, err)
	}
	if text.Valid {
		dt.OCRText = &text.String
	}
	return &dt, nil
}
