package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docrepo/constants"
)

// Document represents a stored PDF and its OCR state for data transfer between layers.
type Document struct {
	ID               uuid.UUID           `json:"id"`
	ContentHash      string              `json:"content_hash"`
	StoragePath      string              `json:"-"`
	Subject          string              `json:"subject"`
	Tags             string              `json:"tags"`
	CategoryID       string              `json:"category_id"`
	ClassificationID string              `json:"classification_id"`
	OriginalFileName string              `json:"original_file_name"`
	MimeType         string              `json:"mime_type"`
	ByteSize         int64               `json:"byte_size"`
	PageCount        *int                `json:"page_count,omitempty"`
	DocumentDate     *time.Time          `json:"document_date,omitempty"`
	OCRStatus        constants.OCRStatus `json:"ocr_status"`
	OCRFailureReason *string             `json:"ocr_failure_reason,omitempty"`
	OCRLastTriedAt   *time.Time          `json:"ocr_last_tried_at,omitempty"`
	IsActive         bool                `json:"is_active"`
	IsDeleted        bool                `json:"is_deleted"`
	CreatedAt        time.Time           `json:"created_at"`
	CreatedBy        string              `json:"created_by"`
	UpdatedAt        time.Time           `json:"updated_at"`
	UpdatedBy        string              `json:"updated_by"`
}

// NewDocument carries what ingestion knows when it creates a document.
// OCR state always starts Pending.
type NewDocument struct {
	ContentHash      string
	StoragePath      string
	Subject          string
	Tags             string
	CategoryID       string
	ClassificationID string
	OriginalFileName string
	MimeType         string
	ByteSize         int64
	PageCount        *int
	DocumentDate     *time.Time
	Actor            string
}

// DocumentText holds the OCR output of a document, at most one per document.
type DocumentText struct {
	DocumentID uuid.UUID `json:"document_id"`
	OCRText    *string   `json:"ocr_text,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ExternalLink records that a subsystem item references a document.
type ExternalLink struct {
	ID           uuid.UUID `json:"id"`
	DocumentID   uuid.UUID `json:"document_id"`
	SourceModule string    `json:"source_module"`
	SourceItemID string    `json:"source_item_id"`
	CreatedAt    time.Time `json:"created_at"`
}
