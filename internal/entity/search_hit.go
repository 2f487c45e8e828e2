package entity

import (
	"time"

	"github.com/google/uuid"
)

// Field names reported by SearchHit.MatchedFields.
const (
	FieldSubject = "subject"
	FieldTags    = "tags"
	FieldBody    = "body"
)

// SearchHit is one ranked search result.
type SearchHit struct {
	DocumentID       uuid.UUID  `json:"document_id"`
	Subject          string     `json:"subject"`
	DocumentDate     *time.Time `json:"document_date,omitempty"`
	MatchedInSubject bool       `json:"matched_in_subject"`
	MatchedInTags    bool       `json:"matched_in_tags"`
	MatchedInBody    bool       `json:"matched_in_body"`
	Snippet          string     `json:"snippet"`
	Rank             float64    `json:"rank"`
}

// MatchedFields lists the matched fields in subject, tags, body order.
func (h SearchHit) MatchedFields() []string {
	fields := make([]string, 0, 3)
	if h.MatchedInSubject {
		fields = append(fields, FieldSubject)
	}
	if h.MatchedInTags {
		fields = append(fields, FieldTags)
	}
	if h.MatchedInBody {
		fields = append(fields, FieldBody)
	}
	return fields
}
