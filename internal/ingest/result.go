package ingest

import (
	"time"

	"github.com/google/uuid"
)

// Outcome tells a caller what an ingest call did.
type Outcome string

const (
	OutcomeCreated      Outcome = "created"
	OutcomeDeduplicated Outcome = "deduplicated"
	// OutcomeDisabled means ingestion is switched off; nothing was stored or linked.
	OutcomeDisabled Outcome = "disabled"
)

// Result is returned by IngestExternalPDF. DocumentID is uuid.Nil when disabled.
type Result struct {
	DocumentID  uuid.UUID
	Outcome     Outcome
	ContentHash string
	// LinkCreated is false when the (module, item) link already existed.
	LinkCreated bool
}

type options struct {
	subject      string
	tags         string
	documentDate *time.Time
	actor        string
}

// Option sets optional document metadata. Metadata only applies when a new
// document is created; a deduplicated ingest keeps the stored values.
type Option func(*options)

func WithSubject(subject string) Option {
	return func(o *options) { o.subject = subject }
}

func WithTags(tags string) Option {
	return func(o *options) { o.tags = tags }
}

func WithDocumentDate(d time.Time) Option {
	return func(o *options) {
		if d.IsZero() {
			o.documentDate = nil
			return
		}
		u := d.UTC()
		o.documentDate = &u
	}
}

// WithActor overrides the actor taken from the context.
func WithActor(actor string) Option {
	return func(o *options) { o.actor = actor }
}
