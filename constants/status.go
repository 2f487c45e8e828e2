package constants

import "fmt"

// OCRStatus is the canonical OCR state for rows in documents.
type OCRStatus string

// Stable values (store these exact strings in DB).
const (
	OCRStatusPending   OCRStatus = "Pending"   // initial, and re-entered on retry
	OCRStatusSucceeded OCRStatus = "Succeeded" // text extracted
	OCRStatusFailed    OCRStatus = "Failed"    // terminal until retried
)

var allOCRStatuses = []OCRStatus{OCRStatusPending, OCRStatusSucceeded, OCRStatusFailed}

// OCRStatuses returns every valid status as strings, e.g. for CHECK constraints or validators.
func OCRStatuses() []string {
	out := make([]string, len(allOCRStatuses))
	for i, s := range allOCRStatuses {
		out[i] = string(s)
	}
	return out
}

// Valid reports whether s is one of the three known states.
func (s OCRStatus) Valid() bool {
	switch s {
	case OCRStatusPending, OCRStatusSucceeded, OCRStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is an outcome of a runner invocation.
func (s OCRStatus) Terminal() bool {
	return s == OCRStatusSucceeded || s == OCRStatusFailed
}

// CanTransition reports whether the state machine allows from -> to.
// Pending only moves to an outcome; outcomes only move back to Pending (retry).
// Pending -> Pending is allowed so a crashed run can be restarted.
func CanTransition(from, to OCRStatus) bool {
	switch from {
	case OCRStatusPending:
		return to.Valid()
	case OCRStatusSucceeded, OCRStatusFailed:
		return to == OCRStatusPending
	}
	return false
}

// ParseOCRStatus converts a stored value back into an OCRStatus.
func ParseOCRStatus(s string) (OCRStatus, error) {
	st := OCRStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown ocr status %q", s)
	}
	return st, nil
}
