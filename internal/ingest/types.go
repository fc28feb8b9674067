// Package ingest sequences per-document writes across the retrieval
// backends with partial-failure semantics: every enabled leg is always
// attempted, every leg's outcome is recorded, and one leg's failure never
// aborts the document.
package ingest

import (
	"time"

	"github.com/parallax-rag/parallax/internal/backend"
	"github.com/parallax-rag/parallax/internal/errors"
)

// Mode selects how the cloud-search leg is handled.
type Mode string

const (
	// ModeExisting reuses a pre-provisioned connector. Fastest; assumes
	// the remote side is configured.
	ModeExisting Mode = "existing"
	// ModeNew provisions a fresh connector before upload.
	ModeNew Mode = "new"
	// ModeSkip omits the cloud-search leg entirely.
	ModeSkip Mode = "skip"
)

// ParseMode validates a mode string at the boundary.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeExisting, ModeNew, ModeSkip:
		return Mode(s), nil
	default:
		return "", errors.ClientError("invalid ingestion mode "+s+" (want existing|new|skip)", nil)
	}
}

// Input is one document with its externally produced chunks.
type Input struct {
	Document *backend.Document
	Chunks   []*backend.Chunk
}

// Options configures one ingestion call.
type Options struct {
	// Mode selects the cloud-search leg behavior.
	Mode Mode

	// ClearBeforeIngest wipes the tenant's vector and graph state first.
	// The cloud-search index is never cleared from here.
	ClearBeforeIngest bool
}

// Outcome is the append-only audit record for one (document, backend)
// pair. Never mutated after the ingestion call returns.
type Outcome struct {
	// Backend is the leg this outcome describes.
	Backend string `json:"backend"`

	// OK is the success flag.
	OK bool `json:"ok"`

	// ExternalID is the backend-assigned id, empty on failure.
	ExternalID string `json:"external_id,omitempty"`

	// AlreadyPresent reports an idempotent re-ingest.
	AlreadyPresent bool `json:"already_present,omitempty"`

	// Attempts is how many times the leg was tried.
	Attempts int `json:"attempts"`

	// Class is the error classification, empty on success.
	Class errors.Class `json:"class,omitempty"`

	// Error is the error message, empty on success.
	Error string `json:"error,omitempty"`

	// Latency is the leg's wall-clock duration including retries.
	Latency time.Duration `json:"latency"`
}

// Status is the document-level result.
type Status string

const (
	// StatusSuccess means every enabled leg succeeded.
	StatusSuccess Status = "success"
	// StatusPartial means at least one leg succeeded and at least one
	// failed. Callers decide whether to re-run the failed legs, which is
	// safe under the adapters' idempotency contract.
	StatusPartial Status = "partial"
	// StatusFailed means every enabled leg failed.
	StatusFailed Status = "failed"
)

// DocumentResult aggregates the per-leg outcomes for one document.
type DocumentResult struct {
	DocumentID string    `json:"document_id"`
	Status     Status    `json:"status"`
	Outcomes   []Outcome `json:"outcomes"`
}

// status derives the document status from its outcomes.
func status(outcomes []Outcome) Status {
	ok, failed := 0, 0
	for _, o := range outcomes {
		if o.OK {
			ok++
		} else {
			failed++
		}
	}
	switch {
	case failed == 0 && ok > 0:
		return StatusSuccess
	case ok == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}
