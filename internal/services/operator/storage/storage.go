// Package storage defines the optional audit log of reaction attempts.
//
// The log is write-mostly: reactions never read it to decide anything, all
// workflow state stays on the ledger.
package storage

import (
	"context"
	"time"
)

// Attempt outcomes recorded in the audit log.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeSkipped   = "skipped"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// AttemptRecord is one reaction or bootstrap attempt.
type AttemptRecord struct {
	ID int64
	// EventID is the triggering contract id, or the bootstrap name for
	// ready-time attempts.
	EventID    string
	TemplateID string
	Reaction   string
	Outcome    string
	LastError  string
	CreatedAt  time.Time
}

// AttemptStore persists reaction attempt records.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, attempt AttemptRecord) error
	ListAttempts(ctx context.Context, limit int) ([]AttemptRecord, error)
}
