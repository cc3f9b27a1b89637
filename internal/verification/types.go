// Package verification owns the alumni-verification state machine:
// PENDING -> APPROVED | REJECTED, decided once by any admin.
package verification

import (
	"context"
	"errors"
	"time"

	"github.com/alumnet/alumnet/internal/event"
)

// Status of a verification record.
type Status string

// Verification statuses. APPROVED and REJECTED are terminal.
const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Errors returned by verification operations.
var (
	ErrInvalidInput      = errors.New("invalid verification input")
	ErrRequestNotFound   = errors.New("verification request not found")
	ErrInvalidTransition = errors.New("invalid verification transition")
	ErrDuplicateDecision = errors.New("verification already decided")
)

// Record is the authoritative verification state of one alumni.
type Record struct {
	AlumniID    string    `json:"alumniId"`
	Name        string    `json:"alumniName"`
	Email       string    `json:"alumniEmail"`
	Status      Status    `json:"status"`
	RequestedAt time.Time `json:"requestedAt"`
	DecidedAt   time.Time `json:"decidedAt,omitzero"`
	DecidedBy   string    `json:"decidedBy,omitempty"`
}

// SubmitInput is an alumni profile submission awaiting review.
type SubmitInput struct {
	AlumniID string
	Name     string
	Email    string
}

// Decision is the terminal state a PENDING record is moved to.
type Decision struct {
	Status    Status
	DecidedAt time.Time
	DecidedBy string
}

// Skip reasons reported by BulkDecide.
const (
	SkipNotFound   = "not_found"
	SkipNotPending = "not_pending"
	SkipInvalidID  = "invalid_id"
	SkipFailed     = "failed"
)

// Skipped names an id BulkDecide left untouched and why.
type Skipped struct {
	AlumniID string `json:"alumniId"`
	Reason   string `json:"reason"`
}

// BulkResult reports a bulk decision. Partial success is normal.
type BulkResult struct {
	Decided []Record  `json:"decided"`
	Skipped []Skipped `json:"skipped"`
}

// Store persists verification records. Submit and Decide must re-check the
// stored status atomically.
type Store interface {
	// Submit inserts a PENDING record or refreshes an existing PENDING one.
	// A terminal record fails with ErrInvalidTransition.
	Submit(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, alumniID string) (Record, error)
	// Decide applies d only if the stored status is still PENDING, otherwise
	// it fails with ErrDuplicateDecision and changes nothing.
	Decide(ctx context.Context, alumniID string, d Decision) (Record, error)
	ListPending(ctx context.Context) ([]Record, error)
}

// Notifier receives committed transitions. *event.Dispatcher implements it.
type Notifier interface {
	Emit(ev event.Event) (event.Report, error)
}
