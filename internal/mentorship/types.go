// Package mentorship owns the mentorship-request state machine:
// PENDING -> ACCEPTED | REJECTED, decided once by the addressed alumni.
package mentorship

import (
	"context"
	"errors"
	"time"

	"github.com/alumnet/alumnet/internal/event"
)

// Status of a mentorship request.
type Status string

// Request statuses. ACCEPTED and REJECTED are terminal.
const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Errors returned by mentorship operations.
var (
	ErrInvalidInput         = errors.New("invalid mentorship input")
	ErrRequestNotFound      = errors.New("mentorship request not found")
	ErrPendingRequestExists = errors.New("a pending request to this alumni already exists")
	ErrInvalidTransition    = errors.New("invalid mentorship transition")
	ErrDuplicateDecision    = errors.New("mentorship request already decided")
)

// Request is the authoritative record of a mentorship request.
type Request struct {
	ID              string    `json:"id"`
	StudentID       string    `json:"studentId"`
	AlumniID        string    `json:"alumniId"`
	Message         string    `json:"message"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	RespondedAt     time.Time `json:"respondedAt,omitzero"`
	ResponseMessage string    `json:"responseMessage,omitempty"`
}

// CreateInput is a student's request for mentorship.
type CreateInput struct {
	StudentID   string
	StudentName string
	AlumniID    string
	Message     string
}

// DecideInput is the addressed alumni's answer.
type DecideInput struct {
	RequestID       string
	AlumniID        string
	Accepted        bool
	ResponseMessage string
}

// Decision is the terminal state a PENDING request is moved to.
type Decision struct {
	Status          Status
	RespondedAt     time.Time
	ResponseMessage string
}

// Store persists requests. Implementations must make Create's pending-pair
// check and Decide's status re-check atomic.
type Store interface {
	// Create inserts a PENDING request or fails with ErrPendingRequestExists.
	Create(ctx context.Context, req Request) (Request, error)
	Get(ctx context.Context, id string) (Request, error)
	// Decide applies d only if the stored status is still PENDING, otherwise
	// it fails with ErrDuplicateDecision and changes nothing.
	Decide(ctx context.Context, id string, d Decision) (Request, error)
	ListByAlumni(ctx context.Context, alumniID string, status Status) ([]Request, error)
	ListByStudent(ctx context.Context, studentID string) ([]Request, error)
}

// Notifier receives committed transitions. *event.Dispatcher implements it.
type Notifier interface {
	Emit(ev event.Event) (event.Report, error)
}
