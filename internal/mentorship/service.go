package mentorship

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/alumnet/alumnet/internal/event"
	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/metrics"
)

const (
	maxMessageRunes  = 2000
	workflowName     = "mentorship"
	outcomeCommitted = "committed"
	outcomeRejected  = "rejected"
	outcomeConflict  = "conflict"
)

// Service runs the mentorship state machine. Only committed transitions emit events.
type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

// NewService creates a mentorship service.
func NewService(log *slog.Logger, store Store, notifier Notifier, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger.OrDefault(log).With(slog.String("service", workflowName)),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Create opens a PENDING request from a student to an alumni and notifies the alumni.
func (s *Service) Create(ctx context.Context, in CreateInput) (Request, error) {
	studentID := strings.TrimSpace(in.StudentID)
	alumniID := strings.TrimSpace(in.AlumniID)
	message := strings.TrimSpace(in.Message)
	if err := identity.ValidateUserID(studentID); err != nil {
		return Request{}, fmt.Errorf("%w: student: %w", ErrInvalidInput, err)
	}
	if err := identity.ValidateUserID(alumniID); err != nil {
		return Request{}, fmt.Errorf("%w: alumni: %w", ErrInvalidInput, err)
	}
	if studentID == alumniID {
		return Request{}, fmt.Errorf("%w: cannot request mentorship from yourself", ErrInvalidInput)
	}
	if message == "" {
		return Request{}, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(message) > maxMessageRunes {
		return Request{}, fmt.Errorf("%w: message must be at most %d characters", ErrInvalidInput, maxMessageRunes)
	}

	req, err := s.store.Create(ctx, Request{
		ID:        s.newID(),
		StudentID: studentID,
		AlumniID:  alumniID,
		Message:   message,
		Status:    StatusPending,
		CreatedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, ErrPendingRequestExists) {
			s.metrics.IncTransition(workflowName, string(StatusPending), outcomeRejected)
		}
		return Request{}, err
	}
	s.metrics.IncTransition(workflowName, string(StatusPending), outcomeCommitted)
	s.log(ctx).Info("mentorship request created",
		slog.String("request_id", req.ID),
		slog.String("student_id", req.StudentID),
		slog.String("alumni_id", req.AlumniID),
	)

	s.emit(ctx, event.NewMentorshipRequested(req.ID, req.AlumniID, req.StudentID, in.StudentName, req.Message))
	return req, nil
}

// Decide moves a PENDING request to ACCEPTED or REJECTED on behalf of the
// addressed alumni and notifies the student. Guard failures return
// ErrInvalidTransition (or ErrRequestNotFound) without mutation or event; losing
// a concurrent race returns ErrDuplicateDecision.
func (s *Service) Decide(ctx context.Context, in DecideInput) (Request, error) {
	id := strings.TrimSpace(in.RequestID)
	decider := strings.TrimSpace(in.AlumniID)
	next := StatusRejected
	if in.Accepted {
		next = StatusAccepted
	}
	if id == "" {
		return Request{}, fmt.Errorf("%w: request id is required", ErrInvalidInput)
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if current.Status != StatusPending {
		s.metrics.IncTransition(workflowName, string(next), outcomeRejected)
		s.log(ctx).Info("mentorship decision rejected: not pending",
			slog.String("request_id", id), slog.String("status", string(current.Status)))
		return current, fmt.Errorf("%w: request is %s", ErrInvalidTransition, current.Status)
	}
	if decider != current.AlumniID {
		s.metrics.IncTransition(workflowName, string(next), outcomeRejected)
		s.log(ctx).Warn("mentorship decision rejected: not the addressed alumni",
			slog.String("request_id", id), slog.String("decider", decider))
		return current, fmt.Errorf("%w: only the addressed alumni may decide", ErrInvalidTransition)
	}

	updated, err := s.store.Decide(ctx, id, Decision{
		Status:          next,
		RespondedAt:     s.now(),
		ResponseMessage: strings.TrimSpace(in.ResponseMessage),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateDecision) {
			s.metrics.IncTransition(workflowName, string(next), outcomeConflict)
			s.log(ctx).Info("mentorship decision lost race", slog.String("request_id", id))
		}
		return Request{}, err
	}
	s.metrics.IncTransition(workflowName, string(next), outcomeCommitted)
	s.log(ctx).Info("mentorship request decided",
		slog.String("request_id", id), slog.String("status", string(updated.Status)))

	s.emit(ctx, event.NewMentorshipDecided(updated.ID, updated.StudentID, updated.AlumniID,
		updated.Status == StatusAccepted, updated.ResponseMessage))
	return updated, nil
}

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	return s.store.Get(ctx, strings.TrimSpace(id))
}

// ListForAlumni returns requests addressed to alumniID, optionally filtered by status.
func (s *Service) ListForAlumni(ctx context.Context, alumniID string, status Status) ([]Request, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}
	return s.store.ListByAlumni(ctx, strings.TrimSpace(alumniID), status)
}

// ListForStudent returns requests sent by studentID.
func (s *Service) ListForStudent(ctx context.Context, studentID string) ([]Request, error) {
	return s.store.ListByStudent(ctx, strings.TrimSpace(studentID))
}

// emit publishes after a commit. The commit stands even if publishing fails.
func (s *Service) emit(ctx context.Context, ev event.Event) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Emit(ev); err != nil {
		s.log(ctx).Error("notify failed after commit", slog.String("type", string(ev.Type())), slog.Any("error", err))
	}
}

// log returns the request-scoped logger carried by ctx, falling back to the
// service logger.
func (s *Service) log(ctx context.Context) *slog.Logger {
	if l := logger.FromContextOr(ctx, nil); l != nil {
		return l.With(slog.String("service", workflowName))
	}
	return s.logger
}
