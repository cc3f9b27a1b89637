package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alumnet/alumnet/internal/event"
	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/metrics"
)

const (
	workflowName     = "verification"
	outcomeCommitted = "committed"
	outcomeRejected  = "rejected"
	outcomeConflict  = "conflict"
)

// Service runs the verification state machine. Only committed transitions emit events.
type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService creates a verification service.
func NewService(log *slog.Logger, store Store, notifier Notifier, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger.OrDefault(log).With(slog.String("service", workflowName)),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit records a PENDING verification for an alumni profile and notifies
// every connected admin. Resubmitting while PENDING refreshes the profile
// details and notifies again.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Record, error) {
	alumniID := strings.TrimSpace(in.AlumniID)
	if err := identity.ValidateUserID(alumniID); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	rec, err := s.store.Submit(ctx, Record{
		AlumniID:    alumniID,
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.TrimSpace(in.Email),
		Status:      StatusPending,
		RequestedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			s.metrics.IncTransition(workflowName, string(StatusPending), outcomeRejected)
			s.log(ctx).Info("verification submit rejected: already decided", slog.String("alumni_id", alumniID))
		}
		return Record{}, err
	}
	s.metrics.IncTransition(workflowName, string(StatusPending), outcomeCommitted)
	s.log(ctx).Info("verification submitted", slog.String("alumni_id", alumniID))

	s.emit(ctx, event.NewAlumniVerificationSubmitted(rec.AlumniID, rec.Name, rec.Email))
	return rec, nil
}

// Decide moves a PENDING record to APPROVED or REJECTED and notifies the
// alumni. Any admin may decide; a non-PENDING record fails with
// ErrInvalidTransition and nothing is emitted.
func (s *Service) Decide(ctx context.Context, alumniID string, approved bool, adminID string) (Record, error) {
	alumniID = strings.TrimSpace(alumniID)
	adminID = strings.TrimSpace(adminID)
	if err := identity.ValidateUserID(adminID); err != nil {
		return Record{}, fmt.Errorf("%w: admin: %w", ErrInvalidInput, err)
	}
	return s.decide(ctx, alumniID, approved, adminID)
}

// BulkDecide applies Decide to each distinct id independently. Ids that are
// unknown, malformed or already decided are reported in Skipped and do not
// affect the others.
func (s *Service) BulkDecide(ctx context.Context, alumniIDs []string, approved bool, adminID string) (BulkResult, error) {
	adminID = strings.TrimSpace(adminID)
	if err := identity.ValidateUserID(adminID); err != nil {
		return BulkResult{}, fmt.Errorf("%w: admin: %w", ErrInvalidInput, err)
	}
	if len(alumniIDs) == 0 {
		return BulkResult{}, fmt.Errorf("%w: no alumni ids", ErrInvalidInput)
	}

	result := BulkResult{Decided: []Record{}, Skipped: []Skipped{}}
	seen := make(map[string]struct{}, len(alumniIDs))
	for _, raw := range alumniIDs {
		id := strings.TrimSpace(raw)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if err := identity.ValidateUserID(id); err != nil {
			result.Skipped = append(result.Skipped, Skipped{AlumniID: id, Reason: SkipInvalidID})
			continue
		}
		rec, err := s.decide(ctx, id, approved, adminID)
		if err != nil {
			result.Skipped = append(result.Skipped, Skipped{AlumniID: id, Reason: skipReason(err)})
			if skipReason(err) == SkipFailed {
				s.log(ctx).Error("bulk decision failed for id", slog.String("alumni_id", id), slog.Any("error", err))
			}
			continue
		}
		result.Decided = append(result.Decided, rec)
	}
	s.log(ctx).Info("bulk verification decided",
		slog.String("admin_id", adminID),
		slog.Bool("approved", approved),
		slog.Int("decided", len(result.Decided)),
		slog.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrRequestNotFound):
		return SkipNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrDuplicateDecision):
		return SkipNotPending
	default:
		return SkipFailed
	}
}

func (s *Service) decide(ctx context.Context, alumniID string, approved bool, adminID string) (Record, error) {
	next := StatusRejected
	if approved {
		next = StatusApproved
	}
	current, err := s.store.Get(ctx, alumniID)
	if err != nil {
		return Record{}, err
	}
	if current.Status != StatusPending {
		s.metrics.IncTransition(workflowName, string(next), outcomeRejected)
		s.log(ctx).Info("verification decision rejected: not pending",
			slog.String("alumni_id", alumniID), slog.String("status", string(current.Status)))
		return current, fmt.Errorf("%w: record is %s", ErrInvalidTransition, current.Status)
	}

	updated, err := s.store.Decide(ctx, alumniID, Decision{
		Status:    next,
		DecidedAt: s.now(),
		DecidedBy: adminID,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateDecision) {
			s.metrics.IncTransition(workflowName, string(next), outcomeConflict)
			s.log(ctx).Info("verification decision lost race", slog.String("alumni_id", alumniID))
		}
		return Record{}, err
	}
	s.metrics.IncTransition(workflowName, string(next), outcomeCommitted)
	s.log(ctx).Info("verification decided",
		slog.String("alumni_id", alumniID),
		slog.String("status", string(updated.Status)),
		slog.String("admin_id", adminID),
	)

	s.emit(ctx, event.NewVerificationDecided(updated.AlumniID, updated.Status == StatusApproved))
	return updated, nil
}

// Get returns the verification record of alumniID.
func (s *Service) Get(ctx context.Context, alumniID string) (Record, error) {
	return s.store.Get(ctx, strings.TrimSpace(alumniID))
}

// ListPending returns records awaiting a decision, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]Record, error) {
	return s.store.ListPending(ctx)
}

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
