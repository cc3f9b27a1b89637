package postings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alumnet/alumnet/internal/event"
	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/metrics"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxTitleRunes    = 200

	outcomeCreated        = "created"
	outcomeRejected       = "rejected"
	outcomeAnnounceFailed = "announce_failed"
)

var (
	jobAudience   = []identity.Role{identity.RoleStudent, identity.RoleAlumni}
	eventAudience = []identity.Role{identity.RoleStudent, identity.RoleAlumni, identity.RoleAdmin}
)

// Service stores postings and announces them fire-and-forget.
type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

func NewService(log *slog.Logger, store Store, notifier Notifier, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger.OrDefault(log).With(slog.String("service", "postings")),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// PostJob stores a job posting and announces it to students and alumni.
func (s *Service) PostJob(ctx context.Context, in JobInput) (Posting, error) {
	p := Posting{
		Kind:         KindJob,
		Title:        strings.TrimSpace(in.Title),
		Organization: strings.TrimSpace(in.Company),
		Location:     strings.TrimSpace(in.Location),
		CreatedBy:    strings.TrimSpace(in.PostedBy),
	}
	if p.Organization == "" {
		s.metrics.IncPosting(string(KindJob), outcomeRejected)
		return Posting{}, fmt.Errorf("%w: company is required", ErrInvalidInput)
	}
	saved, err := s.insert(ctx, p)
	if err != nil {
		return Posting{}, err
	}
	s.announce(ctx, KindJob, event.NewJobPosted(saved.ID, saved.Title, saved.Organization, saved.CreatedBy, jobAudience...))
	return saved, nil
}

// CreateEvent stores an event and announces it to every role.
func (s *Service) CreateEvent(ctx context.Context, in EventInput) (Posting, error) {
	p := Posting{
		Kind:      KindEvent,
		Title:     strings.TrimSpace(in.Title),
		Location:  strings.TrimSpace(in.Location),
		StartsAt:  in.StartsAt.UTC(),
		CreatedBy: strings.TrimSpace(in.CreatedBy),
	}
	if in.StartsAt.IsZero() {
		s.metrics.IncPosting(string(KindEvent), outcomeRejected)
		return Posting{}, fmt.Errorf("%w: start time is required", ErrInvalidInput)
	}
	saved, err := s.insert(ctx, p)
	if err != nil {
		return Posting{}, err
	}
	s.announce(ctx, KindEvent, event.NewEventCreated(saved.ID, saved.Title, saved.Location, saved.StartsAt, saved.CreatedBy, eventAudience...))
	return saved, nil
}

// List returns the newest postings of kind; an empty kind lists both.
func (s *Service) List(ctx context.Context, kind Kind, limit int) ([]Posting, error) {
	switch kind {
	case "", KindJob, KindEvent:
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrInvalidInput, kind)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	return s.store.List(ctx, kind, limit)
}

func (s *Service) insert(ctx context.Context, p Posting) (Posting, error) {
	if err := validate(p); err != nil {
		s.metrics.IncPosting(string(p.Kind), outcomeRejected)
		return Posting{}, err
	}
	p.ID = s.newID()
	p.CreatedAt = s.now()
	saved, err := s.store.Insert(ctx, p)
	if err != nil {
		return Posting{}, err
	}
	s.metrics.IncPosting(string(saved.Kind), outcomeCreated)
	s.log(ctx).Info("posting created",
		slog.String("posting_id", saved.ID),
		slog.String("kind", string(saved.Kind)),
		slog.String("created_by", saved.CreatedBy),
	)
	return saved, nil
}

func validate(p Posting) error {
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len([]rune(p.Title)) > maxTitleRunes {
		return fmt.Errorf("%w: title must be at most %d characters", ErrInvalidInput, maxTitleRunes)
	}
	if err := identity.ValidateUserID(p.CreatedBy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) announce(ctx context.Context, kind Kind, ev event.Event) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Emit(ev); err != nil {
		s.metrics.IncPosting(string(kind), outcomeAnnounceFailed)
		s.log(ctx).Warn("posting announcement failed", slog.String("type", string(ev.Type())), slog.Any("error", err))
	}
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	if l := logger.FromContextOr(ctx, nil); l != nil {
		return l.With(slog.String("service", "postings"))
	}
	return s.logger
}
