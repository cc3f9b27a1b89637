package mentorship_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/internal/db/dbtest"
	"github.com/alumnet/alumnet/internal/event"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/mentorship"
)

type countingNotifier struct {
	emitted atomic.Int64
}

func (n *countingNotifier) Emit(ev event.Event) (event.Report, error) {
	n.emitted.Add(1)
	return event.Report{Type: ev.Type()}, nil
}

func setupPostgres(t *testing.T) (*mentorship.Service, *mentorship.PostgresStore, *countingNotifier) {
	t.Helper()
	store := mentorship.NewPostgresStore(dbtest.Pool(t))
	n := &countingNotifier{}
	return mentorship.NewService(logger.Discard(), store, n, nil), store, n
}

func userID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func TestPostgresPendingPairIsUnique(t *testing.T) {
	svc, _, _ := setupPostgres(t)
	ctx := context.Background()
	student, alumni := userID("student"), userID("alumni")

	first, err := svc.Create(ctx, mentorship.CreateInput{StudentID: student, AlumniID: alumni, Message: "first"})
	require.NoError(t, err)
	assert.Equal(t, mentorship.StatusPending, first.Status)

	_, err = svc.Create(ctx, mentorship.CreateInput{StudentID: student, AlumniID: alumni, Message: "again"})
	require.ErrorIs(t, err, mentorship.ErrPendingRequestExists)

	_, err = svc.Decide(ctx, mentorship.DecideInput{RequestID: first.ID, AlumniID: alumni, Accepted: false})
	require.NoError(t, err)

	second, err := svc.Create(ctx, mentorship.CreateInput{StudentID: student, AlumniID: alumni, Message: "one more try"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestPostgresDecideRechecksPending(t *testing.T) {
	svc, store, _ := setupPostgres(t)
	ctx := context.Background()
	alumni := userID("alumni")

	req, err := svc.Create(ctx, mentorship.CreateInput{StudentID: userID("student"), AlumniID: alumni, Message: "hello"})
	require.NoError(t, err)

	decidedAt := time.Now().UTC()
	decided, err := store.Decide(ctx, req.ID, mentorship.Decision{
		Status:          mentorship.StatusAccepted,
		RespondedAt:     decidedAt,
		ResponseMessage: "happy to help",
	})
	require.NoError(t, err)
	assert.Equal(t, mentorship.StatusAccepted, decided.Status)
	assert.WithinDuration(t, decidedAt, decided.RespondedAt, time.Millisecond)

	_, err = store.Decide(ctx, req.ID, mentorship.Decision{Status: mentorship.StatusRejected, RespondedAt: time.Now()})
	require.ErrorIs(t, err, mentorship.ErrDuplicateDecision)

	got, err := store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, mentorship.StatusAccepted, got.Status)
	assert.Equal(t, "happy to help", got.ResponseMessage)

	_, err = store.Decide(ctx, uuid.NewString(), mentorship.Decision{Status: mentorship.StatusAccepted})
	assert.ErrorIs(t, err, mentorship.ErrRequestNotFound)
	_, err = store.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, mentorship.ErrRequestNotFound)
}

func TestPostgresConcurrentDecideCommitsOnce(t *testing.T) {
	svc, store, n := setupPostgres(t)
	ctx := context.Background()
	alumni := userID("alumni")

	req, err := svc.Create(ctx, mentorship.CreateInput{StudentID: userID("student"), AlumniID: alumni, Message: "hello"})
	require.NoError(t, err)
	require.EqualValues(t, 1, n.emitted.Load())

	const attempts = 8
	var (
		wg        sync.WaitGroup
		committed atomic.Int64
		winner    atomic.Value
		start     = make(chan struct{})
	)
	for i := range attempts {
		wg.Add(1)
		go func(accepted bool) {
			defer wg.Done()
			<-start
			got, err := svc.Decide(ctx, mentorship.DecideInput{RequestID: req.ID, AlumniID: alumni, Accepted: accepted})
			switch {
			case err == nil:
				committed.Add(1)
				winner.Store(got.Status)
			case errors.Is(err, mentorship.ErrDuplicateDecision), errors.Is(err, mentorship.ErrInvalidTransition):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i%2 == 0)
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, committed.Load())
	assert.EqualValues(t, 2, n.emitted.Load())

	final, err := store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, winner.Load(), final.Status)
}

func TestPostgresListFilters(t *testing.T) {
	svc, _, _ := setupPostgres(t)
	ctx := context.Background()
	alumni := userID("alumni")
	s1, s2 := userID("student"), userID("student")

	r1, err := svc.Create(ctx, mentorship.CreateInput{StudentID: s1, AlumniID: alumni, Message: "one"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, mentorship.CreateInput{StudentID: s2, AlumniID: alumni, Message: "two"})
	require.NoError(t, err)
	_, err = svc.Decide(ctx, mentorship.DecideInput{RequestID: r1.ID, AlumniID: alumni, Accepted: true})
	require.NoError(t, err)

	all, err := svc.ListForAlumni(ctx, alumni, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := svc.ListForAlumni(ctx, alumni, mentorship.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, s2, pending[0].StudentID)

	sent, err := svc.ListForStudent(ctx, s1)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, mentorship.StatusAccepted, sent[0].Status)
}
