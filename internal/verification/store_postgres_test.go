package verification_test

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
	"github.com/alumnet/alumnet/internal/verification"
)

type countingNotifier struct {
	emitted atomic.Int64
}

func (n *countingNotifier) Emit(ev event.Event) (event.Report, error) {
	n.emitted.Add(1)
	return event.Report{Type: ev.Type()}, nil
}

func setupPostgres(t *testing.T) (*verification.Service, *verification.PostgresStore, *countingNotifier) {
	t.Helper()
	store := verification.NewPostgresStore(dbtest.Pool(t))
	n := &countingNotifier{}
	return verification.NewService(logger.Discard(), store, n, nil), store, n
}

func alumniID() string {
	return "alumni-" + uuid.NewString()
}

func TestPostgresSubmitOnlyRefreshesPending(t *testing.T) {
	svc, store, n := setupPostgres(t)
	ctx := context.Background()
	id := alumniID()

	first, err := svc.Submit(ctx, verification.SubmitInput{AlumniID: id, Name: "Ada", Email: "ada@old.example"})
	require.NoError(t, err)
	assert.Equal(t, verification.StatusPending, first.Status)

	refreshed, err := svc.Submit(ctx, verification.SubmitInput{AlumniID: id, Name: "Ada L.", Email: "ada@new.example"})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", refreshed.Name)
	assert.Equal(t, "ada@new.example", refreshed.Email)
	assert.True(t, first.RequestedAt.Equal(refreshed.RequestedAt))
	assert.EqualValues(t, 2, n.emitted.Load())

	_, err = svc.Decide(ctx, id, true, "admin-1")
	require.NoError(t, err)

	_, err = store.Submit(ctx, verification.Record{
		AlumniID:    id,
		Name:        "Someone Else",
		Status:      verification.StatusPending,
		RequestedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, verification.ErrInvalidTransition)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusApproved, got.Status)
	assert.Equal(t, "Ada L.", got.Name)
	assert.Equal(t, "admin-1", got.DecidedBy)
}

func TestPostgresDecideRechecksPending(t *testing.T) {
	svc, store, _ := setupPostgres(t)
	ctx := context.Background()
	id := alumniID()

	_, err := svc.Submit(ctx, verification.SubmitInput{AlumniID: id})
	require.NoError(t, err)

	_, err = store.Decide(ctx, id, verification.Decision{Status: verification.StatusRejected, DecidedAt: time.Now().UTC(), DecidedBy: "admin-1"})
	require.NoError(t, err)
	_, err = store.Decide(ctx, id, verification.Decision{Status: verification.StatusApproved, DecidedAt: time.Now().UTC(), DecidedBy: "admin-2"})
	require.ErrorIs(t, err, verification.ErrDuplicateDecision)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusRejected, got.Status)
	assert.Equal(t, "admin-1", got.DecidedBy)

	_, err = store.Decide(ctx, alumniID(), verification.Decision{Status: verification.StatusApproved})
	assert.ErrorIs(t, err, verification.ErrRequestNotFound)
}

func TestPostgresConcurrentAdminsDecideOnce(t *testing.T) {
	svc, store, n := setupPostgres(t)
	ctx := context.Background()
	id := alumniID()

	_, err := svc.Submit(ctx, verification.SubmitInput{AlumniID: id})
	require.NoError(t, err)
	before := n.emitted.Load()

	const admins = 8
	var (
		wg        sync.WaitGroup
		committed atomic.Int64
		start     = make(chan struct{})
	)
	for i := range admins {
		wg.Add(1)
		go func(admin string, approved bool) {
			defer wg.Done()
			<-start
			_, err := svc.Decide(ctx, id, approved, admin)
			switch {
			case err == nil:
				committed.Add(1)
			case errors.Is(err, verification.ErrDuplicateDecision), errors.Is(err, verification.ErrInvalidTransition):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}("admin-"+uuid.NewString(), i%2 == 0)
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, committed.Load())
	assert.EqualValues(t, before+1, n.emitted.Load())

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, verification.StatusPending, got.Status)
}

func TestPostgresBulkDecide(t *testing.T) {
	svc, _, _ := setupPostgres(t)
	ctx := context.Background()
	a, b, c := alumniID(), alumniID(), alumniID()
	for _, id := range []string{a, b, c} {
		_, err := svc.Submit(ctx, verification.SubmitInput{AlumniID: id})
		require.NoError(t, err)
	}
	_, err := svc.Decide(ctx, b, false, "admin-1")
	require.NoError(t, err)

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	pendingIDs := make(map[string]bool, len(pending))
	for _, rec := range pending {
		pendingIDs[rec.AlumniID] = true
	}
	assert.True(t, pendingIDs[a])
	assert.False(t, pendingIDs[b])

	res, err := svc.BulkDecide(ctx, []string{a, b, c}, true, "admin-1")
	require.NoError(t, err)
	require.Len(t, res.Decided, 2)
	assert.Equal(t, a, res.Decided[0].AlumniID)
	assert.Equal(t, c, res.Decided[1].AlumniID)
	assert.Equal(t, []verification.Skipped{{AlumniID: b, Reason: verification.SkipNotPending}}, res.Skipped)

	got, err := svc.Get(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusRejected, got.Status)
}
