package event

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/metrics"
	"github.com/alumnet/alumnet/internal/presence"
)

type fakePublisher struct {
	mu        sync.Mutex
	published map[presence.Channel][]presence.Envelope
}

func (f *fakePublisher) Publish(ch presence.Channel, env presence.Envelope) presence.PublishResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.published == nil {
		f.published = map[presence.Channel][]presence.Envelope{}
	}
	f.published[ch] = append(f.published[ch], env)
	return presence.PublishResult{Channel: ch, Members: 1, Delivered: 1}
}

func (f *fakePublisher) channels() []presence.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]presence.Channel, 0, len(f.published))
	for ch := range f.published {
		out = append(out, ch)
	}
	return out
}

func TestEmitRoutesByPayload(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want []presence.Channel
	}{
		{"verification submitted", NewAlumniVerificationSubmitted("B", "Bea", "bea@example.com"), []presence.Channel{"role:ADMIN"}},
		{"verification decided", NewVerificationDecided("B", true), []presence.Channel{"user:B"}},
		{"mentorship requested", NewMentorshipRequested("r1", "alum", "stud", "Sam", "hi"), []presence.Channel{"user:alum"}},
		{"mentorship decided", NewMentorshipDecided("r1", "stud", "alum", true, "yes"), []presence.Channel{"user:stud"}},
		{"job posted", NewJobPosted("j1", "Engineer", "Acme", "alum", identity.RoleStudent, identity.RoleAlumni, identity.RoleStudent), []presence.Channel{"role:STUDENT", "role:ALUMNI"}},
		{"event created", NewEventCreated("e1", "Reunion", "Hall", time.Now().Add(time.Hour), "admin", identity.RoleAlumni), []presence.Channel{"role:ALUMNI"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			d := NewDispatcher(logger.Discard(), pub, nil)

			report, err := d.Emit(tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.ev.Type(), report.Type)
			assert.ElementsMatch(t, tt.want, pub.channels())
			assert.Equal(t, len(tt.want), report.Delivered)
			for _, ch := range tt.want {
				assert.Equal(t, string(tt.ev.Type()), pub.published[ch][0].Type)
			}
		})
	}
}

func TestEmitRejectsInvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
	}{
		{"nil", nil},
		{"missing alumni", NewAlumniVerificationSubmitted("", "n", "e")},
		{"free text channel id", NewVerificationDecided("user:B", true)},
		{"missing timestamp", VerificationDecided{AlumniID: "B", Message: "m"}},
		{"missing message", VerificationDecided{AlumniID: "B", Timestamp: time.Now()}},
		{"missing student", NewMentorshipRequested("r1", "alum", "", "", "hi")},
		{"decision missing student", NewMentorshipDecided("r1", "", "alum", false, "")},
		{"job without audience", NewJobPosted("j1", "Engineer", "Acme", "alum")},
		{"job with bad role", NewJobPosted("j1", "Engineer", "Acme", "alum", identity.Role("guest"))},
		{"event without start", NewEventCreated("e1", "Reunion", "", time.Time{}, "admin", identity.RoleAlumni)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			d := NewDispatcher(logger.Discard(), pub, nil)
			_, err := d.Emit(tt.ev)
			assert.ErrorIs(t, err, ErrInvalidPayload)
			assert.Empty(t, pub.channels())
		})
	}
}

func TestEmitCountsOutcomes(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	d := NewDispatcher(logger.Discard(), &fakePublisher{}, m)

	_, _ = d.Emit(NewVerificationDecided("B", false))
	_, _ = d.Emit(NewVerificationDecided("", false))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues(string(TypeVerificationDecision), "emitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues(string(TypeVerificationDecision), "invalid")))
}

func TestWirePayloadShape(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDispatcher(logger.Discard(), pub, nil)
	_, err := d.Emit(NewVerificationDecided("B", true))
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(pub.published["user:B"][0].Payload, &payload))
	assert.Equal(t, true, payload["approved"])
	assert.Equal(t, "Your alumni profile has been verified.", payload["message"])
	assert.Contains(t, payload, "timestamp")
	assert.NotContains(t, payload, "AlumniID")
}

func TestEmitThroughRouterToOfflineUserIsNotAnError(t *testing.T) {
	log := logger.Discard()
	router := presence.NewRouter(log, nil)
	presence.NewRegistry(log, router, nil)
	d := NewDispatcher(log, router, nil)

	report, err := d.Emit(NewMentorshipDecided("r1", "offline", "alum", true, ""))
	require.NoError(t, err)
	require.Len(t, report.Channels, 1)
	assert.ErrorIs(t, report.Channels[0].Err, presence.ErrAuthenticationMissing)
	assert.Zero(t, report.Delivered)
}
