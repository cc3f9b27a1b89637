package presence

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/metrics"
)

func TestJoinIsIdempotent(t *testing.T) {
	r := NewRouter(logger.Discard(), nil)
	assert.True(t, r.Join("c1", "role:ADMIN"))
	assert.False(t, r.Join("c1", "role:ADMIN"))
	assert.Equal(t, []string{"c1"}, r.Members("role:ADMIN"))
	assert.Equal(t, []Channel{"role:ADMIN"}, r.ChannelsOf("c1"))
}

func TestLeave(t *testing.T) {
	r := NewRouter(logger.Discard(), nil)
	r.Join("c1", "role:ADMIN")
	r.Join("c2", "role:ADMIN")

	assert.True(t, r.Leave("c1", "role:ADMIN"))
	assert.False(t, r.Leave("c1", "role:ADMIN"))
	assert.Equal(t, []string{"c2"}, r.Members("role:ADMIN"))
	assert.Empty(t, r.ChannelsOf("c1"))

	r.Leave("c2", "role:ADMIN")
	assert.Equal(t, 0, r.ChannelCount())
}

func TestPublishEmptyChannel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := NewRouter(logger.Discard(), m)

	res := r.Publish("role:ADMIN", Envelope{Type: "x"})
	assert.ErrorIs(t, res.Err, ErrUnknownChannel)
	assert.Zero(t, res.Delivered)

	res = r.Publish("user:nobody", Envelope{Type: "x"})
	assert.ErrorIs(t, res.Err, ErrAuthenticationMissing)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmptyPublishes.WithLabelValues("role")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmptyPublishes.WithLabelValues("user")))
}

func TestPublishRoleReachesOnlyThatRole(t *testing.T) {
	reg := newTestRegistry()
	admin1, admin2, student := newSink(), newSink(), newSink()
	unbound := newSink()

	for id, s := range map[string]*recordingSink{"a1": admin1, "a2": admin2, "s1": student, "u": unbound} {
		_, err := reg.Register(id, s)
		require.NoError(t, err)
	}
	_, err := reg.Bind("a1", ident("admin-1", identity.RoleAdmin))
	require.NoError(t, err)
	_, err = reg.Bind("a2", ident("admin-2", identity.RoleAdmin))
	require.NoError(t, err)
	_, err = reg.Bind("s1", ident("student-1", identity.RoleStudent))
	require.NoError(t, err)

	res := reg.Router().Publish(mustChannel(RoleChannel(identity.RoleAdmin)), Envelope{Type: "ping"})
	assert.NoError(t, res.Err)
	assert.Equal(t, 2, res.Delivered)

	assert.Len(t, admin1.received(), 1)
	assert.Len(t, admin2.received(), 1)
	assert.Empty(t, student.received())
	assert.Empty(t, unbound.received())
	assert.Equal(t, Channel("role:ADMIN"), admin1.received()[0].Channel)
}

func TestPublishUserReachesOnlyThatUser(t *testing.T) {
	reg := newTestRegistry()
	x1, x2, y := newSink(), newSink(), newSink()
	_, _ = reg.Register("x1", x1)
	_, _ = reg.Register("x2", x2)
	_, _ = reg.Register("y", y)
	_, _ = reg.Bind("x1", ident("X", identity.RoleAlumni))
	_, _ = reg.Bind("x2", ident("X", identity.RoleAlumni))
	_, _ = reg.Bind("y", ident("Y", identity.RoleAlumni))

	res := reg.Router().Publish(mustChannel(UserChannel("X")), Envelope{Type: "hello"})
	assert.Equal(t, 2, res.Delivered)
	assert.Len(t, x1.received(), 1)
	assert.Len(t, x2.received(), 1)
	assert.Empty(t, y.received())
}

func TestPublishCountsSlowConsumers(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	log := logger.Discard()
	reg := NewRegistry(log, NewRouter(log, m), m)

	full := &recordingSink{capacity: 0}
	_, _ = reg.Register("c1", full)
	_, _ = reg.Bind("c1", ident("u1", identity.RoleStudent))

	res := reg.Router().Publish("user:u1", Envelope{Type: "t"})
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 0, res.Delivered)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SlowConsumerDrops))
}

type scriptedDeliverer map[string]delivery

func (d scriptedDeliverer) deliver(connID string, _ Envelope) delivery {
	return d[connID]
}

func TestPublishSkipsMembersThatLeftMidPublish(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := NewRouter(logger.Discard(), m)
	r.attach(scriptedDeliverer{"c1": delivered, "c2": gone, "c3": dropped})
	for _, id := range []string{"c1", "c2", "c3"} {
		r.Join(id, "role:ALUMNI")
	}

	res := r.Publish("role:ALUMNI", Envelope{Type: "x"})
	assert.Equal(t, 3, res.Members)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 1, res.Gone)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SlowConsumerDrops))
}

func TestRegistryDeliverReportsGoneAfterUnregister(t *testing.T) {
	reg := newTestRegistry()
	full := newSink()
	full.capacity = 0
	_, err := reg.Register("c1", newSink())
	require.NoError(t, err)
	_, err = reg.Register("c2", full)
	require.NoError(t, err)
	_, err = reg.Bind("c1", ident("alum-1", identity.RoleAlumni))
	require.NoError(t, err)
	_, err = reg.Bind("c2", ident("alum-2", identity.RoleAlumni))
	require.NoError(t, err)

	assert.Equal(t, delivered, reg.deliver("c1", Envelope{Type: "x"}))
	assert.Equal(t, dropped, reg.deliver("c2", Envelope{Type: "x"}))

	reg.Unregister("c1")
	assert.Equal(t, gone, reg.deliver("c1", Envelope{Type: "x"}))
}
