package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/internal/auth"
	"github.com/alumnet/alumnet/internal/event"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/mentorship"
	"github.com/alumnet/alumnet/internal/metrics"
	"github.com/alumnet/alumnet/internal/postings"
	"github.com/alumnet/alumnet/internal/presence"
	"github.com/alumnet/alumnet/internal/verification"
)

type testSink struct{}

func (testSink) Deliver(presence.Envelope) bool { return true }
func (testSink) Close()                         {}

type testAPI struct {
	echo     *echo.Echo
	registry *presence.Registry
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := logger.Discard()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	registry := presence.NewRegistry(log, presence.NewRouter(log, m), m)
	t.Cleanup(registry.Shutdown)
	dispatcher := event.NewDispatcher(log, registry.Router(), m)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(log)
	e.Use(auth.Middleware("", func(c echo.Context) bool {
		p := c.Request().URL.Path
		return p == "/ping" || p == "/metrics"
	}))
	for _, h := range []interface{ Register(*echo.Echo) }{
		NewPingHandler(log, registry),
		NewMetricsHandler(reg),
		NewPresenceHandler(log, registry),
		NewMentorshipHandler(log, mentorship.NewService(log, mentorship.NewMemoryStore(), dispatcher, m)),
		NewVerificationHandler(log, verification.NewService(log, verification.NewMemoryStore(), dispatcher, m)),
		NewPostingsHandler(log, postings.NewService(log, postings.NewMemoryStore(), dispatcher, m)),
	} {
		h.Register(e)
	}
	return &testAPI{echo: e, registry: registry}
}

func (a *testAPI) do(t *testing.T, method, path, userID, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req.Header.Set(auth.HeaderUserID, userID)
		req.Header.Set(auth.HeaderRole, role)
	}
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestMentorshipFlow(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/mentorship/requests", "s1", "STUDENT", `{"alumniId":"a1","studentName":"Sam","message":"Could you mentor me?"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[mentorship.Request](t, rec)
	assert.Equal(t, mentorship.StatusPending, created.Status)

	rec = api.do(t, http.MethodPost, "/mentorship/requests", "s1", "STUDENT", `{"alumniId":"a1","message":"again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/mentorship/requests", "a2", "ALUMNI", `{"alumniId":"a1","message":"hi"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	path := "/mentorship/requests/" + created.ID + "/decision"
	rec = api.do(t, http.MethodPost, path, "a2", "ALUMNI", `{"accepted":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "only the addressed alumni may decide")

	rec = api.do(t, http.MethodPost, path, "a1", "ALUMNI", `{"accepted":true,"responseMessage":"Sure"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, mentorship.StatusAccepted, decode[mentorship.Request](t, rec).Status)

	rec = api.do(t, http.MethodPost, path, "a1", "ALUMNI", `{"accepted":false}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodGet, "/mentorship/requests/"+created.ID, "s9", "STUDENT", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/mentorship/requests?status=ACCEPTED", "a1", "ALUMNI", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[mentorshipListResponse](t, rec).Items, 1)

	rec = api.do(t, http.MethodPost, "/mentorship/requests/nope/decision", "a1", "ALUMNI", `{"accepted":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerificationFlow(t *testing.T) {
	api := newTestAPI(t)

	for _, id := range []string{"a", "b", "c"} {
		rec := api.do(t, http.MethodPost, "/verifications", id, "ALUMNI", `{"name":"N","email":"n@example.com"}`)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	}

	rec := api.do(t, http.MethodPost, "/verifications/b/decision", "b", "ALUMNI", `{"approved":true}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/verifications/b/decision", "root", "ADMIN", `{"approved":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/verifications/pending", "root", "ADMIN", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[verificationListResponse](t, rec).Items, 2)

	rec = api.do(t, http.MethodPost, "/verifications/bulk-decision", "root", "ADMIN", `{"alumniIds":["a","b","c"],"approved":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[verification.BulkResult](t, rec)
	assert.Len(t, result.Decided, 2)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "b", result.Skipped[0].AlumniID)

	rec = api.do(t, http.MethodGet, "/verifications/b", "b", "ALUMNI", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, verification.StatusRejected, decode[verification.Record](t, rec).Status)

	rec = api.do(t, http.MethodGet, "/verifications/b", "c", "ALUMNI", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/verifications/b/decision", "root", "ADMIN", `{"approved":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/verifications/zed/decision", "root", "ADMIN", `{"approved":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostings(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/jobs", "s1", "STUDENT", `{"title":"Intern","company":"Acme"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/jobs", "a1", "ALUMNI", `{"title":"Engineer","company":"Acme"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/events", "root", "ADMIN", `{"title":"Reunion","location":"Hall","startsAt":"2030-06-01T18:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/events", "root", "ADMIN", `{"title":"No date"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/postings?kind=JOB", "s1", "STUDENT", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[postingListResponse](t, rec).Items, 1)

	rec = api.do(t, http.MethodGet, "/postings?limit=x", "s1", "STUDENT", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPresenceAndPing(t *testing.T) {
	api := newTestAPI(t)
	_, err := api.registry.Register("c1", testSink{})
	require.NoError(t, err)
	_, err = api.registry.Register("c2", testSink{})
	require.NoError(t, err)

	rec := api.do(t, http.MethodGet, "/presence/online/s1", "a1", "ALUMNI", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[onlineResponse](t, rec).Online)

	_, err = api.registry.Bind("c1", mustIdentity(t, "s1", "STUDENT"))
	require.NoError(t, err)
	rec = api.do(t, http.MethodGet, "/presence/online/s1", "a1", "ALUMNI", "")
	assert.True(t, decode[onlineResponse](t, rec).Online)

	rec = api.do(t, http.MethodGet, "/presence/stats", "root", "ADMIN", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[presenceStatsResponse](t, rec)
	assert.Equal(t, 2, stats.Connections)
	assert.Equal(t, 1, stats.Bound)
	assert.Equal(t, 1, stats.Roles["STUDENT"])

	rec = api.do(t, http.MethodGet, "/presence/online/s1", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/ping", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[pingResponse](t, rec).Connections)

	rec = api.do(t, http.MethodGet, "/metrics", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alumnet_")
}
