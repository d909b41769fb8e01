package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skekre98/chatlog/core"
)

func TestObserver_CountsByRoute(t *testing.T) {
	t.Parallel()

	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		core.SetRoute(r.Context(), "/api/v1/messages")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":1}`))
	})
	h := core.Instrument("application", mux, nil, m.Observer("application"))

	for range 2 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(`{"text":"hi"}`)))
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("application", "POST", "/api/v1/messages", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("application", "GET", UnmatchedRoute, "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight.WithLabelValues("application")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestDuration))
}

func TestJobRun(t *testing.T) {
	t.Parallel()

	m := New()
	m.JobRun("digest", nil)
	m.JobRun("digest", nil)
	m.JobRun("digest", errors.New("db down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("digest", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("digest", "error")))
}

func TestRegistry_ExposesRuntimeCollectors(t *testing.T) {
	t.Parallel()

	families, err := New().Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
}
