package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPicksReserved(t *testing.T) {
	before := testutil.ToFloat64(picksReserved)
	RecordPicksReserved(3)
	assert.Equal(t, before+3, testutil.ToFloat64(picksReserved))
}

func TestRecordReveal_Labels(t *testing.T) {
	before := testutil.ToFloat64(reveals.WithLabelValues("true", "manual"))
	RecordReveal(true, true)
	assert.Equal(t, before+1, testutil.ToFloat64(reveals.WithLabelValues("true", "manual")))
}

func TestCriticalCounters(t *testing.T) {
	debits := testutil.ToFloat64(criticalDebits)
	unresolved := testutil.ToFloat64(unresolvedReveals)
	RecordCriticalDebit()
	RecordUnresolvedReveal()
	assert.Equal(t, debits+1, testutil.ToFloat64(criticalDebits))
	assert.Equal(t, unresolved+1, testutil.ToFloat64(unresolvedReveals))
}

func TestRecordNotification(t *testing.T) {
	before := testutil.ToFloat64(notifications.WithLabelValues("picks", "dropped"))
	RecordNotification("picks", "dropped")
	assert.Equal(t, before+1, testutil.ToFloat64(notifications.WithLabelValues("picks", "dropped")))
}

func TestInstrumentHandler_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/pull-card/{sessionId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/pull-card/{sessionId}", "418"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pull-card/abc", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/pull-card/{sessionId}", "418")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	RecordGameClosed()
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "luckygrid_grid_games_closed_total"))
}
