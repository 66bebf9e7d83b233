package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreExposed(t *testing.T) {
	before := testutil.ToFloat64(Submissions.WithLabelValues("mid", "ok"))
	Submissions.WithLabelValues("mid", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Submissions.WithLabelValues("mid", "ok")))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "defense_submissions_total")
	assert.Contains(t, rec.Body.String(), "defense_access_revocation_failures_total")
}
