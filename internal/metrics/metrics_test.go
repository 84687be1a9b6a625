package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDefault_IsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestTransition_IncrementsCounter(t *testing.T) {
	r := Default()
	before := testutil.ToFloat64(r.transitions.WithLabelValues("escrow", "pending", "paid"))

	r.Transition("escrow", "pending", "paid")

	after := testutil.ToFloat64(r.transitions.WithLabelValues("escrow", "pending", "paid"))
	assert.Equal(t, before+1, after)
}

func TestHandler_ExposesLifecycleMetrics(t *testing.T) {
	Default().Reconcile("paid")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "engagement_escrow_reconcile_total")
}
