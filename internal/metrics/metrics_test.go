package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)
	assert.NotNil(t, r.GetPrometheusRegistry())
	assert.NotNil(t, r.SweepsTotal)
	assert.NotNil(t, r.GroupsTotal)
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := NewRegistry(), NewRegistry()
	a.RecordProbes(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(a.ProbesTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ProbesTotal))
}

func TestRecordGroup(t *testing.T) {
	r := NewRegistry()
	r.RecordGroup(OutcomeMatchedNew)
	r.RecordGroup(OutcomeMatchedKnown)
	r.RecordGroup(OutcomeFailed)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.GroupsTotal.WithLabelValues(OutcomeMatchedNew)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.GroupsTotal.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.MatchesFoundTotal))
}

func TestRecordNotificationAndDelivery(t *testing.T) {
	r := NewRegistry()
	r.RecordNotification("match_owner", nil)
	r.RecordNotification("match_owner", errors.New("smtp"))
	r.RecordDelivery("match", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.NotificationsTotal.WithLabelValues("match_owner", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.NotificationsTotal.WithLabelValues("match_owner", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.DeliveriesTotal.WithLabelValues("match", "success")))
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.RecordSweep(150 * time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "reportvault_matching_sweeps_total 1"))
}
