package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_BasicRegistration(t *testing.T) {
	tests := []struct {
		name string
		c    any
	}{
		{name: "registrations", c: RegistrationsTotal},
		{name: "pool size", c: PoolSize},
		{name: "requests", c: RequestsTotal},
		{name: "responses", c: ResponsesTotal},
		{name: "submission duration", c: SubmissionDuration},
		{name: "reconnects", c: StreamReconnects},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.c == nil {
				t.Fatalf("%s collector is nil", tt.name)
			}
		})
	}
}

func TestMetrics_ResponsesTotal(t *testing.T) {
	tests := []struct {
		name  string
		label string
		incN  int
	}{
		{name: "submitted label", label: "Submitted", incN: 1},
		{name: "failed label", label: "Failed", incN: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(ResponsesTotal.WithLabelValues(tt.label))
			for i := 0; i < tt.incN; i++ {
				ResponsesTotal.WithLabelValues(tt.label).Inc()
			}
			after := testutil.ToFloat64(ResponsesTotal.WithLabelValues(tt.label))
			diff := after - before
			if diff != float64(tt.incN) {
				t.Fatalf("counter diff mismatch\nexpected: %#v\nactual: %#v", float64(tt.incN), diff)
			}
		})
	}
}

func TestMetrics_PoolSize(t *testing.T) {
	PoolSize.Set(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(PoolSize))
}

func TestMetrics_SubmissionDuration(t *testing.T) {
	tests := []struct {
		name    string
		observe float64
	}{
		{name: "small", observe: 0.1},
		{name: "large", observe: 3.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SubmissionDuration.Observe(tt.observe)
			count := testutil.CollectAndCount(SubmissionDuration)
			assert.Greater(t, count, 0, "histogram not collected; count=%#v", count)
		})
	}
}

func TestRegister_ServesMetrics(t *testing.T) {
	StreamReconnects.Inc()
	mux := http.NewServeMux()
	Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "oracle_stream_reconnects_total"))
}
