package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct {
	ready    bool
	pool     int
	inflight int
}

func (f fakeStatus) Ready() bool   { return f.ready }
func (f fakeStatus) PoolSize() int { return f.pool }
func (f fakeStatus) InFlight() int { return f.inflight }

func TestRegister_Handlers(t *testing.T) {
	type want struct {
		code int
		body string
	}
	tests := []struct {
		name  string
		path  string
		ready bool
		want  want
	}{
		{name: "healthz ok", path: "/healthz", ready: false, want: want{code: http.StatusOK, body: "ok"}},
		{name: "readyz ok", path: "/readyz", ready: true, want: want{code: http.StatusOK, body: "ready"}},
		{name: "readyz not ready", path: "/readyz", ready: false, want: want{code: http.StatusServiceUnavailable, body: "not ready"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			Register(mux, fakeStatus{ready: tt.ready})

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.want.code {
				t.Errorf("status code mismatch\n got=%#v\nwant=%#v", rec.Code, tt.want.code)
			}
			if body := rec.Body.String(); body != tt.want.body {
				t.Errorf("body mismatch\n got=%#v\nwant=%#v", body, tt.want.body)
			}
		})
	}
}

func TestRegister_API(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux, fakeStatus{ready: true, pool: 4, inflight: 2})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, apiResponse{Message: "Flight status oracle service", Ready: true, PoolSize: 4, InFlight: 2}, got)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
