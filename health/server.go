package health

import (
	"encoding/json"
	"net/http"
)

// Status is what the probes and the informational endpoint report on.
type Status interface {
	Ready() bool
	PoolSize() int
	InFlight() int
}

type apiResponse struct {
	Message  string `json:"message"`
	Ready    bool   `json:"ready"`
	PoolSize int    `json:"poolSize"`
	InFlight int    `json:"inFlight"`
}

func Register(mux *http.ServeMux, st Status) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !st.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("GET /api", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiResponse{
			Message:  "Flight status oracle service",
			Ready:    st.Ready(),
			PoolSize: st.PoolSize(),
			InFlight: st.InFlight(),
		})
	})
}
