package health

import (
	"encoding/json"
	"net/http"
)

// LivenessHandler answers liveness probes. The process being able to
// serve the request is the whole check.
func LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"alive"}`))
	})
}

// ReadinessHandler answers readiness probes with the full component
// report. Not-ready reports get a 503 so load balancers stop routing.
func ReadinessHandler(m *Manager) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rep := m.Report(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !rep.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(rep); err != nil && m.logger != nil {
			m.logger.Error("Failed to encode health report")
		}
	})
}
