package http

import "net/http"

// HealthHandler answers liveness probes with a plain 200 "ok".
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
