package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-app/inkwell/internal/observability"
	"github.com/inkwell-app/inkwell/internal/platform/httpx"
)

// NewMetricsServer exposes /metrics and /healthz for processes without the API
// router, such as the worker.
func NewMetricsServer(addr string, metrics *observability.Metrics) *http.Server {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
