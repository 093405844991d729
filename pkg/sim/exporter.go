package sim

import (
	"fmt"
	"net/http"

	"txmgr/pkg/logging"
	"txmgr/pkg/tm"
)

// Handler serves /metrics in Prometheus text format and a /health probe.
func Handler(c *Collector, m *tm.Manager) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if err := c.WriteMetrics(w, m.Stats()); err != nil {
			logging.WithComponent("exporter").Warn("write metrics", logging.Err(err))
		}
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	return mux
}
