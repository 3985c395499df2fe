package api

import (
	"encoding/json"
	"net/http"

	"github.com/heysubinoy/quotakv/internal/store"
)

// StatsHandler returns current store metrics as JSON.
func StatsHandler(instrumentedStore *store.InstrumentedStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStats(w, instrumentedStore.GetMetrics())
	}
}

// ResetStatsHandler zeroes the per-operation counters and returns the
// emptied snapshot. Prometheus counters are not affected.
func ResetStatsHandler(instrumentedStore *store.InstrumentedStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instrumentedStore.ResetMetrics()
		writeStats(w, instrumentedStore.GetMetrics())
	}
}

func writeStats(w http.ResponseWriter, metrics store.MetricsSnapshot) {
	operations := make(map[string]uint64, len(metrics.Operations))
	rejected := make(map[string]uint64, len(metrics.Operations))
	latency := make(map[string]string, len(metrics.Operations))
	for op, snap := range metrics.Operations {
		operations[op] = snap.Count
		rejected[op] = snap.Rejected
		latency[op] = snap.AvgLatency.String()
	}

	response := map[string]any{
		"entries":     metrics.Entries,
		"capacity":    metrics.Capacity,
		"operations":  operations,
		"rejected":    rejected,
		"avg_latency": latency,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
