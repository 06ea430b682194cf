package api

import (
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	cs := s.cache.Stats()
	out := map[string]any{
		"queue_depth": s.orchestrator.QueueDepth(),
		"cache": map[string]any{
			"size":   s.cache.Size(),
			"hits":   cs.Hits(),
			"misses": cs.Misses(),
			"ratio":  cs.Ratio(),
		},
	}
	if stats := s.orchestrator.Worker().Stats(); stats != nil {
		out["latency"] = stats.Snapshot()
	}
	if s.store != nil {
		st, err := s.store.Stats(r.Context())
		if err != nil {
			s.log.Error("store stats", "error", err)
			jsonError(w, "failed to read store stats", http.StatusInternalServerError)
			return
		}
		out["store"] = st
	}
	writeJSON(w, http.StatusOK, out)
}
