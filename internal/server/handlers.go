// handlers.go — HTTP handlers for ingestion and queries.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hoptrace/hoptrace/internal/grouping"
	"github.com/hoptrace/hoptrace/internal/types"
)

// maxEventBody bounds incoming event batch bodies.
const maxEventBody = 2 << 20 // 2MB

// eventsResponse reports how a posted batch was consumed.
type eventsResponse struct {
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
}

// logResponse is the get-log shape: persisted records plus live previews of
// in-flight chains.
type logResponse struct {
	Log     []types.RedirectRecord `json:"log"`
	Pending []types.RedirectRecord `json:"pending"`
}

// handleEvents ingests a batch of wire events. Unknown kinds are skipped
// with a warning; a malformed body is a 400; nothing panics through.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var batch types.WireEventBatch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody))
	if err := dec.Decode(&batch); err != nil {
		http.Error(w, "malformed event batch", http.StatusBadRequest)
		return
	}

	resp := eventsResponse{}
	for _, we := range batch.Events {
		ev, err := types.DecodeWireEvent(we)
		if err != nil {
			resp.Skipped++
			s.log.Warn("skipping wire event",
				zap.String("kind", we.Kind),
				zap.Error(err))
			continue
		}
		s.tracker.HandleEvent(ev)
		resp.Accepted++
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetLog returns persisted records plus pending previews.
func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	log, err := s.store.List(limit)
	if err != nil {
		s.log.Error("redirect log read failed", zap.Error(err))
		http.Error(w, "log unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, logResponse{
		Log:     log,
		Pending: s.tracker.PendingRecords(),
	})
}

// handleClearLog clears persisted records and resets all per-tab badges.
func (s *Server) handleClearLog(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(); err != nil {
		s.log.Error("redirect log clear failed", zap.Error(err))
		http.Error(w, "clear failed", http.StatusInternalServerError)
		return
	}
	s.badges.ClearAll()
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// handleGroups returns the session-grouped view of the log. Pending chains
// participate as singleton groups. ?noise=true includes noise-classified
// primaries and satellites.
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	showingNoise := r.URL.Query().Get("noise") == "true"
	log, err := s.store.List(0)
	if err != nil {
		s.log.Error("redirect log read failed", zap.Error(err))
		http.Error(w, "log unavailable", http.StatusInternalServerError)
		return
	}
	records := append(s.tracker.PendingRecords(), log...)
	writeJSON(w, http.StatusOK, grouping.Group(records, showingNoise))
}

// handleBadge returns the tab's badge state.
func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	tabID, err := strconv.Atoi(chi.URLParam(r, "tabID"))
	if err != nil {
		http.Error(w, "invalid tab id", http.StatusBadRequest)
		return
	}
	snap, _ := s.badges.Snapshot(tabID)
	writeJSON(w, http.StatusOK, snap)
}

// handleStats returns tracker and storage counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.tracker.Stats()
	persisted, err := s.store.Count()
	if err != nil {
		s.log.Warn("redirect log count failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tracker":         stats,
		"persisted_count": persisted,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
