package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// handleGetReadings returns the current readings snapshot.
//
// The snapshot is the mirror of the receiver's last reported state. Readings
// that have never been observed are absent rather than empty.
func (s *Server) handleGetReadings(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.store.Snapshot()

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": s.store.DeviceID(),
		"readings":  snapshot,
		"count":     len(snapshot),
	})
}

// handleGetReadingHistory returns recent changes for one reading, newest first.
func (s *Server) handleGetReadingHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.store.IsDeclared(name) {
		writeNotFound(w, "unknown reading")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if s.history == nil {
		writeUnavailable(w, "reading history unavailable")
		return
	}

	entries, err := s.history.History(r.Context(), s.store.DeviceID(), name, limit)
	if err != nil {
		writeInternalError(w, "failed to load reading history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": s.store.DeviceID(),
		"reading":   name,
		"history":   entries,
		"count":     len(entries),
	})
}

// parseHistoryLimit parses the limit query parameter with bounds enforcement.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}
