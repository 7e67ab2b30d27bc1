// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"net/http"

	"github.com/ManuGH/cinegate/internal/log"
)

// handleRecentLogs returns the retained warning and error lines.
func (s *Server) handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	entries := log.GetRecentLogs()
	writeOK(w, http.StatusOK, envelope{
		"logs":    entries,
		"count":   len(entries),
		"dropped": log.GetBufferMetrics(),
	})
}

// handleExport streams the catalog snapshot as an attachment.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Catalog.Export(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := fmt.Sprintf("cinegate-catalog-%s.json", snap.ExportedAt.UTC().Format("20060102-150405"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	writeJSON(w, http.StatusOK, snap)
}
