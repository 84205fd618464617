package diagnostics

import (
	"encoding/json"
	"net/http"

	"github.com/ulikunitz/xz"
)

// exportPageSize bounds how many history records one export request reads
// from the database at a time, so an unbounded history table doesn't load
// entirely into memory before compression starts.
const exportPageSize = 500

// handleDebugExport streams every history record as xz-compressed NDJSON
// (one JSON object per line), read-only and unauthenticated like the rest
// of this package's narrow surface.
func (s *Server) handleDebugExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.HistoryRepo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history repository not available"})
		return
	}

	w.Header().Set("Content-Type", "application/x-xz")
	w.Header().Set("Content-Disposition", `attachment; filename="history-export.ndjson.xz"`)
	w.WriteHeader(http.StatusOK)

	xw, err := xz.NewWriter(w)
	if err != nil {
		s.deps.Logger.Error("debug/export: creating xz writer failed", "error", err)
		return
	}
	defer xw.Close()

	ctx := r.Context()
	enc := json.NewEncoder(xw)

	for offset := 0; ; offset += exportPageSize {
		records, total, err := s.deps.HistoryRepo.List(ctx, offset, exportPageSize)
		if err != nil {
			s.deps.Logger.Error("debug/export: listing history failed", "offset", offset, "error", err)
			return
		}
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				s.deps.Logger.Error("debug/export: encoding history record failed", "error", err)
				return
			}
		}
		if int64(offset+len(records)) >= total || len(records) == 0 {
			return
		}
	}
}
