package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-iobridge/internal/audit"
)

// recordAudit stores a command record. Failures are logged and never
// affect the response.
func (s *Server) recordAudit(r *http.Request, e audit.Entry) {
	if s.audit == nil {
		return
	}
	e.Source = audit.SourceAPI
	e.RequestID = requestIDFrom(r.Context())
	e.Subject, _ = r.Context().Value(ctxKeySubject).(string) //nolint:errcheck // absent when auth is disabled

	if err := s.audit.Create(r.Context(), &e); err != nil {
		s.logger.Warn("recording command audit failed",
			"action", e.Action,
			"request_id", e.RequestID,
			"error", err,
		)
	}
}

// handleListAudit returns recorded commands, most recent first.
// Query parameters: action, device_id, source, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeNotFound(w, "command audit is not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		DeviceID: q.Get("device_id"),
		Source:   q.Get("source"),
	}
	var err error
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing command audit failed", "error", err)
		writeInternalError(w, "failed to list command audit")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
