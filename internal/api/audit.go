package api

import (
	"net/http"
	"strconv"

	"github.com/imf-phoenix/gadgetd/internal/audit"
)

// recordAudit appends an entry to the audit trail. Failures are logged and
// never change the response the caller already earned.
func (s *Server) recordAudit(r *http.Request, entry audit.AuditLog) {
	if s.audit == nil {
		return
	}
	if entry.UserID == "" {
		entry.UserID = userIDFromContext(r.Context())
	}
	entry.Source = audit.SourceAPI

	if err := s.audit.Create(r.Context(), &entry); err != nil {
		s.logger.Warn("audit log write failed",
			"error", err,
			"action", entry.Action,
			"entity_id", entry.EntityID,
			"request_id", requestID(r),
		)
	}
}

// handleListAuditLogs returns the audit trail, newest first.
//
// Query parameters: action, entity_type, entity_id, limit, offset.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		fail(w, http.StatusServiceUnavailable, "audit trail is not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}

	var ok bool
	if filter.Limit, ok = intParam(q.Get("limit")); !ok {
		fail(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if filter.Offset, ok = intParam(q.Get("offset")); !ok {
		fail(w, http.StatusBadRequest, "offset must be an integer")
		return
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit logs failed",
			"error", err,
			"request_id", requestID(r),
		)
		fail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respond(w, http.StatusOK, result)
}

// intParam parses an optional integer query parameter. Empty means zero.
func intParam(raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
