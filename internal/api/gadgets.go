package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/imf-phoenix/gadgetd/internal/audit"
	"github.com/imf-phoenix/gadgetd/internal/gadget"
)

// updateGadgetRequest is the request body for PATCH /gadgets/{id}.
type updateGadgetRequest struct {
	Status string `json:"status"`
}

// outcomeResponse wraps a lifecycle message with the gadget it concerns.
type outcomeResponse struct {
	Message string         `json:"message"`
	Gadget  *gadget.Gadget `json:"gadget,omitempty"`
}

// selfDestructResponse is the response body for POST /gadgets/{id}/self-destruct.
type selfDestructResponse struct {
	Message          string `json:"message"`
	ConfirmationCode string `json:"confirmationCode,omitempty"`
}

// handleListGadgets returns every gadget, optionally filtered by ?status=.
// Each item carries a freshly generated missionProbability.
func (s *Server) handleListGadgets(w http.ResponseWriter, r *http.Request) {
	var filter *gadget.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := gadget.Status(raw)
		filter = &st
	}

	gadgets, err := s.gadgets.List(r.Context(), filter)
	if err != nil {
		s.writeGadgetError(w, r, err)
		return
	}

	respond(w, http.StatusOK, gadgets)
}

// handleCreateGadget adds a new gadget under a generated codename.
func (s *Server) handleCreateGadget(w http.ResponseWriter, r *http.Request) {
	g, err := s.gadgets.Create(r.Context())
	if err != nil {
		s.writeGadgetError(w, r, err)
		return
	}

	s.recordAudit(r, audit.AuditLog{
		Action:     audit.ActionCreate,
		EntityType: audit.EntityGadget,
		EntityID:   g.ID,
		Details:    map[string]any{"name": g.Name},
	})
	respond(w, http.StatusCreated, g)
}

// handleGetGadget returns one gadget.
func (s *Server) handleGetGadget(w http.ResponseWriter, r *http.Request) {
	g, err := s.gadgets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeGadgetError(w, r, err)
		return
	}

	respond(w, http.StatusOK, g)
}

// handleUpdateGadget applies an ordinary status change.
// An empty body or missing status keeps the current status.
func (s *Server) handleUpdateGadget(w http.ResponseWriter, r *http.Request) {
	var req updateGadgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	out, err := s.gadgets.UpdateStatus(r.Context(), chi.URLParam(r, "id"), gadget.Status(req.Status))
	if err != nil {
		s.writeGadgetError(w, r, err)
		return
	}

	if out.Changed {
		s.recordAudit(r, audit.AuditLog{
			Action:     audit.ActionUpdateStatus,
			EntityType: audit.EntityGadget,
			EntityID:   out.Gadget.ID,
			Details:    map[string]any{"status": string(out.Gadget.Status)},
		})
		respond(w, http.StatusOK, out.Gadget)
		return
	}
	respond(w, http.StatusOK, outcomeResponse{Message: out.Message, Gadget: out.Gadget})
}

// handleDecommissionGadget retires a gadget.
func (s *Server) handleDecommissionGadget(w http.ResponseWriter, r *http.Request) {
	out, err := s.gadgets.Decommission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeGadgetError(w, r, err)
		return
	}

	resp := outcomeResponse{Message: out.Message}
	if out.Changed {
		resp.Gadget = out.Gadget
		s.recordAudit(r, audit.AuditLog{
			Action:     audit.ActionDecommission,
			EntityType: audit.EntityGadget,
			EntityID:   out.Gadget.ID,
		})
	}
	respond(w, http.StatusOK, resp)
}

// handleSelfDestruct starts the delayed destruction of a gadget.
func (s *Server) handleSelfDestruct(w http.ResponseWriter, r *http.Request) {
	out, err := s.gadgets.SelfDestruct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeGadgetError(w, r, err)
		return
	}

	if out.ConfirmationCode != "" {
		s.recordAudit(r, audit.AuditLog{
			Action:     audit.ActionSelfDestruct,
			EntityType: audit.EntityGadget,
			EntityID:   out.Gadget.ID,
			Details:    map[string]any{"confirmationCode": out.ConfirmationCode},
		})
	}
	respond(w, http.StatusOK, selfDestructResponse{
		Message:          out.Message,
		ConfirmationCode: out.ConfirmationCode,
	})
}

// writeGadgetError maps lifecycle errors to HTTP responses.
func (s *Server) writeGadgetError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		transition *gadget.TransitionError
		terminal   *gadget.TerminalError
	)

	switch {
	case errors.Is(err, gadget.ErrGadgetNotFound):
		fail(w, http.StatusNotFound, "Gadget not found")
	case errors.As(err, &transition):
		fail(w, http.StatusForbidden, transition.Error())
	case errors.As(err, &terminal):
		failWith(w, Error{
			Status:        http.StatusForbidden,
			Message:       terminal.Error(),
			CurrentStatus: string(terminal.Current),
		})
	case errors.Is(err, gadget.ErrInvalidStatus):
		invalid(w, invalidStatusMessage())
	default:
		s.logger.Error("gadget operation failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID(r),
		)
		fail(w, http.StatusInternalServerError, "internal server error")
	}
}

func invalidStatusMessage() string {
	names := make([]string, len(gadget.AllStatuses))
	for i, st := range gadget.AllStatuses {
		names[i] = string(st)
	}
	return "status must be one of " + strings.Join(names, ", ")
}
