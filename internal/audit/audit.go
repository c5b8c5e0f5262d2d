// Package audit records who did what to which entity.
//
// Every successful mutating API call writes one entry: signups, logins,
// gadget creation, status updates, decommissions and self-destruct
// requests. Entries are append-only and listed newest first.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the audit trail.
const (
	ActionSignup       = "signup"
	ActionLogin        = "login"
	ActionCreate       = "create"
	ActionUpdateStatus = "update_status"
	ActionDecommission = "decommission"
	ActionSelfDestruct = "self_destruct"
)

// Entity types recorded in the audit trail.
const (
	EntityUser   = "user"
	EntityGadget = "gadget"
)

// SourceAPI marks entries written by the HTTP API.
const SourceAPI = "api"

// Pagination bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// AuditLog represents a single audit trail entry.
type AuditLog struct { //nolint:revive // audit.AuditLog is clearer than audit.Log in calling code
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId,omitempty"`
	UserID     string         `json:"userId,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Filter controls which audit logs to return.
type Filter struct {
	Action     string // optional: signup, login, create, update_status, ...
	EntityType string // optional: user or gadget
	EntityID   string // optional: a specific user or gadget ID
	Limit      int    // default 50, max 200
	Offset     int
}

// normalize clamps pagination to the supported range.
func (f Filter) normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// ListResult contains the paginated audit log results.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Repository defines the interface for audit log operations.
type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// prepare fills generated fields and encodes details for storage.
func prepare(log *AuditLog) (*string, error) {
	if log.ID == "" {
		log.ID = "aud-" + uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if log.Source == "" {
		log.Source = SourceAPI
	}
	if log.Details == nil {
		return nil, nil //nolint:nilnil // absent details are stored as NULL
	}

	b, err := json.Marshal(log.Details)
	if err != nil {
		return nil, fmt.Errorf("marshalling audit details: %w", err)
	}
	s := string(b)
	return &s, nil
}

// decodeDetails parses stored details, ignoring rows with malformed JSON.
func decodeDetails(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var details map[string]any
	if json.Unmarshal([]byte(raw), &details) != nil {
		return nil
	}
	return details
}

// nullableString returns nil for empty strings so they are stored as NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
