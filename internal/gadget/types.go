package gadget

import (
	"fmt"
	"time"
)

// Status is the lifecycle stage of a gadget.
type Status string

// Lifecycle stages. Decommissioned and Destroyed are terminal for
// ordinary status updates.
const (
	StatusAvailable      Status = "Available"
	StatusDecommissioned Status = "Decommissioned"
	StatusDestroyed      Status = "Destroyed"
)

// AllStatuses lists every valid status in lifecycle order.
var AllStatuses = []Status{StatusAvailable, StatusDecommissioned, StatusDestroyed}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusDecommissioned, StatusDestroyed:
		return true
	}
	return false
}

// IsTerminal reports whether a gadget in this status rejects status updates.
func (s Status) IsTerminal() bool {
	return s == StatusDecommissioned || s == StatusDestroyed
}

// Code returns the numeric form used for metrics: 0 Available,
// 1 Decommissioned, 2 Destroyed, -1 for anything else.
func (s Status) Code() int {
	for i, st := range AllStatuses {
		if st == s {
			return i
		}
	}
	return -1
}

// ParseStatus converts a raw string to a Status.
// Returns ErrInvalidStatus if the value is not a known status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// Gadget is one inventory item.
type Gadget struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Status           Status     `json:"status"`
	DecommissionedAt *time.Time `json:"decommissionedAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Listed is a gadget as returned by a listing, carrying a freshly rolled
// mission probability that is never stored.
type Listed struct {
	Gadget
	MissionProbability string `json:"missionProbability"`
}

// Outcome is the result of a lifecycle operation that completed without
// error. No-op outcomes carry a message and the unmodified gadget.
type Outcome struct {
	Message string
	Gadget  *Gadget
	Changed bool

	// ConfirmationCode is only set by SelfDestruct.
	ConfirmationCode string
}
