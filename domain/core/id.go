package core

import (
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier.
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered,
// sortable generation, falling back to v4 if v7 fails.
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

func (id ID) String() string { return string(id) }

func (id ID) IsEmpty() bool { return id == "" }

// Domain-specific ID types. EventID is supplied by the caller on the input
// envelope (spec §6); the rest are minted internally for audit-trail and
// persistence identity.
type (
	EventID   ID
	StationID ID
	AuditID   ID
)

// ParseEventID validates a caller-supplied event identifier.
func ParseEventID(s string) (EventID, error) {
	if strings.TrimSpace(s) == "" {
		return "", errEmptyID("event")
	}
	return EventID(s), nil
}

// NewAuditID mints an internal identifier for one HypoAudit row.
func NewAuditID() AuditID { return AuditID(NewID()) }

func (id EventID) String() string   { return string(id) }
func (id StationID) String() string { return string(id) }
func (id AuditID) String() string   { return string(id) }
