package ports

import (
	"context"

	"hypolocator/domain/locator"
)

// AuditStore persists a location run's audit trail for offline review
// (spec A5). It is a pure side observer: the engine's iteration control
// never depends on it, and a nil store is always a valid no-op choice at
// the call site.
type AuditStore interface {
	SaveRun(ctx context.Context, eventID string, trail []locator.HypoAudit, finalStatus locator.Status) error
}
