package locator

import "hypolocator/domain/core"

// HypoAudit is an immutable snapshot of the hypocenter plus run metadata
// (spec §3). It serves double duty: a human-readable log trail, and the
// fall-back state the stepper restores from when step damping fails
// (spec §4.7 step 7).
type HypoAudit struct {
	ID core.AuditID

	Stage     int
	Iteration int
	NUsed     int
	Status    Status

	Hypocenter Hypocenter
}

// NewHypoAudit snapshots a hypocenter with its run context.
func NewHypoAudit(stage, iteration, nUsed int, status Status, h Hypocenter) HypoAudit {
	return HypoAudit{
		ID:         core.NewAuditID(),
		Stage:      stage,
		Iteration:  iteration,
		NUsed:      nUsed,
		Status:     status,
		Hypocenter: h,
	}
}
