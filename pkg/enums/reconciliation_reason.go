package enums

import "fmt"

// ReconciliationReason explains why a seat release could not be completed
// synchronously and was handed to the background reconciler.
type ReconciliationReason string

const (
	// ReconciliationReasonCompensation marks capacity held by a create attempt
	// whose ledger write failed and whose compensating release also failed.
	ReconciliationReasonCompensation ReconciliationReason = "compensation"
	// ReconciliationReasonCancellation marks a cancelled reservation whose
	// release has not landed yet.
	ReconciliationReasonCancellation ReconciliationReason = "cancellation"
)

var validReconciliationReasons = []ReconciliationReason{
	ReconciliationReasonCompensation,
	ReconciliationReasonCancellation,
}

// String implements fmt.Stringer.
func (r ReconciliationReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReconciliationReason.
func (r ReconciliationReason) IsValid() bool {
	for _, candidate := range validReconciliationReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReconciliationReason converts raw input into a ReconciliationReason.
func ParseReconciliationReason(value string) (ReconciliationReason, error) {
	for _, candidate := range validReconciliationReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reconciliation reason %q", value)
}
