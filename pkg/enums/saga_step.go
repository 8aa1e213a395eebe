package enums

import "fmt"

// SagaStep records how far a create-reservation attempt progressed, so a crash
// between the inventory decrement and the ledger commit is detectable.
type SagaStep string

const (
	SagaStepCapacityReserved   SagaStep = "capacity_reserved"
	SagaStepLedgerCommitted    SagaStep = "ledger_committed"
	SagaStepCompensationIssued SagaStep = "compensation_issued"
)

var validSagaSteps = []SagaStep{
	SagaStepCapacityReserved,
	SagaStepLedgerCommitted,
	SagaStepCompensationIssued,
}

// String implements fmt.Stringer.
func (s SagaStep) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SagaStep.
func (s SagaStep) IsValid() bool {
	for _, candidate := range validSagaSteps {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSagaStep converts raw input into a SagaStep.
func ParseSagaStep(value string) (SagaStep, error) {
	for _, candidate := range validSagaSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid saga step %q", value)
}
