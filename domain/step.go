package domain

import "fmt"

// Step is one stage of the checkout sequence. Steps are totally ordered;
// comparing two steps with < tells which one comes first.
type Step int

const (
	StepNone     Step = 0
	StepShipping Step = 1
	StepBilling  Step = 2
	StepConfirm  Step = 3
	StepOrder    Step = 4
)

var stepLabels = map[Step]string{
	StepNone:     "",
	StepShipping: "shipping",
	StepBilling:  "billing",
	StepConfirm:  "confirmation",
	StepOrder:    "order",
}

// Next returns the step that follows s. StepOrder has no successor.
func (s Step) Next() Step {
	if s >= StepOrder {
		return StepOrder
	}
	return s + 1
}

func (s Step) Valid() bool {
	return s >= StepShipping && s <= StepOrder
}

// IsTerminal reports whether s is the last step before completion.
func (s Step) IsTerminal() bool {
	return s == StepOrder
}

// String representation (for logging and view labels)
func (s Step) String() string {
	if label, ok := stepLabels[s]; ok {
		return label
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ParseStep maps a view label back to a step.
func ParseStep(label string) (Step, error) {
	for step, l := range stepLabels {
		if step != StepNone && l == label {
			return step, nil
		}
	}
	return StepNone, fmt.Errorf("unknown checkout step %q", label)
}

// AddressRole tells which cart reference an address selection targets.
type AddressRole string

const (
	RoleShipping AddressRole = "shipping"
	RoleBilling  AddressRole = "billing"
)

// Step returns the checkout step that owns the role.
func (r AddressRole) Step() Step {
	switch r {
	case RoleShipping:
		return StepShipping
	case RoleBilling:
		return StepBilling
	default:
		return StepNone
	}
}
