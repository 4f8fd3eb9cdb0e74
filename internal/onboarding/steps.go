// Package onboarding models the four-step merchant activation flow and the
// gating rule that keeps later steps locked until earlier ones are done.
package onboarding

import "slices"

// Step numbers. The flow is strictly ordered.
const (
	StepOrganization  = 1
	StepProfileReview = 2
	StepKYC           = 3
	StepPayout        = 4

	FirstStep = StepOrganization
	LastStep  = StepPayout
)

// Status is the server-reported progress. CompletedSteps is the
// authoritative record; CurrentStep is a hint for where to resume.
type Status struct {
	CurrentStep    int   `json:"current_step"`
	CompletedSteps []int `json:"completed_steps"`
	Complete       bool  `json:"complete"`
}

// Completed reports whether the given step is recorded as done.
func (s Status) Completed(step int) bool {
	return slices.Contains(s.CompletedSteps, step)
}

// CanAccessStep reports whether the user may open the given step. A step is
// reachable when its predecessor is completed or the server already places
// the user at or past it. Step one is always reachable; out-of-range steps
// never are.
func (s Status) CanAccessStep(step int) bool {
	if step < FirstStep || step > LastStep {
		return false
	}
	if step == FirstStep {
		return true
	}
	return s.Completed(step-1) || s.CurrentStep >= step
}

// NextStep returns the first incomplete step, or LastStep when everything
// up to it is done.
func (s Status) NextStep() int {
	for step := FirstStep; step <= LastStep; step++ {
		if !s.Completed(step) {
			return step
		}
	}
	return LastStep
}
