// Package rules resolves declared intents into checked outcomes. A
// resolution moves through a fixed phase order: an intent is declared, a
// d20 check is rolled against a difficulty class, and the outcome is turned
// into concrete effects. All randomness flows through the injected source,
// so a recorded run replays to the identical outcome.
package rules

// Outcome grades a resolved check.
type Outcome string

const (
	OutcomeCriticalSuccess Outcome = "critical_success"
	OutcomeSuccess         Outcome = "success"
	OutcomePartialSuccess  Outcome = "partial_success"
	OutcomeFailure         Outcome = "failure"
	OutcomeCriticalFailure Outcome = "critical_failure"
)

// criticalMargin is how far past the difficulty class a total must land to
// upgrade a success to a critical. partialMargin is how far short of it a
// total may fall and still count as partial.
const (
	criticalMargin = 10
	partialMargin  = 5
)

// DetermineOutcome grades a d20 roll plus modifier against a difficulty
// class. Natural 1 and natural 20 override the arithmetic.
func DetermineOutcome(roll, modifier, dc int) Outcome {
	if roll == 1 {
		return OutcomeCriticalFailure
	}
	if roll == 20 {
		return OutcomeCriticalSuccess
	}
	total := roll + modifier
	switch {
	case total >= dc+criticalMargin:
		return OutcomeCriticalSuccess
	case total >= dc:
		return OutcomeSuccess
	case total >= dc-partialMargin:
		return OutcomePartialSuccess
	default:
		return OutcomeFailure
	}
}

// Succeeded reports whether the outcome counts as at least a partial win.
func (o Outcome) Succeeded() bool {
	switch o {
	case OutcomeCriticalSuccess, OutcomeSuccess, OutcomePartialSuccess:
		return true
	default:
		return false
	}
}
