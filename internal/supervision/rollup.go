package supervision

import (
	"github.com/onap/policy-clamp-acm/internal/model"
	"github.com/onap/policy-clamp-acm/internal/topology"
)

// RollupResult says what Rollup did to a composition.
type RollupResult int

const (
	// RollupIdle means nothing was in flight.
	RollupIdle RollupResult = iota
	// RollupPending means some element has not finished.
	RollupPending
	// RollupCompleted means the composition moved to its terminal states.
	RollupCompleted
	// RollupDeleted means a delete finished; the composition must be removed.
	RollupDeleted
)

func (r RollupResult) String() string {
	switch r {
	case RollupIdle:
		return "idle"
	case RollupPending:
		return "pending"
	case RollupCompleted:
		return "completed"
	case RollupDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Rollup completes the composition's in-flight transition once every
// element reached the terminal state of that transition.
//
// On completion the composition takes the terminal states, SubState resets
// to NONE, element stages and the phase are cleared and the result becomes
// NO_ERROR. A finished migration switches CompositionID to the target; a
// finished revert or precheck drops the target.
//
// Rollup only mutates ac. It is a pure function of the snapshot.
func Rollup(ac *model.AutomationComposition) RollupResult {
	if !ac.InTransition() {
		return RollupIdle
	}
	for _, e := range ac.Elements {
		if !topology.ElementDone(ac, e) {
			return RollupPending
		}
	}

	order := ac.CurrentOrder()
	target := topology.Target(ac)

	ac.DeployState = target.Deploy
	ac.LockState = target.Lock
	ac.SubState = target.Sub
	ac.StateChangeResult = model.StateChangeResultNoError
	ac.Phase = nil
	for i := range ac.Elements {
		ac.Elements[i].SubState = model.SubStateNone
		ac.Elements[i].Stage = nil
	}

	switch order {
	case model.OrderMigrate:
		if ac.CompositionTargetID != "" {
			ac.CompositionID = ac.CompositionTargetID
		}
		ac.CompositionTargetID = ""
	case model.OrderMigrationRevert, model.OrderMigratePrecheck:
		ac.CompositionTargetID = ""
	}

	if target.Deploy == model.DeployStateDeleted {
		return RollupDeleted
	}
	return RollupCompleted
}
