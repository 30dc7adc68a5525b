package topology

import "github.com/onap/policy-clamp-acm/internal/model"

// Target returns the terminal states the composition's in-flight transition
// settles in.
func Target(ac *model.AutomationComposition) model.Transition {
	return model.Transition{
		Deploy: model.DeployCompleted(ac.DeployState),
		Lock:   model.LockCompleted(ac.DeployState, ac.LockState),
		Sub:    model.SubStateNone,
	}
}

// ElementDone reports whether e has reached the terminal state of the
// composition's in-flight transition.
func ElementDone(ac *model.AutomationComposition, e model.Element) bool {
	t := Target(ac)
	sub := e.SubState
	if sub == "" {
		sub = model.SubStateNone
	}
	return e.DeployState == t.Deploy && e.LockState == t.Lock && sub == t.Sub
}

// ElementPartitionDone reports whether e is finished with the partition at
// index. For staged operations an element that moved past the stage also
// counts as finished.
func ElementPartitionDone(ac *model.AutomationComposition, e model.Element, index int) bool {
	if ElementDone(ac, e) {
		return true
	}
	if ac.CurrentOrder().IsStaged() && e.Stage != nil && *e.Stage > index {
		return true
	}
	return false
}

// PartitionDone reports whether every element of p is finished in ac.
// Elements no longer in the composition count as finished.
func PartitionDone(ac *model.AutomationComposition, p Partition) bool {
	for _, id := range p.ElementIDs {
		e := ac.Element(id)
		if e == nil {
			continue
		}
		if !ElementPartitionDone(ac, *e, p.Index) {
			return false
		}
	}
	return true
}

// Pending returns the ids of elements of p that are not finished in ac.
func Pending(ac *model.AutomationComposition, p Partition) []string {
	var ids []string
	for _, id := range p.ElementIDs {
		e := ac.Element(id)
		if e != nil && !ElementPartitionDone(ac, *e, p.Index) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Reachable reports whether element e of the in-flight composition ac may
// report (deploy, lock). Besides its current states an element may report
// the transitional or terminal states of the transition, or fall back to the
// states the transition started from.
func Reachable(ac *model.AutomationComposition, e model.Element, deploy model.DeployState, lock model.LockState) bool {
	if !ac.InTransition() {
		return deploy == e.DeployState && lock == e.LockState
	}
	t := Target(ac)
	deployOK := deploy == e.DeployState || deploy == ac.DeployState ||
		deploy == t.Deploy || deploy == model.DeployOrigin(ac.DeployState)
	lockOK := lock == e.LockState || lock == ac.LockState ||
		lock == t.Lock || lock == model.LockOrigin(ac.DeployState, ac.LockState)
	return deployOK && lockOK
}
