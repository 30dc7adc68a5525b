package topology

import (
	"sort"

	"github.com/onap/policy-clamp-acm/internal/model"
)

// Partition is one ordered step of a transition: the elements that act in a
// given start phase or stage.
type Partition struct {
	// Index is the start phase or stage number.
	Index int
	// ElementIDs keeps composition order.
	ElementIDs []string
}

// Plan partitions the composition's elements for its in-flight transition.
//
// Start-phase partitions run ascending for bring-up (deploy, unlock) and
// descending for tear-down (undeploy, lock, delete). Staged operations run
// stages ascending, and an element appears in every stage of its set.
// Update and review act on all elements at once. A composition with nothing
// in flight has no plan.
func Plan(ac *model.AutomationComposition, tmpl model.ServiceTemplate) []Partition {
	order := ac.CurrentOrder()
	switch {
	case order == model.OrderNone:
		return nil
	case order == model.OrderUpdate || order == model.OrderReview:
		return []Partition{{Index: 0, ElementIDs: ac.ElementIDs()}}
	case order.IsStaged():
		return stagePlan(ac, tmpl)
	default:
		return phasePlan(ac, tmpl)
	}
}

func phasePlan(ac *model.AutomationComposition, tmpl model.ServiceTemplate) []Partition {
	byPhase := make(map[int][]string)
	for _, e := range ac.Elements {
		p := StartPhase(e, tmpl)
		byPhase[p] = append(byPhase[p], e.ID)
	}

	forward := IsForward(ac.DeployState, ac.LockState)
	return collect(byPhase, forward)
}

func stagePlan(ac *model.AutomationComposition, tmpl model.ServiceTemplate) []Partition {
	op := StageOperation(ac.DeployState, ac.SubState)
	byStage := make(map[int][]string)
	for _, e := range ac.Elements {
		for _, s := range StageSet(e, tmpl, op) {
			byStage[s] = append(byStage[s], e.ID)
		}
	}
	return collect(byStage, true)
}

func collect(groups map[int][]string, ascending bool) []Partition {
	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	if ascending {
		sort.Ints(keys)
	} else {
		sort.Sort(sort.Reverse(sort.IntSlice(keys)))
	}

	parts := make([]Partition, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, Partition{Index: k, ElementIDs: groups[k]})
	}
	return parts
}

// Contains reports whether id is part of the partition.
func (p Partition) Contains(id string) bool {
	for _, e := range p.ElementIDs {
		if e == id {
			return true
		}
	}
	return false
}
