package topology

import (
	"sort"

	"github.com/onap/policy-clamp-acm/internal/model"
)

// Node template property names and stage operation keys.
const (
	PropStartPhase = "startPhase"
	PropStage      = "stage"

	OpMigrate = "migrate"
	OpPrepare = "prepare"

	// maxStartPhase seeds the minimum search, matching the upper bound that
	// templates may use for start phases.
	maxStartPhase = 1000
)

// IsForward reports whether the composition is being brought up. Bring-up
// runs phases 0→N, tear-down runs N→0.
func IsForward(deploy model.DeployState, lock model.LockState) bool {
	return deploy == model.DeployStateDeploying || lock == model.LockStateUnlocking
}

// StartPhase returns the start phase of one element. Elements whose node
// template is missing, whose version differs from the template's or whose
// node has no startPhase property are in phase 0.
func StartPhase(e model.Element, tmpl model.ServiceTemplate) int {
	node, ok := tmpl.Node(e.Definition.Name)
	if !ok || node.Version != e.Definition.Version {
		return 0
	}
	phase, ok := toInt(node.Properties[PropStartPhase])
	if !ok {
		return 0
	}
	return phase
}

// FirstStartPhase returns the phase a transition starts from: the minimum
// start phase across elements when deploying or unlocking, the maximum
// otherwise. Every element counts, including those defaulted to phase 0.
//
// The result is recomputed from the snapshot on every call.
func FirstStartPhase(ac *model.AutomationComposition, tmpl model.ServiceTemplate) int {
	if len(ac.Elements) == 0 {
		return 0
	}
	minPhase, maxPhase := maxStartPhase, 0
	for _, e := range ac.Elements {
		p := StartPhase(e, tmpl)
		minPhase = min(minPhase, p)
		maxPhase = max(maxPhase, p)
	}
	if IsForward(ac.DeployState, ac.LockState) {
		return minPhase
	}
	return maxPhase
}

// StageOperation returns the stage key used for the composition's current
// staged transition: "migrate" for migration, revert and precheck,
// "prepare" otherwise.
func StageOperation(deploy model.DeployState, sub model.SubState) string {
	if deploy == model.DeployStateMigrating ||
		deploy == model.DeployStateMigrationReverting ||
		sub == model.SubStateMigrationPrechecking {
		return OpMigrate
	}
	return OpPrepare
}

// StageSet returns the sorted stages an element takes part in for op.
// Absent definitions yield {0}.
func StageSet(e model.Element, tmpl model.ServiceTemplate, op string) []int {
	node, ok := tmpl.Node(e.Definition.Name)
	if !ok {
		return []int{0}
	}
	return stageSet(node.Properties, op)
}

// FirstStage returns the minimum stage across the union of all elements'
// stage sets for the composition's current staged operation.
func FirstStage(ac *model.AutomationComposition, tmpl model.ServiceTemplate) int {
	op := StageOperation(ac.DeployState, ac.SubState)
	first, found := 0, false
	for _, e := range ac.Elements {
		s := StageSet(e, tmpl, op)[0]
		if !found || s < first {
			first, found = s, true
		}
	}
	return first
}

// LastStage returns the maximum stage across all elements for op.
func LastStage(ac *model.AutomationComposition, tmpl model.ServiceTemplate, op string) int {
	last := 0
	for _, e := range ac.Elements {
		set := StageSet(e, tmpl, op)
		last = max(last, set[len(set)-1])
	}
	return last
}

// stageSet reads the nested stage property. For migrate a bare list is also
// accepted; prepare requires the keyed form.
func stageSet(props map[string]any, op string) []int {
	raw := props[PropStage]
	if keyed, ok := raw.(map[string]any); ok {
		raw = keyed[op]
	} else if op != OpMigrate {
		raw = nil
	}

	var values []any
	switch v := raw.(type) {
	case []any:
		values = v
	case []int:
		for _, i := range v {
			values = append(values, i)
		}
	}

	seen := make(map[int]struct{}, len(values))
	set := make([]int, 0, len(values))
	for _, v := range values {
		n, ok := toInt(v)
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		set = append(set, n)
	}
	if len(set) == 0 {
		return []int{0}
	}
	sort.Ints(set)
	return set
}
