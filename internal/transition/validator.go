package transition

import (
	"fmt"
	"time"

	"github.com/onap/policy-clamp-acm/internal/model"
	"github.com/onap/policy-clamp-acm/internal/topology"
)

// retryFrom lists the in-flight orders each order may take over once that
// transition has FAILED or TIMED OUT.
var retryFrom = map[model.Order][]model.Order{
	model.OrderDeploy:          {model.OrderDeploy, model.OrderUndeploy},
	model.OrderUndeploy:        {model.OrderDeploy, model.OrderUndeploy, model.OrderUpdate, model.OrderMigrate, model.OrderMigrationRevert},
	model.OrderLock:            {model.OrderLock, model.OrderUnlock},
	model.OrderUnlock:          {model.OrderLock, model.OrderUnlock},
	model.OrderUpdate:          {model.OrderUpdate},
	model.OrderMigrate:         {model.OrderMigrate},
	model.OrderMigratePrecheck: {model.OrderMigratePrecheck},
	model.OrderPrepare:         {model.OrderPrepare},
	model.OrderReview:          {model.OrderReview},
	model.OrderDelete:          {model.OrderDelete},
	model.OrderMigrationRevert: {model.OrderMigrate, model.OrderMigrationRevert},
}

// Validate decides whether order is legal for the composition's current
// state and returns the transitional states to enter.
//
// Only one transition may be in flight per composition. An in-flight
// transition can be taken over only after it has FAILED or TIMED OUT, and
// only by the orders listed in retryFrom.
//
// Returns:
//   - model.ErrInvalidOrder: order is unspecified or unknown
//   - model.ErrInvalidState: order is not legal from the current state
func Validate(ac *model.AutomationComposition, order model.Order) (model.Transition, error) {
	target, ok := order.Transition()
	if !ok {
		return model.Transition{}, fmt.Errorf("%w: %q", model.ErrInvalidOrder, order)
	}

	if ac.InTransition() {
		current := ac.CurrentOrder()
		if !ac.StateChangeResult.IsError() {
			return model.Transition{}, fmt.Errorf("%w: %s already in progress for %s",
				model.ErrInvalidState, current, ac.InstanceID)
		}
		for _, o := range retryFrom[order] {
			if o == current {
				return target, nil
			}
		}
		return model.Transition{}, fmt.Errorf("%w: %s not allowed while %s is %s",
			model.ErrInvalidState, order, current, ac.StateChangeResult)
	}

	if err := checkIdle(ac, order); err != nil {
		return model.Transition{}, err
	}
	return target, nil
}

// checkIdle applies the legal edges from a terminal state.
func checkIdle(ac *model.AutomationComposition, order model.Order) error {
	deployed := ac.DeployState == model.DeployStateDeployed
	undeployed := ac.DeployState == model.DeployStateUndeployed
	locked := ac.LockState == model.LockStateLocked

	var legal bool
	switch order {
	case model.OrderDeploy, model.OrderPrepare, model.OrderDelete:
		legal = undeployed
	case model.OrderLock:
		legal = deployed && ac.LockState == model.LockStateUnlocked
	case model.OrderUnlock, model.OrderUndeploy, model.OrderUpdate,
		model.OrderMigrate, model.OrderMigratePrecheck, model.OrderReview:
		legal = deployed && locked
	case model.OrderMigrationRevert:
		legal = false
	}
	if legal {
		return nil
	}

	if (order == model.OrderLock || order == model.OrderUnlock) && !deployed {
		return fmt.Errorf("%w: %s requires %s, composition %s is %s",
			model.ErrInvalidState, order, model.DeployStateDeployed, ac.InstanceID, ac.DeployState)
	}
	return fmt.Errorf("%w: %s not allowed from %s/%s",
		model.ErrInvalidState, order, ac.DeployState, ac.LockState)
}

// Apply cascades an accepted transition onto the composition and every
// element. Terminal states are left to the status aggregator.
//
// For staged orders the composition phase and each element's stage are set
// to the first stage; otherwise the phase is the first start phase and
// element stages are cleared. tmpl is the template the transition runs
// against (the target template for a migration).
func Apply(ac *model.AutomationComposition, target model.Transition, tmpl model.ServiceTemplate, now time.Time) {
	ac.DeployState = target.Deploy
	ac.LockState = target.Lock
	ac.SubState = target.Sub
	ac.StateChangeResult = model.StateChangeResultNoError
	ac.LastMsg = now

	for i := range ac.Elements {
		e := &ac.Elements[i]
		e.DeployState = target.Deploy
		e.LockState = target.Lock
		e.SubState = target.Sub
		e.Message = ""
		e.Stage = nil
	}

	if ac.CurrentOrder().IsStaged() {
		first := topology.FirstStage(ac, tmpl)
		ac.Phase = model.IntPtr(first)
		for i := range ac.Elements {
			ac.Elements[i].Stage = model.IntPtr(first)
		}
		return
	}
	ac.Phase = model.IntPtr(topology.FirstStartPhase(ac, tmpl))
}

// Accept validates order and, when legal, applies it in place.
// On rejection ac is left untouched.
func Accept(ac *model.AutomationComposition, order model.Order, tmpl model.ServiceTemplate, now time.Time) error {
	target, err := Validate(ac, order)
	if err != nil {
		return err
	}
	Apply(ac, target, tmpl, now)
	return nil
}
