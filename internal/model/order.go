package model

import "strings"

// Order is the single lifecycle command enum. Every externally requested
// change of a composition is expressed as one Order, and Transition maps it
// to the transitional states the composition enters.
type Order string

const (
	OrderNone            Order = ""
	OrderDeploy          Order = "DEPLOY"
	OrderUndeploy        Order = "UNDEPLOY"
	OrderLock            Order = "LOCK"
	OrderUnlock          Order = "UNLOCK"
	OrderUpdate          Order = "UPDATE"
	OrderMigrate         Order = "MIGRATE"
	OrderMigratePrecheck Order = "MIGRATE_PRECHECK"
	OrderPrepare         Order = "PREPARE"
	OrderReview          Order = "REVIEW"
	OrderDelete          Order = "DELETE"
	OrderMigrationRevert Order = "MIGRATION_REVERT"
)

// ParseOrder converts a case-insensitive string into an Order.
// Unknown values return OrderNone and false.
func ParseOrder(s string) (Order, bool) {
	o := Order(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := transitions[o]; ok {
		return o, true
	}
	return OrderNone, false
}

// Transition is the triple of states a composition and its elements enter
// when an order is accepted.
type Transition struct {
	Deploy DeployState
	Lock   LockState
	Sub    SubState
}

var transitions = map[Order]Transition{
	OrderDeploy:          {DeployStateDeploying, LockStateNone, SubStateNone},
	OrderUndeploy:        {DeployStateUndeploying, LockStateNone, SubStateNone},
	OrderLock:            {DeployStateDeployed, LockStateLocking, SubStateNone},
	OrderUnlock:          {DeployStateDeployed, LockStateUnlocking, SubStateNone},
	OrderUpdate:          {DeployStateUpdating, LockStateLocked, SubStateNone},
	OrderMigrate:         {DeployStateMigrating, LockStateLocked, SubStateNone},
	OrderMigratePrecheck: {DeployStateDeployed, LockStateLocked, SubStateMigrationPrechecking},
	OrderPrepare:         {DeployStateUndeployed, LockStateNone, SubStatePreparing},
	OrderReview:          {DeployStateDeployed, LockStateLocked, SubStateReviewing},
	OrderDelete:          {DeployStateDeleting, LockStateNone, SubStateNone},
	OrderMigrationRevert: {DeployStateMigrationReverting, LockStateLocked, SubStateNone},
}

// Transition returns the transitional states for o.
// The boolean is false for OrderNone and unknown orders.
func (o Order) Transition() (Transition, bool) {
	t, ok := transitions[o]
	return t, ok
}

// IsStaged reports whether the order is sequenced by stage rather than by
// start phase.
func (o Order) IsStaged() bool {
	switch o {
	case OrderMigrate, OrderMigratePrecheck, OrderPrepare, OrderMigrationRevert:
		return true
	default:
		return false
	}
}

// IsCommand reports whether the order may be issued through the command
// endpoint. UPDATE, MIGRATE, DELETE and MIGRATION_REVERT have their own
// operations.
func (o Order) IsCommand() bool {
	switch o {
	case OrderDeploy, OrderUndeploy, OrderLock, OrderUnlock, OrderPrepare, OrderReview:
		return true
	default:
		return false
	}
}

// CurrentOrder infers the in-flight order from a composition's states.
// It returns OrderNone when nothing is in flight.
func CurrentOrder(deploy DeployState, lock LockState, sub SubState) Order {
	switch sub {
	case SubStatePreparing:
		return OrderPrepare
	case SubStateMigrationPrechecking:
		return OrderMigratePrecheck
	case SubStateReviewing:
		return OrderReview
	}
	switch deploy {
	case DeployStateDeploying:
		return OrderDeploy
	case DeployStateUndeploying:
		return OrderUndeploy
	case DeployStateUpdating:
		return OrderUpdate
	case DeployStateMigrating:
		return OrderMigrate
	case DeployStateMigrationReverting:
		return OrderMigrationRevert
	case DeployStateDeleting:
		return OrderDelete
	}
	switch lock {
	case LockStateLocking:
		return OrderLock
	case LockStateUnlocking:
		return OrderUnlock
	}
	return OrderNone
}

// DeployCompleted maps a transitional deploy state to the terminal state it
// settles in once every element confirms. Terminal states map to themselves.
func DeployCompleted(s DeployState) DeployState {
	switch s {
	case DeployStateDeploying, DeployStateUpdating,
		DeployStateMigrating, DeployStateMigrationReverting:
		return DeployStateDeployed
	case DeployStateUndeploying:
		return DeployStateUndeployed
	case DeployStateDeleting:
		return DeployStateDeleted
	default:
		return s
	}
}

// LockCompleted maps a (deploy, lock) pair to the terminal lock state.
// Deploying ends LOCKED, undeploying and deleting end with no lock.
func LockCompleted(deploy DeployState, lock LockState) LockState {
	switch {
	case lock == LockStateLocking || deploy == DeployStateDeploying:
		return LockStateLocked
	case lock == LockStateUnlocking:
		return LockStateUnlocked
	case deploy == DeployStateUndeploying || deploy == DeployStateDeleting:
		return LockStateNone
	default:
		return lock
	}
}

// InTransition reports whether any of the three axes is in flight.
func InTransition(deploy DeployState, lock LockState, sub SubState) bool {
	return deploy.IsTransitional() || lock.IsTransitional() || (sub != SubStateNone && sub != "")
}

// DeployOrigin maps a transitional deploy state to the terminal state the
// transition started from. Terminal states map to themselves.
func DeployOrigin(s DeployState) DeployState {
	switch s {
	case DeployStateDeploying, DeployStateDeleting:
		return DeployStateUndeployed
	case DeployStateUndeploying, DeployStateUpdating,
		DeployStateMigrating, DeployStateMigrationReverting:
		return DeployStateDeployed
	default:
		return s
	}
}

// LockOrigin maps a (deploy, lock) pair to the lock state the transition
// started from.
func LockOrigin(deploy DeployState, lock LockState) LockState {
	switch {
	case lock == LockStateLocking:
		return LockStateUnlocked
	case lock == LockStateUnlocking:
		return LockStateLocked
	case deploy == DeployStateDeploying || deploy == DeployStateDeleting:
		return LockStateNone
	case deploy == DeployStateUndeploying:
		return LockStateLocked
	default:
		return lock
	}
}
