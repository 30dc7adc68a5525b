package model

// DeployState is the deployment axis of a composition or element lifecycle.
type DeployState string

const (
	DeployStateUndeployed         DeployState = "UNDEPLOYED"
	DeployStateDeploying          DeployState = "DEPLOYING"
	DeployStateDeployed           DeployState = "DEPLOYED"
	DeployStateUndeploying        DeployState = "UNDEPLOYING"
	DeployStateUpdating           DeployState = "UPDATING"
	DeployStateMigrating          DeployState = "MIGRATING"
	DeployStateMigrationReverting DeployState = "MIGRATION_REVERTING"
	DeployStateDeleting           DeployState = "DELETING"
	DeployStateDeleted            DeployState = "DELETED"
)

// AllDeployStates returns every valid DeployState.
func AllDeployStates() []DeployState {
	return []DeployState{
		DeployStateUndeployed,
		DeployStateDeploying,
		DeployStateDeployed,
		DeployStateUndeploying,
		DeployStateUpdating,
		DeployStateMigrating,
		DeployStateMigrationReverting,
		DeployStateDeleting,
		DeployStateDeleted,
	}
}

// IsValid reports whether s is a known DeployState.
func (s DeployState) IsValid() bool {
	for _, v := range AllDeployStates() {
		if v == s {
			return true
		}
	}
	return false
}

// IsTransitional reports whether s is one of the in-flight (…ING) states.
func (s DeployState) IsTransitional() bool {
	switch s {
	case DeployStateDeploying, DeployStateUndeploying, DeployStateUpdating,
		DeployStateMigrating, DeployStateMigrationReverting, DeployStateDeleting:
		return true
	default:
		return false
	}
}

// LockState is the operational lock axis. It is only meaningful while the
// deploy axis is DEPLOYED.
type LockState string

const (
	LockStateNone      LockState = "NONE"
	LockStateLocked    LockState = "LOCKED"
	LockStateLocking   LockState = "LOCKING"
	LockStateUnlocked  LockState = "UNLOCKED"
	LockStateUnlocking LockState = "UNLOCKING"
)

// AllLockStates returns every valid LockState.
func AllLockStates() []LockState {
	return []LockState{
		LockStateNone,
		LockStateLocked,
		LockStateLocking,
		LockStateUnlocked,
		LockStateUnlocking,
	}
}

// IsValid reports whether s is a known LockState.
func (s LockState) IsValid() bool {
	for _, v := range AllLockStates() {
		if v == s {
			return true
		}
	}
	return false
}

// IsTransitional reports whether s is LOCKING or UNLOCKING.
func (s LockState) IsTransitional() bool {
	return s == LockStateLocking || s == LockStateUnlocking
}

// SubState tracks intra-transition progress for operations that do not move
// the deploy axis (prepare, migration precheck, review).
type SubState string

const (
	SubStateNone                 SubState = "NONE"
	SubStatePreparing            SubState = "PREPARING"
	SubStateMigrationPrechecking SubState = "MIGRATION_PRECHECKING"
	SubStateReviewing            SubState = "REVIEWING"
)

// IsValid reports whether s is a known SubState.
func (s SubState) IsValid() bool {
	switch s {
	case SubStateNone, SubStatePreparing, SubStateMigrationPrechecking, SubStateReviewing:
		return true
	default:
		return false
	}
}

// StateChangeResult records the outcome of the latest transition.
type StateChangeResult string

const (
	StateChangeResultNoError StateChangeResult = "NO_ERROR"
	StateChangeResultFailed  StateChangeResult = "FAILED"
	StateChangeResultTimeout StateChangeResult = "TIMEOUT"
)

// IsError reports whether the result is FAILED or TIMEOUT.
func (r StateChangeResult) IsError() bool {
	return r == StateChangeResultFailed || r == StateChangeResultTimeout
}

// DefinitionState is the prime lifecycle of a composition definition and of
// each of its element definitions.
type DefinitionState string

const (
	DefinitionStateUninitialised DefinitionState = "UNINITIALISED"
	DefinitionStatePriming       DefinitionState = "PRIMING"
	DefinitionStatePrimed        DefinitionState = "PRIMED"
	DefinitionStateDepriming     DefinitionState = "DEPRIMING"
)

// IsTransitional reports whether s is PRIMING or DEPRIMING.
func (s DefinitionState) IsTransitional() bool {
	return s == DefinitionStatePriming || s == DefinitionStateDepriming
}

// ParticipantState is the registration state of a participant.
type ParticipantState string

const (
	ParticipantStateOnline  ParticipantState = "ON_LINE"
	ParticipantStateOffline ParticipantState = "OFF_LINE"
)

// ParticipantHealth is derived from heartbeat age by the supervision scanner.
type ParticipantHealth string

const (
	HealthHealthy    ParticipantHealth = "HEALTHY"
	HealthNotHealthy ParticipantHealth = "NOT_HEALTHY"
	HealthOffline    ParticipantHealth = "OFF_LINE"
	HealthUnknown    ParticipantHealth = "UNKNOWN"
)
