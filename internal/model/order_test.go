package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrder(t *testing.T) {
	o, ok := ParseOrder(" deploy ")
	require.True(t, ok)
	assert.Equal(t, OrderDeploy, o)

	o, ok = ParseOrder("MIGRATE_PRECHECK")
	require.True(t, ok)
	assert.Equal(t, OrderMigratePrecheck, o)

	_, ok = ParseOrder("")
	assert.False(t, ok)
	_, ok = ParseOrder("RESTART")
	assert.False(t, ok)
}

func TestOrderTransition(t *testing.T) {
	tests := []struct {
		order Order
		want  Transition
	}{
		{OrderDeploy, Transition{DeployStateDeploying, LockStateNone, SubStateNone}},
		{OrderUndeploy, Transition{DeployStateUndeploying, LockStateNone, SubStateNone}},
		{OrderLock, Transition{DeployStateDeployed, LockStateLocking, SubStateNone}},
		{OrderUnlock, Transition{DeployStateDeployed, LockStateUnlocking, SubStateNone}},
		{OrderUpdate, Transition{DeployStateUpdating, LockStateLocked, SubStateNone}},
		{OrderMigrate, Transition{DeployStateMigrating, LockStateLocked, SubStateNone}},
		{OrderPrepare, Transition{DeployStateUndeployed, LockStateNone, SubStatePreparing}},
		{OrderDelete, Transition{DeployStateDeleting, LockStateNone, SubStateNone}},
	}
	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			got, ok := tt.order.Transition()
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := OrderNone.Transition()
	assert.False(t, ok)
}

func TestCurrentOrderRoundTrip(t *testing.T) {
	for order := range transitions {
		tr, _ := order.Transition()
		assert.Equal(t, order, CurrentOrder(tr.Deploy, tr.Lock, tr.Sub), "order %s", order)
	}
	assert.Equal(t, OrderNone, CurrentOrder(DeployStateDeployed, LockStateLocked, SubStateNone))
}

func TestDeployCompleted(t *testing.T) {
	assert.Equal(t, DeployStateDeployed, DeployCompleted(DeployStateDeploying))
	assert.Equal(t, DeployStateDeployed, DeployCompleted(DeployStateUpdating))
	assert.Equal(t, DeployStateDeployed, DeployCompleted(DeployStateMigrating))
	assert.Equal(t, DeployStateDeployed, DeployCompleted(DeployStateMigrationReverting))
	assert.Equal(t, DeployStateUndeployed, DeployCompleted(DeployStateUndeploying))
	assert.Equal(t, DeployStateDeleted, DeployCompleted(DeployStateDeleting))
	assert.Equal(t, DeployStateDeployed, DeployCompleted(DeployStateDeployed))
}

func TestLockCompleted(t *testing.T) {
	assert.Equal(t, LockStateLocked, LockCompleted(DeployStateDeploying, LockStateNone))
	assert.Equal(t, LockStateLocked, LockCompleted(DeployStateDeployed, LockStateLocking))
	assert.Equal(t, LockStateUnlocked, LockCompleted(DeployStateDeployed, LockStateUnlocking))
	assert.Equal(t, LockStateNone, LockCompleted(DeployStateUndeploying, LockStateNone))
	assert.Equal(t, LockStateNone, LockCompleted(DeployStateDeleting, LockStateNone))
	assert.Equal(t, LockStateLocked, LockCompleted(DeployStateUpdating, LockStateLocked))
}

func TestDeployOrigin(t *testing.T) {
	assert.Equal(t, DeployStateUndeployed, DeployOrigin(DeployStateDeploying))
	assert.Equal(t, DeployStateUndeployed, DeployOrigin(DeployStateDeleting))
	assert.Equal(t, DeployStateDeployed, DeployOrigin(DeployStateUndeploying))
	assert.Equal(t, DeployStateDeployed, DeployOrigin(DeployStateMigrating))
	assert.Equal(t, DeployStateDeployed, DeployOrigin(DeployStateDeployed))
}

func TestLockOrigin(t *testing.T) {
	assert.Equal(t, LockStateUnlocked, LockOrigin(DeployStateDeployed, LockStateLocking))
	assert.Equal(t, LockStateLocked, LockOrigin(DeployStateDeployed, LockStateUnlocking))
	assert.Equal(t, LockStateNone, LockOrigin(DeployStateDeploying, LockStateNone))
	assert.Equal(t, LockStateLocked, LockOrigin(DeployStateUndeploying, LockStateNone))
	assert.Equal(t, LockStateLocked, LockOrigin(DeployStateUpdating, LockStateLocked))
}

func TestIsStagedAndIsCommand(t *testing.T) {
	assert.True(t, OrderMigrate.IsStaged())
	assert.True(t, OrderPrepare.IsStaged())
	assert.False(t, OrderDeploy.IsStaged())

	assert.True(t, OrderDeploy.IsCommand())
	assert.True(t, OrderReview.IsCommand())
	assert.False(t, OrderUpdate.IsCommand())
	assert.False(t, OrderDelete.IsCommand())
	assert.False(t, OrderNone.IsCommand())
}

func TestInTransition(t *testing.T) {
	assert.False(t, InTransition(DeployStateDeployed, LockStateLocked, SubStateNone))
	assert.False(t, InTransition(DeployStateUndeployed, LockStateNone, ""))
	assert.True(t, InTransition(DeployStateDeploying, LockStateNone, SubStateNone))
	assert.True(t, InTransition(DeployStateDeployed, LockStateUnlocking, SubStateNone))
	assert.True(t, InTransition(DeployStateUndeployed, LockStateNone, SubStatePreparing))
}
