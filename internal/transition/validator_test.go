package transition

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onap/policy-clamp-acm/internal/model"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testTemplate() model.ServiceTemplate {
	return model.ServiceTemplate{
		NodeTemplates: map[string]model.NodeTemplate{
			"http": {Type: "t", Version: "1.0.0", Properties: map[string]any{
				"startPhase": 1,
				"stage":      map[string]any{"migrate": []any{2, 3}, "prepare": []any{1}},
			}},
			"k8s": {Type: "t", Version: "1.0.0", Properties: map[string]any{
				"startPhase": 0,
				"stage":      map[string]any{"migrate": []any{1}},
			}},
		},
	}
}

func testComposition(deploy model.DeployState, lock model.LockState) *model.AutomationComposition {
	ac := &model.AutomationComposition{
		InstanceID:        "inst-1",
		Name:              "demo",
		Version:           "1.0.0",
		CompositionID:     "def-1",
		DeployState:       deploy,
		LockState:         lock,
		SubState:          model.SubStateNone,
		StateChangeResult: model.StateChangeResultNoError,
		Elements: []model.Element{
			{ID: "e1", Definition: model.ElementDefinitionRef{Name: "http", Version: "1.0.0"}, ParticipantID: "p1"},
			{ID: "e2", Definition: model.ElementDefinitionRef{Name: "k8s", Version: "1.0.0"}, ParticipantID: "p2"},
		},
	}
	for i := range ac.Elements {
		ac.Elements[i].DeployState = deploy
		ac.Elements[i].LockState = lock
		ac.Elements[i].SubState = model.SubStateNone
		ac.Elements[i].Message = "previous"
	}
	return ac
}

// ─── Legal Transitions ─────────────────────────────────────────────

func TestAccept_LegalEdges(t *testing.T) {
	tests := []struct {
		name      string
		deploy    model.DeployState
		lock      model.LockState
		order     model.Order
		want      model.Transition
		wantPhase int
		staged    bool
	}{
		{"deploy", model.DeployStateUndeployed, model.LockStateNone, model.OrderDeploy,
			model.Transition{Deploy: model.DeployStateDeploying, Lock: model.LockStateNone, Sub: model.SubStateNone}, 0, false},
		{"undeploy", model.DeployStateDeployed, model.LockStateLocked, model.OrderUndeploy,
			model.Transition{Deploy: model.DeployStateUndeploying, Lock: model.LockStateNone, Sub: model.SubStateNone}, 1, false},
		{"unlock", model.DeployStateDeployed, model.LockStateLocked, model.OrderUnlock,
			model.Transition{Deploy: model.DeployStateDeployed, Lock: model.LockStateUnlocking, Sub: model.SubStateNone}, 0, false},
		{"lock", model.DeployStateDeployed, model.LockStateUnlocked, model.OrderLock,
			model.Transition{Deploy: model.DeployStateDeployed, Lock: model.LockStateLocking, Sub: model.SubStateNone}, 1, false},
		{"update", model.DeployStateDeployed, model.LockStateLocked, model.OrderUpdate,
			model.Transition{Deploy: model.DeployStateUpdating, Lock: model.LockStateLocked, Sub: model.SubStateNone}, 1, false},
		{"delete", model.DeployStateUndeployed, model.LockStateNone, model.OrderDelete,
			model.Transition{Deploy: model.DeployStateDeleting, Lock: model.LockStateNone, Sub: model.SubStateNone}, 1, false},
		{"migrate", model.DeployStateDeployed, model.LockStateLocked, model.OrderMigrate,
			model.Transition{Deploy: model.DeployStateMigrating, Lock: model.LockStateLocked, Sub: model.SubStateNone}, 1, true},
		{"prepare", model.DeployStateUndeployed, model.LockStateNone, model.OrderPrepare,
			model.Transition{Deploy: model.DeployStateUndeployed, Lock: model.LockStateNone, Sub: model.SubStatePreparing}, 0, true},
		{"precheck", model.DeployStateDeployed, model.LockStateLocked, model.OrderMigratePrecheck,
			model.Transition{Deploy: model.DeployStateDeployed, Lock: model.LockStateLocked, Sub: model.SubStateMigrationPrechecking}, 1, true},
		{"review", model.DeployStateDeployed, model.LockStateLocked, model.OrderReview,
			model.Transition{Deploy: model.DeployStateDeployed, Lock: model.LockStateLocked, Sub: model.SubStateReviewing}, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ac := testComposition(tt.deploy, tt.lock)
			require.NoError(t, Accept(ac, tt.order, testTemplate(), testNow))

			assert.Equal(t, tt.want.Deploy, ac.DeployState)
			assert.Equal(t, tt.want.Lock, ac.LockState)
			assert.Equal(t, tt.want.Sub, ac.SubState)
			assert.Equal(t, model.StateChangeResultNoError, ac.StateChangeResult)
			assert.Equal(t, testNow, ac.LastMsg)
			require.NotNil(t, ac.Phase)
			assert.Equal(t, tt.wantPhase, *ac.Phase)

			for _, e := range ac.Elements {
				assert.Equal(t, tt.want.Deploy, e.DeployState)
				assert.Equal(t, tt.want.Lock, e.LockState)
				assert.Equal(t, tt.want.Sub, e.SubState)
				assert.Empty(t, e.Message)
				if tt.staged {
					require.NotNil(t, e.Stage)
					assert.Equal(t, tt.wantPhase, *e.Stage)
				} else {
					assert.Nil(t, e.Stage)
				}
			}
		})
	}
}

// ─── Illegal Transitions ───────────────────────────────────────────

func TestValidate_IllegalEdges(t *testing.T) {
	tests := []struct {
		name   string
		deploy model.DeployState
		lock   model.LockState
		order  model.Order
	}{
		{"lock while undeployed", model.DeployStateUndeployed, model.LockStateNone, model.OrderLock},
		{"unlock while undeployed", model.DeployStateUndeployed, model.LockStateNone, model.OrderUnlock},
		{"deploy while deploying", model.DeployStateDeploying, model.LockStateNone, model.OrderDeploy},
		{"undeploy while deploying", model.DeployStateDeploying, model.LockStateNone, model.OrderUndeploy},
		{"deploy while deployed", model.DeployStateDeployed, model.LockStateLocked, model.OrderDeploy},
		{"delete while deployed", model.DeployStateDeployed, model.LockStateLocked, model.OrderDelete},
		{"undeploy while unlocked", model.DeployStateDeployed, model.LockStateUnlocked, model.OrderUndeploy},
		{"lock while locked", model.DeployStateDeployed, model.LockStateLocked, model.OrderLock},
		{"update while undeployed", model.DeployStateUndeployed, model.LockStateNone, model.OrderUpdate},
		{"migrate while updating", model.DeployStateUpdating, model.LockStateLocked, model.OrderMigrate},
		{"revert without failed migration", model.DeployStateDeployed, model.LockStateLocked, model.OrderMigrationRevert},
		{"prepare while deployed", model.DeployStateDeployed, model.LockStateLocked, model.OrderPrepare},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ac := testComposition(tt.deploy, tt.lock)
			before := ac.DeepCopy()

			err := Accept(ac, tt.order, testTemplate(), testNow)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidState), "got %v", err)
			assert.Equal(t, before, ac, "rejected order must not mutate the composition")
		})
	}
}

func TestValidate_InvalidOrder(t *testing.T) {
	ac := testComposition(model.DeployStateUndeployed, model.LockStateNone)

	_, err := Validate(ac, model.OrderNone)
	assert.True(t, errors.Is(err, model.ErrInvalidOrder))
	assert.True(t, errors.Is(err, model.ErrValidation))

	_, err = Validate(ac, model.Order("RESTART"))
	assert.True(t, errors.Is(err, model.ErrInvalidOrder))
}

// ─── Retry After Failure ───────────────────────────────────────────

func TestValidate_RetryAfterFailure(t *testing.T) {
	tests := []struct {
		name   string
		deploy model.DeployState
		lock   model.LockState
		result model.StateChangeResult
		order  model.Order
		ok     bool
	}{
		{"redeploy after timeout", model.DeployStateDeploying, model.LockStateNone, model.StateChangeResultTimeout, model.OrderDeploy, true},
		{"undeploy after failed deploy", model.DeployStateDeploying, model.LockStateNone, model.StateChangeResultFailed, model.OrderUndeploy, true},
		{"revert failed migration", model.DeployStateMigrating, model.LockStateLocked, model.StateChangeResultFailed, model.OrderMigrationRevert, true},
		{"unlock after failed lock", model.DeployStateDeployed, model.LockStateLocking, model.StateChangeResultFailed, model.OrderUnlock, true},
		{"retry delete", model.DeployStateDeleting, model.LockStateNone, model.StateChangeResultTimeout, model.OrderDelete, true},
		{"lock after failed deploy", model.DeployStateDeploying, model.LockStateNone, model.StateChangeResultFailed, model.OrderLock, false},
		{"delete after failed undeploy", model.DeployStateUndeploying, model.LockStateNone, model.StateChangeResultFailed, model.OrderDelete, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ac := testComposition(tt.deploy, tt.lock)
			ac.StateChangeResult = tt.result

			_, err := Validate(ac, tt.order)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, model.ErrInvalidState), "got %v", err)
			}
		})
	}
}
