package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testComposition() *AutomationComposition {
	return &AutomationComposition{
		InstanceID:    "inst-1",
		Name:          "demo",
		Version:       "1.0.0",
		CompositionID: "def-1",
		DeployState:   DeployStateUndeployed,
		LockState:     LockStateNone,
		SubState:      SubStateNone,
		Elements: []Element{
			{
				ID:            "e1",
				Definition:    ElementDefinitionRef{Name: "http", Version: "1.0.0"},
				ParticipantID: "p-http",
				Properties:    map[string]any{"nested": map[string]any{"k": "v"}, "list": []any{"a"}},
				Stage:         IntPtr(1),
			},
			{
				ID:            "e2",
				Definition:    ElementDefinitionRef{Name: "k8s", Version: "1.0.0"},
				ParticipantID: "p-k8s",
			},
			{
				ID:            "e3",
				Definition:    ElementDefinitionRef{Name: "http", Version: "1.0.0"},
				ParticipantID: "p-http",
			},
		},
	}
}

// ─── DeepCopy ──────────────────────────────────────────────────────

func TestAutomationCompositionDeepCopy(t *testing.T) {
	ac := testComposition()
	ac.Phase = IntPtr(0)

	cpy := ac.DeepCopy()
	require.Equal(t, ac, cpy)

	cpy.Elements[0].Properties["nested"].(map[string]any)["k"] = "changed"
	cpy.Elements[0].Properties["list"].([]any)[0] = "changed"
	*cpy.Elements[0].Stage = 9
	*cpy.Phase = 3
	cpy.Elements[1].DeployState = DeployStateDeployed

	assert.Equal(t, "v", ac.Elements[0].Properties["nested"].(map[string]any)["k"])
	assert.Equal(t, "a", ac.Elements[0].Properties["list"].([]any)[0])
	assert.Equal(t, 1, *ac.Elements[0].Stage)
	assert.Equal(t, 0, *ac.Phase)
	assert.Equal(t, DeployState(""), ac.Elements[1].DeployState)

	var nilAC *AutomationComposition
	assert.Nil(t, nilAC.DeepCopy())
}

func TestCompositionDefinitionDeepCopy(t *testing.T) {
	def := &CompositionDefinition{
		CompositionID: "def-1",
		Template: ServiceTemplate{
			Metadata: map[string]any{"deployTimeoutMs": 1000},
			NodeTemplates: map[string]NodeTemplate{
				"http": {Type: "t", Version: "1.0.0", Properties: map[string]any{"startPhase": 1}},
			},
		},
		ElementStates: map[string]ElementDefinitionState{
			"http": {State: DefinitionStatePrimed, OutProperties: map[string]any{"x": 1}},
		},
	}
	cpy := def.DeepCopy()
	cpy.Template.Metadata["deployTimeoutMs"] = 5
	cpy.Template.NodeTemplates["http"].Properties["startPhase"] = 7
	cpy.ElementStates["http"].OutProperties["x"] = 2

	assert.Equal(t, 1000, def.Template.Metadata["deployTimeoutMs"])
	assert.Equal(t, 1, def.Template.NodeTemplates["http"].Properties["startPhase"])
	assert.Equal(t, 1, def.ElementStates["http"].OutProperties["x"])
}

func TestParticipantDeepCopyAndSupports(t *testing.T) {
	p := &Participant{
		ParticipantID:         "p-http",
		SupportedElementTypes: []ElementType{{Name: "org.onap.Http", Version: "1.0.0"}},
	}
	cpy := p.DeepCopy()
	cpy.SupportedElementTypes[0].Name = "other"
	assert.Equal(t, "org.onap.Http", p.SupportedElementTypes[0].Name)

	assert.True(t, p.Supports("org.onap.Http", "1.0.0"))
	assert.True(t, p.Supports("org.onap.Http", ""))
	assert.False(t, p.Supports("org.onap.Http", "2.0.0"))
	assert.False(t, p.Supports("org.onap.K8s", "1.0.0"))
}

// ─── Accessors ─────────────────────────────────────────────────────

func TestCompositionAccessors(t *testing.T) {
	ac := testComposition()

	e := ac.Element("e2")
	require.NotNil(t, e)
	e.Message = "updated through pointer"
	assert.Equal(t, "updated through pointer", ac.Elements[1].Message)
	assert.Nil(t, ac.Element("missing"))

	assert.Equal(t, []string{"e1", "e2", "e3"}, ac.ElementIDs())
	assert.Equal(t, []string{"p-http", "p-k8s"}, ac.ParticipantIDs())
}

func TestServiceTemplateElementDefinitions(t *testing.T) {
	tmpl := ServiceTemplate{
		NodeTemplates: map[string]NodeTemplate{
			"root": {Type: CompositionNodeType, Version: "1.0.0"},
			"k8s":  {Type: "org.onap.K8s", Version: "1.0.0"},
			"http": {Type: "org.onap.Http", Version: "1.2.0"},
		},
	}
	defs := tmpl.ElementDefinitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "http", defs[0].Name)
	assert.Equal(t, ElementDefinitionRef{Name: "http", Version: "1.2.0"}, defs[0].Ref())
	assert.Equal(t, "k8s", defs[1].Name)
}

func TestNewRollbackIsIndependent(t *testing.T) {
	ac := testComposition()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	rb := NewRollback(ac, now)
	ac.Elements[0].Properties["nested"] = "mutated"

	assert.Equal(t, "inst-1", rb.InstanceID)
	assert.Equal(t, "def-1", rb.CompositionID)
	assert.Equal(t, now, rb.CreatedAt)
	assert.IsType(t, map[string]any{}, rb.Elements[0].Properties["nested"])
}

// ─── Errors ────────────────────────────────────────────────────────

func TestErrorList(t *testing.T) {
	var errs ErrorList
	assert.NoError(t, errs.Err())

	errs.Addf("first %d", 1)
	errs.Addf("second")
	err := fmt.Errorf("creating composition: %w", errs.Err())

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, []string{"first 1", "second"}, Messages(err))
	assert.Contains(t, err.Error(), "first 1; second")
}

func TestInvalidOrderIsValidation(t *testing.T) {
	assert.True(t, errors.Is(ErrInvalidOrder, ErrValidation))
	assert.Equal(t, []string{"acm: validation failed: invalid order"}, Messages(ErrInvalidOrder))
	assert.Nil(t, Messages(nil))
}
