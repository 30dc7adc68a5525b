// Package storetest opens migrated in-memory databases for package tests.
package storetest

import (
	"context"
	"testing"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/database"
	"github.com/onap/policy-clamp-acm/internal/model"
	_ "github.com/onap/policy-clamp-acm/migrations" // registers the embedded schema
)

// OpenDB returns a private in-memory database with the full schema applied.
// It is closed when the test ends.
func OpenDB(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// Definition returns a primed two-element definition: "http" in start
// phase 0 and "k8s" in start phase 1, both version 1.0.0.
func Definition(compositionID string) *model.CompositionDefinition {
	return &model.CompositionDefinition{
		CompositionID:     compositionID,
		Name:              "demo-" + compositionID,
		Version:           "1.0.0",
		State:             model.DefinitionStatePrimed,
		StateChangeResult: model.StateChangeResultNoError,
		Template: model.ServiceTemplate{
			Name:    "demo-" + compositionID,
			Version: "1.0.0",
			Metadata: map[string]any{
				"deployTimeoutMs": 60000,
			},
			NodeTemplates: map[string]model.NodeTemplate{
				"composition": {Type: model.CompositionNodeType, TypeVersion: "1.0.1", Version: "1.0.0"},
				"http": {
					Type:        "org.onap.policy.clamp.acm.HttpAutomationCompositionElement",
					TypeVersion: "1.0.0",
					Version:     "1.0.0",
					Properties:  map[string]any{"startPhase": 0},
				},
				"k8s": {
					Type:        "org.onap.policy.clamp.acm.K8SMicroserviceAutomationCompositionElement",
					TypeVersion: "1.0.0",
					Version:     "1.0.0",
					Properties:  map[string]any{"startPhase": 1},
				},
			},
		},
		ElementStates: map[string]model.ElementDefinitionState{
			"http": {NodeTemplateID: model.ElementDefinitionRef{Name: "http", Version: "1.0.0"}, ParticipantID: "p-http", State: model.DefinitionStatePrimed},
			"k8s":  {NodeTemplateID: model.ElementDefinitionRef{Name: "k8s", Version: "1.0.0"}, ParticipantID: "p-k8s", State: model.DefinitionStatePrimed},
		},
	}
}

// Composition returns an undeployed instance of Definition(compositionID)
// with elements "e-http" and "e-k8s".
func Composition(instanceID, compositionID string) *model.AutomationComposition {
	return &model.AutomationComposition{
		InstanceID:        instanceID,
		Name:              "instance-" + instanceID,
		Version:           "1.0.0",
		CompositionID:     compositionID,
		DeployState:       model.DeployStateUndeployed,
		LockState:         model.LockStateNone,
		SubState:          model.SubStateNone,
		StateChangeResult: model.StateChangeResultNoError,
		Elements: []model.Element{
			{
				ID:            "e-http",
				Definition:    model.ElementDefinitionRef{Name: "http", Version: "1.0.0"},
				ParticipantID: "p-http",
				DeployState:   model.DeployStateUndeployed,
				LockState:     model.LockStateNone,
				SubState:      model.SubStateNone,
				Properties:    map[string]any{"url": "http://svc"},
			},
			{
				ID:            "e-k8s",
				Definition:    model.ElementDefinitionRef{Name: "k8s", Version: "1.0.0"},
				ParticipantID: "p-k8s",
				DeployState:   model.DeployStateUndeployed,
				LockState:     model.LockStateNone,
				SubState:      model.SubStateNone,
			},
		},
	}
}

// Participants returns online registrations for the participants used by
// Composition.
func Participants() []*model.Participant {
	return []*model.Participant{
		{
			ParticipantID: "p-http",
			State:         model.ParticipantStateOnline,
			Health:        model.HealthHealthy,
			SupportedElementTypes: []model.ElementType{
				{Name: "org.onap.policy.clamp.acm.HttpAutomationCompositionElement", Version: "1.0.0"},
			},
		},
		{
			ParticipantID: "p-k8s",
			State:         model.ParticipantStateOnline,
			Health:        model.HealthHealthy,
			SupportedElementTypes: []model.ElementType{
				{Name: "org.onap.policy.clamp.acm.K8SMicroserviceAutomationCompositionElement", Version: "1.0.0"},
			},
		},
	}
}
