package transport

import (
	"time"

	"github.com/onap/policy-clamp-acm/internal/model"
)

// MQTT message types exchanged between the runtime and its participants.
// All payloads are JSON.

// Definition-level orders carried in a Command alongside the instance
// orders of model.Order.
const (
	OrderPrime   = "PRIME"
	OrderDeprime = "DEPRIME"
)

// Command is sent from the runtime to one participant.
// Topic: acm/participant/{participantId}/command
type Command struct {
	// MessageID uniquely identifies this command for log correlation.
	MessageID string `json:"message_id"`

	// Timestamp is when the command was issued (UTC).
	Timestamp time.Time `json:"timestamp"`

	ParticipantID string `json:"participant_id"`

	// Order is a model.Order value, or OrderPrime / OrderDeprime.
	Order string `json:"order"`

	InstanceID          string `json:"instance_id,omitempty"`
	CompositionID       string `json:"composition_id"`
	CompositionTargetID string `json:"composition_target_id,omitempty"`

	// StartPhase is the phase of the partition this command belongs to.
	// Nil for orders that are not phased.
	StartPhase *int `json:"start_phase,omitempty"`

	// Stage is the stage of the partition for staged orders.
	Stage *int `json:"stage,omitempty"`

	// Elements addressed to this participant within the partition.
	Elements []CommandElement `json:"elements,omitempty"`

	// Definitions carries the element definitions for prime and deprime.
	Definitions []model.ElementDefinition `json:"definitions,omitempty"`
}

// CommandElement is one element's share of a Command.
type CommandElement struct {
	ElementID   string                     `json:"element_id"`
	Definition  model.ElementDefinitionRef `json:"definition"`
	DeployState model.DeployState          `json:"deploy_state"`
	LockState   model.LockState            `json:"lock_state"`
	SubState    model.SubState             `json:"sub_state,omitempty"`
	Properties  map[string]any             `json:"properties,omitempty"`
}

// StatusReport is sent from a participant when an element changes state.
// Topic: acm/participant/{participantId}/status
type StatusReport struct {
	MessageID     string    `json:"message_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	ParticipantID string    `json:"participant_id"`
	InstanceID    string    `json:"instance_id"`
	ElementID     string    `json:"element_id"`

	DeployState model.DeployState `json:"deploy_state"`
	LockState   model.LockState   `json:"lock_state"`
	SubState    model.SubState    `json:"sub_state,omitempty"`

	// Stage is the next stage the element is waiting for during a staged
	// operation. Nil when the element finished the operation.
	Stage *int `json:"stage,omitempty"`

	OperationalState string         `json:"operational_state,omitempty"`
	UseState         string         `json:"use_state,omitempty"`
	OutProperties    map[string]any `json:"out_properties,omitempty"`
	Message          string         `json:"message,omitempty"`

	// StateChangeResult is FAILED when the participant could not carry out
	// the order. Empty is treated as NO_ERROR.
	StateChangeResult model.StateChangeResult `json:"state_change_result,omitempty"`
}

// Heartbeat registers a participant and refreshes its liveness.
// Topic: acm/participant/{participantId}/heartbeat
type Heartbeat struct {
	ParticipantID         string              `json:"participant_id"`
	Timestamp             time.Time           `json:"timestamp"`
	SupportedElementTypes []model.ElementType `json:"supported_element_types,omitempty"`
}

// PrimeAck acknowledges a PRIME or DEPRIME command for every element
// definition the participant owns in the composition.
// Topic: acm/participant/{participantId}/prime
type PrimeAck struct {
	ParticipantID string    `json:"participant_id"`
	Timestamp     time.Time `json:"timestamp"`
	CompositionID string    `json:"composition_id"`

	// State is PRIMED after a prime or UNINITIALISED after a deprime.
	State             model.DefinitionState   `json:"state"`
	StateChangeResult model.StateChangeResult `json:"state_change_result,omitempty"`
	Message           string                  `json:"message,omitempty"`

	// OutProperties per node template id, optional.
	OutProperties map[string]map[string]any `json:"out_properties,omitempty"`
}
