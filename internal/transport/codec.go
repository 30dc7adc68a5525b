package transport

import (
	"encoding/json"
	"fmt"

	"github.com/onap/policy-clamp-acm/internal/model"
)

// EncodeCommand serialises a command for publishing.
func EncodeCommand(cmd Command) ([]byte, error) {
	if cmd.ParticipantID == "" {
		return nil, fmt.Errorf("%w: participant_id is required", ErrInvalidMessage)
	}
	if cmd.Order == "" {
		return nil, fmt.Errorf("%w: order is required", ErrInvalidMessage)
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}
	return payload, nil
}

// DecodeCommand parses a command payload. Participants and tests use it.
func DecodeCommand(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return cmd, nil
}

// DecodeStatusReport parses a status report received on topicParticipant's
// status topic. A report naming a different participant than its topic is
// rejected.
func DecodeStatusReport(topicParticipant string, payload []byte) (StatusReport, error) {
	var r StatusReport
	if err := json.Unmarshal(payload, &r); err != nil {
		return StatusReport{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := bindParticipant(&r.ParticipantID, topicParticipant); err != nil {
		return StatusReport{}, err
	}
	if r.InstanceID == "" || r.ElementID == "" {
		return StatusReport{}, fmt.Errorf("%w: instance_id and element_id are required", ErrInvalidMessage)
	}
	if !r.DeployState.IsValid() {
		return StatusReport{}, fmt.Errorf("%w: invalid deploy_state %q", ErrInvalidMessage, r.DeployState)
	}
	if r.LockState == "" {
		r.LockState = model.LockStateNone
	}
	if !r.LockState.IsValid() {
		return StatusReport{}, fmt.Errorf("%w: invalid lock_state %q", ErrInvalidMessage, r.LockState)
	}
	if r.SubState == "" {
		r.SubState = model.SubStateNone
	}
	if r.StateChangeResult == "" {
		r.StateChangeResult = model.StateChangeResultNoError
	}
	return r, nil
}

// DecodeHeartbeat parses a heartbeat received on topicParticipant's
// heartbeat topic.
func DecodeHeartbeat(topicParticipant string, payload []byte) (Heartbeat, error) {
	var hb Heartbeat
	if err := json.Unmarshal(payload, &hb); err != nil {
		return Heartbeat{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := bindParticipant(&hb.ParticipantID, topicParticipant); err != nil {
		return Heartbeat{}, err
	}
	return hb, nil
}

// DecodePrimeAck parses a prime acknowledgement received on
// topicParticipant's prime topic.
func DecodePrimeAck(topicParticipant string, payload []byte) (PrimeAck, error) {
	var ack PrimeAck
	if err := json.Unmarshal(payload, &ack); err != nil {
		return PrimeAck{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := bindParticipant(&ack.ParticipantID, topicParticipant); err != nil {
		return PrimeAck{}, err
	}
	if ack.CompositionID == "" {
		return PrimeAck{}, fmt.Errorf("%w: composition_id is required", ErrInvalidMessage)
	}
	switch ack.State {
	case model.DefinitionStatePrimed, model.DefinitionStateUninitialised:
	default:
		return PrimeAck{}, fmt.Errorf("%w: invalid state %q", ErrInvalidMessage, ack.State)
	}
	if ack.StateChangeResult == "" {
		ack.StateChangeResult = model.StateChangeResultNoError
	}
	return ack, nil
}

func bindParticipant(field *string, topicParticipant string) error {
	switch {
	case *field == "":
		*field = topicParticipant
	case *field != topicParticipant:
		return fmt.Errorf("%w: participant %q published on topic of %q", ErrInvalidMessage, *field, topicParticipant)
	}
	if *field == "" {
		return fmt.Errorf("%w: participant_id is required", ErrInvalidMessage)
	}
	return nil
}
