package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the runtime.
const (
	MeasurementTransition  = "acm_transition"
	MeasurementElement     = "acm_element_statistics"
	MeasurementParticipant = "acm_participant_statistics"
)

// TransitionRecord describes the outcome of one lifecycle transition.
type TransitionRecord struct {
	InstanceID    string
	CompositionID string
	// Operation is the transitional state driven, e.g. DEPLOYING.
	Operation string
	// Result is NO_ERROR, FAILED or TIMEOUT.
	Result     string
	Partitions int
	Duration   time.Duration
}

// ElementRecord is a point-in-time view of one element, mirroring the
// element statistics kept per status report.
type ElementRecord struct {
	InstanceID       string
	ElementID        string
	ParticipantID    string
	DeployState      string
	LockState        string
	OperationalState string
	UseState         string
	Timestamp        time.Time
}

// ParticipantRecord is a point-in-time view of a participant's health.
type ParticipantRecord struct {
	ParticipantID  string
	State          string
	Health         string
	SupportedTypes int
	Timestamp      time.Time
}

// WriteTransition records a finished transition. Non-blocking.
func (c *Client) WriteTransition(r TransitionRecord) {
	c.writePoint(write.NewPoint(
		MeasurementTransition,
		map[string]string{
			"instance_id":    r.InstanceID,
			"composition_id": r.CompositionID,
			"operation":      r.Operation,
			"result":         r.Result,
		},
		map[string]interface{}{
			"duration_ms": r.Duration.Milliseconds(),
			"partitions":  r.Partitions,
		},
		time.Now(),
	))
}

// WriteElementStatistics records an element's reported state.
//
// Example:
//
//	client.WriteElementStatistics(influxdb.ElementRecord{
//	    InstanceID: "ac-1", ElementID: "e-1", ParticipantID: "p-http",
//	    DeployState: "DEPLOYED", LockState: "LOCKED",
//	})
func (c *Client) WriteElementStatistics(r ElementRecord) {
	fields := map[string]interface{}{
		"deploy_state": r.DeployState,
		"lock_state":   r.LockState,
	}
	if r.OperationalState != "" {
		fields["operational_state"] = r.OperationalState
	}
	if r.UseState != "" {
		fields["use_state"] = r.UseState
	}

	c.writePoint(write.NewPoint(
		MeasurementElement,
		map[string]string{
			"instance_id":    r.InstanceID,
			"element_id":     r.ElementID,
			"participant_id": r.ParticipantID,
		},
		fields,
		timestampOrNow(r.Timestamp),
	))
}

// WriteParticipantStatistics records a participant's state and health.
func (c *Client) WriteParticipantStatistics(r ParticipantRecord) {
	c.writePoint(write.NewPoint(
		MeasurementParticipant,
		map[string]string{
			"participant_id": r.ParticipantID,
		},
		map[string]interface{}{
			"state":           r.State,
			"health":          r.Health,
			"supported_types": r.SupportedTypes,
		},
		timestampOrNow(r.Timestamp),
	))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
