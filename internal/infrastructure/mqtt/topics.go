package mqtt

import (
	"fmt"
	"strings"
)

// Topic hierarchy shared by the runtime and its participants:
//
//	acm/participant/{participantId}/command    runtime -> participant
//	acm/participant/{participantId}/status     participant -> runtime
//	acm/participant/{participantId}/heartbeat  participant -> runtime
//	acm/participant/{participantId}/prime      participant -> runtime
//	acm/runtime/{runtimeId}/status             runtime presence (retained, LWT)
const (
	TopicPrefix            = "acm"
	TopicPrefixParticipant = TopicPrefix + "/participant"
	TopicPrefixRuntime     = TopicPrefix + "/runtime"
)

// Topics provides builders for ACM MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.ParticipantCommand("p-http")  // acm/participant/p-http/command
type Topics struct{}

// ParticipantCommand returns the topic a participant receives commands on.
func (Topics) ParticipantCommand(participantID string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixParticipant, participantID)
}

// ParticipantStatus returns the topic a participant publishes element status on.
func (Topics) ParticipantStatus(participantID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixParticipant, participantID)
}

// ParticipantHeartbeat returns the topic a participant publishes heartbeats on.
func (Topics) ParticipantHeartbeat(participantID string) string {
	return fmt.Sprintf("%s/%s/heartbeat", TopicPrefixParticipant, participantID)
}

// ParticipantPrime returns the topic a participant acknowledges prime and
// deprime requests on.
func (Topics) ParticipantPrime(participantID string) string {
	return fmt.Sprintf("%s/%s/prime", TopicPrefixParticipant, participantID)
}

// RuntimeStatus returns the retained presence topic for a runtime.
func (Topics) RuntimeStatus(runtimeID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixRuntime, runtimeID)
}

// AllParticipantStatus subscribes to status reports from every participant.
func (Topics) AllParticipantStatus() string {
	return TopicPrefixParticipant + "/+/status"
}

// AllParticipantHeartbeats subscribes to heartbeats from every participant.
func (Topics) AllParticipantHeartbeats() string {
	return TopicPrefixParticipant + "/+/heartbeat"
}

// AllParticipantPrimeAcks subscribes to prime acknowledgements from every participant.
func (Topics) AllParticipantPrimeAcks() string {
	return TopicPrefixParticipant + "/+/prime"
}

// ParticipantFromTopic extracts the participant id and message kind
// ("status", "heartbeat", "prime", "command") from a participant topic.
func ParticipantFromTopic(topic string) (participantID, kind string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixParticipant+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
