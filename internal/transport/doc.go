// Package transport carries commands and reports between the runtime and
// its participants over MQTT.
//
// Outbound, the dispatcher calls Queue.Send and a Publisher drains the
// queue onto acm/participant/{id}/command. Inbound, a Router subscribes to
// the status, heartbeat and prime topics of every participant and exposes
// decoded messages on channels consumed by the supervision package.
//
// The participant id in a topic is authoritative. A payload naming another
// participant is rejected.
package transport
