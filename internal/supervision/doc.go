// Package supervision folds participant messages into stored state.
//
// The Aggregator consumes three inbound streams from the transport:
//
//   - status reports, applied to one element each under the composition
//     lock and rolled up into the composition (see Rollup);
//   - heartbeats, which register participants and refresh their liveness;
//   - prime acknowledgements, which drive a definition to PRIMED or back to
//     UNINITIALISED.
//
// Every saved change is handed to registered listeners as a deep copy. The
// dispatcher listens to learn partition progress and the WebSocket hub
// listens to publish live state.
//
// The Scanner runs beside the aggregator. It times out transitions that
// outlived their operation timeout and degrades participants whose
// heartbeats stopped.
package supervision
