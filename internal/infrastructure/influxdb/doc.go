// Package influxdb records lifecycle history for the ACM runtime.
//
// It wraps influxdb-client-go v2 and writes three measurements:
//   - acm_transition: one point per finished deploy/undeploy/lock/... run
//   - acm_element_statistics: element state after each applied status report
//   - acm_participant_statistics: participant state and health changes
//
// Writes are non-blocking and batched (batch_size, flush_interval). Async
// write errors are delivered to the callback set with SetOnError.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history is optional
//	}
//	defer client.Close()
package influxdb
