// Package dispatch drives an accepted lifecycle transition to completion.
//
// A transition is split into partitions by the topology package: start
// phases for deploy, undeploy, lock, unlock and delete, stages for
// migration, precheck and prepare, and a single partition for update and
// review. Partitions run strictly in order. Within one, a command per
// participant is queued concurrently, then the dispatcher waits until every
// element of the partition is done or the per-partition deadline passes.
//
// Outcomes:
//
//	nil                      every partition finished
//	model.ErrTimeout         a deadline passed; unfinished elements keep
//	                         their transitional state
//	model.ErrPartialFailure  a participant reported FAILED
//
// Nothing is rolled back automatically. Each run is traced with an
// OpenTelemetry span and counted in Prometheus and InfluxDB.
package dispatch
