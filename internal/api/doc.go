// Package api implements the HTTP REST API and WebSocket server of the ACM
// runtime.
//
// This package provides:
//   - REST endpoints to commission, prime, deprime and decommission
//     composition definitions
//   - REST endpoints to create, update, migrate, command and delete
//     composition instances
//   - an element status endpoint for participants that do not use MQTT
//   - a WebSocket hub broadcasting composition, definition and participant
//     state changes
//   - the Prometheus metrics endpoint and a JSON status summary
//
// # Routes
//
//	GET    /api/v1/health
//	GET    /api/v1/status
//	POST   /api/v1/compositions                       commission (YAML or JSON body)
//	GET    /api/v1/compositions
//	GET    /api/v1/compositions/{id}
//	PUT    /api/v1/compositions/{id}                  replace template
//	DELETE /api/v1/compositions/{id}                  decommission
//	GET    /api/v1/compositions/{id}/elements
//	PUT    /api/v1/compositions/{id}/priming          {"prime_order":"PRIME"}
//	GET    /api/v1/compositions/{id}/instances
//	POST   /api/v1/compositions/{id}/instances
//	GET    /api/v1/compositions/{id}/instances/{iid}
//	PUT    /api/v1/compositions/{id}/instances/{iid}  update or migrate
//	DELETE /api/v1/compositions/{id}/instances/{iid}
//	POST   /api/v1/compositions/{id}/instances/{iid}/precheck
//	POST   /api/v1/compositions/{id}/instances/{iid}/rollback
//	PUT    /api/v1/compositions/{id}/instances/{iid}/state     {"order":"DEPLOY"}
//	PUT    /api/v1/compositions/{id}/instances/{iid}/elements/{eid}/status
//	GET    /api/v1/instances
//	POST   /api/v1/instances/commands                 {"instance_ids":[...],"order":"LOCK"}
//	GET    /api/v1/participants
//	GET    /api/v1/participants/{pid}
//	GET    /api/v1/ws
//
// Lifecycle commands are accepted synchronously and answered 202; their
// outcome arrives through the WebSocket hub or by polling the instance.
package api
