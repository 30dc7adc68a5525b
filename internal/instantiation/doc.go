// Package instantiation is the facade for composition instance operations:
// create, update (including migration and its precheck), delete, lifecycle
// commands, migration revert, queries and element status reports.
//
// Every mutation follows the same shape:
//
//  1. take the coordination lock for the instance (all instances, in sorted
//     order, for a command batch);
//  2. read current state and validate the request against it;
//  3. write the new state;
//  4. release the lock;
//  5. hand the committed snapshot to the dispatcher.
//
// Validation failures are returned synchronously and leave nothing written.
// Failures after dispatch (participant timeouts, failed elements) are only
// visible through the composition's StateChangeResult and element messages.
package instantiation
