// Package topology computes element ordering for composition transitions.
//
// Elements are sequenced by the startPhase property of their node template
// for deploy, undeploy, lock, unlock and delete, and by the multi-valued
// stage property for prepare, migrate and migration revert. All functions
// are pure: they read the snapshot and template they are given and never
// cache results between calls.
package topology
