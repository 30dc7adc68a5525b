// Package model holds the entities and lifecycle enums of the ACM runtime.
//
// Automation compositions are instances of commissioned composition
// definitions. Each composition owns an ordered list of elements; every
// element is acted on by exactly one participant.
//
// # Key Types
//
//   - CompositionDefinition: commissioned ServiceTemplate plus prime state
//   - AutomationComposition: instance with DeployState/LockState roll-up
//   - Element: unit of work owned by one participant
//   - Participant: remote agent, referenced by id only
//   - Order: single lifecycle command enum with pure Transition mapping
//
// # Copy Semantics
//
// Entities handed across component boundaries are always DeepCopy snapshots.
// A dispatcher holding a snapshot never observes later writes.
package model
