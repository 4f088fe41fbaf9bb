// Package session models the lifecycle of a single conversation.
//
// A Session moves through the phases Idle → AwaitingContent → Playing →
// Ending → Idle. Transitions are validated against a fixed table so a late
// timer or a double end is reported as ErrInvalidTransition instead of
// silently corrupting state. The type itself is not synchronized; the engine
// owns the only mutable Session and guards it with its own lock.
//
// JoinCoordinator decides whether a nearby participant attaches to an
// in-progress session.
package session
