// Package engine implements the conversation orchestrator.
//
// The Engine is the only writer of conversation state. It turns proximity
// bumps into sessions, drives a session through its phases and guarantees
// that every path, including panics, timeouts and operator intervention,
// ends in a single cleanup routine that returns it to Idle.
//
// # Lifecycle
//
//	Encounter ──▶ AwaitingContent ──content──▶ Playing ──all turns──▶ Ending ──▶ Idle
//	                    │                         │
//	                    └─silence/failure─▶ Ending (marker, grace)   timeout / ForceEnd
//
// An encounter is accepted only when no session is active, both participants
// are idle, their pair key is out of cooldown and the engagement gate passes.
// On acceptance both participants are marked talking, the cooldown is recorded
// and two timers start: a global ceiling and an awkward-silence timer that
// only matters until content arrives.
//
// During playback turns are displayed strictly in order. Each display waits
// for the bubble's read time plus a short gap before the next one.
//
// # Concurrency Model
//
// All state lives behind one mutex. Timers and the playback goroutine carry
// the epoch of the session they were started for and become no-ops once that
// session has been released, so a late timer can never touch a newer session.
// Generation and display waits observe a per-session context that cleanup
// cancels.
//
// # Events
//
// Events are queued while the state change is made and delivered to
// callbacks on a single dispatcher goroutine, so observers see them in the
// order the state changed. Callbacks may call back into the engine.
//
// # Operator Control
//
// ForceEnd releases the active session at any phase. ResetStuck clears
// participants left talking outside the active session. HealthCheck
// force-ends a session older than MaxConversationTime and logs a warning.
package engine
