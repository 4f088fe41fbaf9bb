// Package runner drives the encounter engine from a proximity world.
//
// Each tick the Runner optionally lets idle participants wander, expires
// speech bubbles, turns newly formed bumps into encounter attempts, offers
// nearby participants a chance to join a talking session and periodically
// runs the engine's health check. Step is deterministic given the world and
// the engine's random sources, which makes the loop testable without timers;
// Run wraps it in a ticker.
package runner
