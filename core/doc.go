// Package core provides the foundational domain types and collaborator
// interfaces used by the encounter engine. It defines:
//
//   - Participants and the Registry that resolves them
//   - PairKey, the order-independent identifier for a participant set
//   - DialogueTurn and ConversationRecord (the unit of pair memory)
//   - Events emitted over a conversation's lifecycle
//   - Movement Status and the StatusBoard shared with pathing
//   - Pluggable collaborators: MemoryStore, Notifier and Random
//
// The package keeps implementation concerns (timers, persistence, transport)
// out of scope and exposes small interfaces so deployments can supply their
// own backends.
package core
