// Package memory contains concrete core.MemoryStore implementations. The
// store interface resides in the core package; depend on core.MemoryStore and
// select an implementation at wiring time.
//
// Every store keeps at most Cap records per pair key and evicts the oldest
// first. Sub-packages add a SQLite-backed store (memory/sqlite) and an HTTP
// client for a remote conversations API (memory/remote).
package memory
