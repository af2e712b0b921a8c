// Package broadcast fans telemetry out to WebSocket clients using the actor pattern.
//
// A single goroutine owns the set of live connections and processes register,
// unregister, send and broadcast commands from a channel, so membership changes never
// race with a fan-out pass. Each connection gets its own writer goroutine with a bounded
// queue; the hub only enqueues and never performs network I/O itself. A connection whose
// queue is full or whose write fails is removed, and removal is final.
package broadcast
