// Package auth issues and validates login sessions.
//
// Sessions are opaque random tokens with a fixed lifetime measured from creation.
// Expiry is evaluated lazily on lookup; an expired session is evicted by the lookup
// that discovers it. Nothing sweeps the store in the background.
package auth
