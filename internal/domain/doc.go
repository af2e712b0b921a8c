// Package domain defines the core types and interfaces of the ground station.
//
// Concept-oriented files (session.go, telemetry.go, flight.go) hold shared value types
// and the consumer-side interfaces that keep the other packages free of import cycles.
// No implementation code lives here.
package domain
