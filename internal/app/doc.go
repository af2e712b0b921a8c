// Package app holds the ground station's use cases: the periodic telemetry
// publisher and the handling of control commands received from operators.
// It depends on domain interfaces and small consumer-side interfaces, not on
// transports.
package app
