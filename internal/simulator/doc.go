// Package simulator produces synthetic sensor data: a circular flight path
// for position telemetry and an 8x8 thermal grid with drifting hot spots.
// Both are deterministic for a given tick counter or random seed.
package simulator
