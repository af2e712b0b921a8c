package simulator

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
)

const (
	DefaultCenterLat   = 36.8065
	DefaultCenterLon   = 10.1815
	DefaultRadius      = 0.005 // degrees
	DefaultStepDegrees = 2.0
	DefaultSpeed       = 2.5 // m/s

	baseAltitude     = 15.0
	altitudeSwing    = 5.0
	fullBattery      = 85.0
	batteryDrain     = 0.02 // percent per tick
	batteryPackTicks = 500  // battery pack swapped every this many ticks
)

// PositionModel generates a circular trajectory around a fixed center.
// A sample depends only on the tick counter and the commanded speed.
type PositionModel struct {
	CenterLat   float64
	CenterLon   float64
	Radius      float64
	StepDegrees float64

	speedBits atomic.Uint64
}

func NewPositionModel() *PositionModel {
	m := &PositionModel{
		CenterLat:   DefaultCenterLat,
		CenterLon:   DefaultCenterLon,
		Radius:      DefaultRadius,
		StepDegrees: DefaultStepDegrees,
	}
	m.SetSpeed(DefaultSpeed)
	return m
}

// SetSpeed changes the speed reported in subsequent samples.
func (m *PositionModel) SetSpeed(metersPerSecond float64) {
	m.speedBits.Store(math.Float64bits(metersPerSecond))
}

func (m *PositionModel) Speed() float64 {
	return math.Float64frombits(m.speedBits.Load())
}

// Sample returns the position at tick, stamped with now.
func (m *PositionModel) Sample(tick int64, now time.Time) domain.TelemetrySample {
	angle := math.Mod(float64(tick)*m.StepDegrees, 360)
	if angle < 0 {
		angle += 360
	}
	rad := angle * math.Pi / 180

	return domain.TelemetrySample{
		Lat:       m.CenterLat + m.Radius*math.Cos(rad),
		Lon:       m.CenterLon + m.Radius*math.Sin(rad),
		Alt:       baseAltitude + altitudeSwing*math.Sin(float64(tick)*math.Pi/180),
		Heading:   angle,
		Speed:     m.Speed(),
		Battery:   Battery(tick),
		Timestamp: now.Unix(),
	}
}

// Battery is the simulated charge at tick. It drains linearly and jumps back
// to full every batteryPackTicks ticks.
func Battery(tick int64) float64 {
	cycle := tick % batteryPackTicks
	if cycle < 0 {
		cycle += batteryPackTicks
	}
	return fullBattery - float64(cycle)*batteryDrain
}
