package simulator

import (
	"math"
	"testing"
	"time"

	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	"github.com/stretchr/testify/assert"
)

var epoch = time.Unix(1700000000, 0)

func TestPositionModel_Deterministic(t *testing.T) {
	a, b := NewPositionModel(), NewPositionModel()

	var first, second []domain.TelemetrySample
	for tick := int64(1); tick <= 100; tick++ {
		first = append(first, a.Sample(tick, epoch))
	}
	for tick := int64(1); tick <= 100; tick++ {
		second = append(second, b.Sample(tick, epoch))
	}

	assert.Equal(t, first, second)
}

func TestPositionModel_KnownTicks(t *testing.T) {
	m := NewPositionModel()

	s := m.Sample(0, epoch)
	assert.InDelta(t, DefaultCenterLat+DefaultRadius, s.Lat, 1e-12)
	assert.InDelta(t, DefaultCenterLon, s.Lon, 1e-12)
	assert.InDelta(t, 15.0, s.Alt, 1e-12)
	assert.Equal(t, 0.0, s.Heading)
	assert.Equal(t, 2.5, s.Speed)
	assert.Equal(t, 85.0, s.Battery)
	assert.Equal(t, int64(1700000000), s.Timestamp)

	// 45 ticks * 2° = 90°: due east of center, altitude at sin(45°).
	s = m.Sample(45, epoch)
	assert.InDelta(t, DefaultCenterLat, s.Lat, 1e-12)
	assert.InDelta(t, DefaultCenterLon+DefaultRadius, s.Lon, 1e-12)
	assert.InDelta(t, 15+5*math.Sin(math.Pi/4), s.Alt, 1e-12)
	assert.Equal(t, 90.0, s.Heading)

	// 90 ticks: altitude peaks.
	assert.InDelta(t, 20.0, m.Sample(90, epoch).Alt, 1e-12)
}

func TestPositionModel_HeadingWraps(t *testing.T) {
	m := NewPositionModel()
	for tick := int64(0); tick < 1000; tick++ {
		s := m.Sample(tick, epoch)
		assert.GreaterOrEqual(t, s.Heading, 0.0)
		assert.Less(t, s.Heading, 360.0)
		assert.InDelta(t, DefaultRadius, math.Hypot(s.Lat-DefaultCenterLat, s.Lon-DefaultCenterLon), 1e-12)
	}
	assert.Equal(t, m.Sample(0, epoch).Heading, m.Sample(180, epoch).Heading)
}

func TestBattery(t *testing.T) {
	assert.Equal(t, 85.0, Battery(0))
	assert.InDelta(t, 83.0, Battery(100), 1e-9)
	assert.InDelta(t, 75.02, Battery(499), 1e-9)
	assert.Equal(t, 85.0, Battery(500))

	for tick := int64(0); tick < 2000; tick++ {
		b := Battery(tick)
		assert.GreaterOrEqual(t, b, 0.0)
		assert.LessOrEqual(t, b, 100.0)
	}
}

func TestPositionModel_SetSpeed(t *testing.T) {
	m := NewPositionModel()
	m.SetSpeed(7.5)
	assert.Equal(t, 7.5, m.Sample(3, epoch).Speed)
}
