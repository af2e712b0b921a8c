package simulator

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
)

// HotSpot is a Gaussian heat source whose center moves along Path.
// Its contribution at distance d from the center is Amplitude*exp(-d²/Spread).
type HotSpot struct {
	Amplitude float64
	Spread    float64
	Path      func(t float64) (cx, cy float64)
}

type ThermalParams struct {
	FPS          float64
	Ambient      float64
	AmbientSwing float64
	AmbientRate  float64
	NoiseStdDev  float64
	HotSpots     []HotSpot
}

// DefaultThermalParams models a room near 23°C with one strong and one weaker
// heat source wandering across the sensor.
func DefaultThermalParams() ThermalParams {
	return ThermalParams{
		FPS:          10,
		Ambient:      23,
		AmbientSwing: 1,
		AmbientRate:  0.3,
		NoiseStdDev:  0.5,
		HotSpots: []HotSpot{
			{
				Amplitude: 15,
				Spread:    2,
				Path: func(t float64) (float64, float64) {
					return 3.5 + 2*math.Sin(0.5*t), 3.5 + 2*math.Cos(0.5*t)
				},
			},
			{
				Amplitude: 10,
				Spread:    3,
				Path: func(t float64) (float64, float64) {
					return 4.5 + 1.5*math.Cos(0.7*t), 2.5 + 1.5*math.Sin(0.4*t)
				},
			},
		},
	}
}

// MaxAmplitude returns the largest single hot spot amplitude.
func (p ThermalParams) MaxAmplitude() float64 {
	var m float64
	for _, s := range p.HotSpots {
		m = max(m, s.Amplitude)
	}
	return m
}

// AmbientAt is the background temperature at simulation time t.
func (p ThermalParams) AmbientAt(t float64) float64 {
	return p.Ambient + p.AmbientSwing*math.Sin(p.AmbientRate*t)
}

// ThermalSimulator generates successive frames. Each call advances the
// simulation clock by 1/FPS seconds. Hot spot contributions add up and are
// never clamped, so overlapping spots can exceed realistic temperatures.
type ThermalSimulator struct {
	params ThermalParams

	mu  sync.Mutex
	t   float64
	rng *rand.Rand
}

// NewThermalSimulator uses seed for the noise source; equal seeds give equal frames.
func NewThermalSimulator(params ThermalParams, seed uint64) *ThermalSimulator {
	if params.FPS <= 0 {
		params.FPS = 10
	}
	return &ThermalSimulator{
		params: params,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// NextFrame advances the simulation and returns the new frame together with
// the simulation time it was taken at.
func (s *ThermalSimulator) NextFrame() (domain.ThermalFrame, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.t += 1 / s.params.FPS
	return s.frameAt(s.t), s.t
}

// Stats samples a fresh frame and summarises it.
func (s *ThermalSimulator) Stats() domain.ThermalStats {
	frame, _ := s.NextFrame()
	return frame.Stats()
}

func (s *ThermalSimulator) frameAt(t float64) domain.ThermalFrame {
	type center struct{ x, y float64 }
	centers := make([]center, len(s.params.HotSpots))
	for i, spot := range s.params.HotSpots {
		centers[i].x, centers[i].y = spot.Path(t)
	}

	ambient := s.params.AmbientAt(t)

	var frame domain.ThermalFrame
	for r := range domain.ThermalRows {
		for c := range domain.ThermalCols {
			v := ambient
			for i, spot := range s.params.HotSpots {
				dy := float64(r) - centers[i].y
				dx := float64(c) - centers[i].x
				v += spot.Amplitude * math.Exp(-(dx*dx+dy*dy)/spot.Spread)
			}
			v += s.rng.NormFloat64() * s.params.NoiseStdDev
			frame[r][c] = v
		}
	}
	return frame
}
