package heatmap

import (
	"image/color"
	"math"
)

// LUTSize is the number of entries in the colour lookup table.
const LUTSize = 256

// Jet is a 256-entry approximation of the "jet" colormap. Each channel is a
// triangle of slope 4 peaking at 0.25 (blue), 0.5 (green) and 0.75 (red),
// flattened to full intensity over a window of width 0.5.
var Jet = buildJet()

func buildJet() [LUTSize]color.RGBA {
	var lut [LUTSize]color.RGBA
	for i := range LUTSize {
		t := float64(i) / (LUTSize - 1)
		lut[i] = color.RGBA{
			R: channel(t, 0.75),
			G: channel(t, 0.50),
			B: channel(t, 0.25),
			A: 0xff,
		}
	}
	return lut
}

func channel(t, center float64) uint8 {
	v := 1.5 - math.Abs(t-center)*4
	v = math.Max(0, math.Min(1, v))
	return uint8(v * 255)
}

// Index maps a temperature to a LUT index. The span is floored at a small
// epsilon so tempMax <= tempMin never divides by zero.
func Index(value, tempMin, tempMax float64) int {
	span := math.Max(tempMax-tempMin, minSpan)
	n := (value - tempMin) / span
	n = math.Max(0, math.Min(1, n))
	if math.IsNaN(n) {
		n = 0
	}
	return int(math.Round(n * (LUTSize - 1)))
}

const minSpan = 0.01
