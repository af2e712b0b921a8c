package domain

import "context"

// TelemetrySample is one position report. It is a value type; once produced
// it is never mutated.
type TelemetrySample struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Alt       float64 `json:"alt"`
	Heading   float64 `json:"heading"`
	Speed     float64 `json:"speed"`
	Battery   float64 `json:"battery"`
	Timestamp int64   `json:"ts"`
}

// TelemetrySink receives every published sample in addition to the WebSocket hub.
type TelemetrySink interface {
	PublishTelemetry(ctx context.Context, payload []byte) error
}

const (
	ThermalRows = 8
	ThermalCols = 8
)

// ThermalFrame is one reading of the 8x8 thermal sensor in degrees Celsius,
// indexed [row][col].
type ThermalFrame [ThermalRows][ThermalCols]float64

// ThermalStats summarises a frame.
type ThermalStats struct {
	MinTemp float64 `json:"min_temp"`
	MaxTemp float64 `json:"max_temp"`
	AvgTemp float64 `json:"avg_temp"`
	Pixels  int     `json:"pixels"`
}

// Stats computes min, max and mean over all cells.
func (f ThermalFrame) Stats() ThermalStats {
	s := ThermalStats{MinTemp: f[0][0], MaxTemp: f[0][0], Pixels: ThermalRows * ThermalCols}
	var sum float64
	for _, row := range f {
		for _, v := range row {
			s.MinTemp = min(s.MinTemp, v)
			s.MaxTemp = max(s.MaxTemp, v)
			sum += v
		}
	}
	s.AvgTemp = sum / float64(s.Pixels)
	return s
}

// RenderedImage is an encoded still image.
type RenderedImage struct {
	Data        []byte
	Width       int
	Height      int
	ContentType string
}
