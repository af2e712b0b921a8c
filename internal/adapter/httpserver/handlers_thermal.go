package httpserver

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Ahmedmecatronique/AquaWing/internal/heatmap"
	apperrors "github.com/Ahmedmecatronique/AquaWing/internal/platform/errors"
)

const (
	minHeatmapSize = 8
	maxHeatmapSize = 2048
	tempLimit      = 1000.0
)

func (s *Server) registerThermalRoutes() {
	s.echo.GET("/thermal", s.handleThermal, s.requireAuth)
}

func (s *Server) handleThermal(c echo.Context) error {
	opts, err := s.heatmapOptions(c)
	if err != nil {
		return err
	}

	frame, simTime := s.thermal.NextFrame()

	start := s.clock.Now()
	img, err := heatmap.Render(frame, opts)
	if err != nil {
		s.observeRender("error", start, 0)
		return apperrors.InternalError("failed to render heatmap", err)
	}
	s.observeRender("ok", start, len(img.Data))

	h := c.Response().Header()
	h.Set(echo.HeaderCacheControl, "no-store")
	h.Set("X-Frame-Time", strconv.FormatFloat(simTime, 'f', 3, 64))
	if err := c.Blob(http.StatusOK, img.ContentType, img.Data); err != nil {
		return fmt.Errorf("failed to send heatmap: %w", err)
	}
	return nil
}

// heatmapOptions starts from the configured defaults and applies the
// size, min, max and quality query parameters.
func (s *Server) heatmapOptions(c echo.Context) (heatmap.Options, error) {
	opts := heatmap.Options{
		Size:    s.config.HeatmapSize,
		TempMin: s.config.HeatmapTempMin,
		TempMax: s.config.HeatmapTempMax,
		Quality: s.config.HeatmapQuality,
	}

	if v := c.QueryParam("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < minHeatmapSize || n > maxHeatmapSize {
			return opts, apperrors.ValidationError(fmt.Sprintf("size must be an integer between %d and %d", minHeatmapSize, maxHeatmapSize)).
				WithField("size", v)
		}
		opts.Size = n
	}
	if v := c.QueryParam("quality"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return opts, apperrors.ValidationError("quality must be an integer between 1 and 100").WithField("quality", v)
		}
		opts.Quality = n
	}

	var err error
	if opts.TempMin, err = parseTemp(c, "min", opts.TempMin); err != nil {
		return opts, err
	}
	if opts.TempMax, err = parseTemp(c, "max", opts.TempMax); err != nil {
		return opts, err
	}
	if opts.TempMin > opts.TempMax {
		return opts, apperrors.ValidationError("min must not exceed max").
			WithField("min", opts.TempMin).
			WithField("max", opts.TempMax)
	}

	return opts, nil
}

func parseTemp(c echo.Context, name string, fallback float64) (float64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.Abs(f) > tempLimit {
		return 0, apperrors.ValidationError(fmt.Sprintf("%s must be a temperature in °C", name)).WithField(name, v)
	}
	return f, nil
}

func (s *Server) observeRender(status string, start time.Time, size int) {
	if s.heatmapMetrics == nil {
		return
	}
	s.heatmapMetrics.Renders.WithLabelValues(status).Inc()
	s.heatmapMetrics.RenderDuration.Observe(s.clock.Since(start).Seconds())
	if size > 0 {
		s.heatmapMetrics.ImageBytes.Observe(float64(size))
	}
}
