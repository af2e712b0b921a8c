package heatmap

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	"golang.org/x/image/draw"
)

const (
	DefaultSize    = 320
	DefaultTempMin = 18.0
	DefaultTempMax = 45.0
	DefaultQuality = 85
)

type Options struct {
	Size    int
	TempMin float64
	TempMax float64
	Quality int
}

func DefaultOptions() Options {
	return Options{
		Size:    DefaultSize,
		TempMin: DefaultTempMin,
		TempMax: DefaultTempMax,
		Quality: DefaultQuality,
	}
}

// Colorize maps every cell of frame through the Jet table, producing an
// 8x8 image.
func Colorize(frame domain.ThermalFrame, tempMin, tempMax float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, domain.ThermalCols, domain.ThermalRows))
	for r := range domain.ThermalRows {
		for c := range domain.ThermalCols {
			img.SetRGBA(c, r, Jet[Index(frame[r][c], tempMin, tempMax)])
		}
	}
	return img
}

// Rasterize colorizes frame and upsamples it bilinearly to opts.Size square.
// The result is the exact pixel grid that Render encodes.
func Rasterize(frame domain.ThermalFrame, opts Options) *image.RGBA {
	small := Colorize(frame, opts.TempMin, opts.TempMax)
	dst := image.NewRGBA(image.Rect(0, 0, opts.Size, opts.Size))
	draw.BiLinear.Scale(dst, dst.Bounds(), small, small.Bounds(), draw.Src, nil)
	return dst
}

// Render produces a JPEG heatmap of frame.
func Render(frame domain.ThermalFrame, opts Options) (domain.RenderedImage, error) {
	if opts.Size <= 0 {
		return domain.RenderedImage{}, fmt.Errorf("invalid output size %d", opts.Size)
	}
	quality := min(max(opts.Quality, 1), 100)

	img := Rasterize(frame, opts)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return domain.RenderedImage{}, fmt.Errorf("failed to encode heatmap: %w", err)
	}

	return domain.RenderedImage{
		Data:        buf.Bytes(),
		Width:       opts.Size,
		Height:      opts.Size,
		ContentType: "image/jpeg",
	}, nil
}
