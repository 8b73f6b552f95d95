// Package plot renders a light curve with its detected transits as a PNG.
package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"

	"github.com/chrissnell/exotransit/internal/transit"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/floats"
)

// supersample is the drawing scale before the final downsize
const supersample = 2

const (
	marginLeft   = 80
	marginRight  = 20
	marginTop    = 30
	marginBottom = 30
)

var (
	rawColor      = color.NRGBA{150, 150, 150, 255}
	smoothedColor = color.NRGBA{31, 119, 180, 255}
	ingressColor  = color.NRGBA{44, 160, 44, 255}
	egressColor   = color.NRGBA{214, 39, 40, 255}
	axisColor     = color.NRGBA{0, 0, 0, 255}
)

// Options sets the output size in pixels
type Options struct {
	Width  int
	Height int
}

// frame maps data coordinates onto pixels of the supersampled canvas
type frame struct {
	tMin, tMax float64
	fMin, fMax float64
	x0, y0     int
	w, h       int
}

func (f frame) px(t, flux float64) (int, int) {
	x := f.x0 + int((t-f.tMin)/(f.tMax-f.tMin)*float64(f.w-1))
	y := f.y0 + f.h - 1 - int((flux-f.fMin)/(f.fMax-f.fMin)*float64(f.h-1))
	return x, y
}

// Render draws the raw samples as dots, the smoothed curve as a line and a
// vertical marker at each first (tI) and last (tIV) contact
func Render(label string, samples []transit.Sample, result *transit.Result, opts Options) (*image.NRGBA, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("need at least 2 samples to plot, got %d", len(samples))
	}
	if opts.Width <= marginLeft+marginRight || opts.Height <= marginTop+marginBottom {
		return nil, fmt.Errorf("plot size %dx%d is too small", opts.Width, opts.Height)
	}

	fluxes := make([]float64, len(samples))
	for i, s := range samples {
		fluxes[i] = s.Flux
	}
	fr := frame{
		tMin: samples[0].Time,
		tMax: samples[len(samples)-1].Time,
		fMin: floats.Min(fluxes),
		fMax: floats.Max(fluxes),
		x0:   marginLeft * supersample,
		y0:   marginTop * supersample,
		w:    (opts.Width - marginLeft - marginRight) * supersample,
		h:    (opts.Height - marginTop - marginBottom) * supersample,
	}
	if fr.tMax <= fr.tMin {
		return nil, fmt.Errorf("samples span no time")
	}
	if fr.fMax == fr.fMin {
		fr.fMin -= 0.5
		fr.fMax += 0.5
	}

	canvas := imaging.New(opts.Width*supersample, opts.Height*supersample, color.White)

	for _, s := range samples {
		x, y := fr.px(s.Time, s.Flux)
		canvas.Set(x, y, rawColor)
	}

	if result != nil {
		for i := 1; i < len(result.Curve); i++ {
			x1, y1 := fr.px(result.Curve[i-1].Time, result.Curve[i-1].Flux)
			x2, y2 := fr.px(result.Curve[i].Time, result.Curve[i].Flux)
			line(canvas, x1, y1, x2, y2, smoothedColor)
			line(canvas, x1, y1+1, x2, y2+1, smoothedColor)
		}

		for _, ev := range result.Events {
			vline(canvas, fr, ev.T1, ingressColor)
			vline(canvas, fr, ev.T4, egressColor)
		}
	}

	line(canvas, fr.x0, fr.y0, fr.x0, fr.y0+fr.h, axisColor)
	line(canvas, fr.x0, fr.y0+fr.h, fr.x0+fr.w, fr.y0+fr.h, axisColor)

	img := imaging.Resize(canvas, opts.Width, opts.Height, imaging.Lanczos)

	title := label
	if result != nil {
		title = fmt.Sprintf("%s: %d transits", label, len(result.Events))
	}
	drawText(img, marginLeft, marginTop-10, title)
	drawText(img, 4, marginTop+10, fmt.Sprintf("%.5f", fr.fMax))
	drawText(img, 4, opts.Height-marginBottom, fmt.Sprintf("%.5f", fr.fMin))
	drawText(img, marginLeft, opts.Height-10, fmt.Sprintf("%.3f", fr.tMin))
	tMaxLabel := fmt.Sprintf("%.3f", fr.tMax)
	drawText(img, opts.Width-marginRight-7*len(tMaxLabel), opts.Height-10, tMaxLabel)

	return img, nil
}

// WriteFile renders the plot and saves it as <dir>/<label>.png
func WriteFile(dir, label string, samples []transit.Sample, result *transit.Result, opts Options) (string, error) {
	img, err := Render(label, samples, result, opts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, label+".png")
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("failed to save plot: %w", err)
	}
	return path, nil
}

func vline(img *image.NRGBA, fr frame, t float64, c color.Color) {
	if t < fr.tMin || t > fr.tMax {
		return
	}
	x, _ := fr.px(t, fr.fMin)
	for dx := -supersample; dx < 2*supersample; dx++ {
		line(img, x+dx, fr.y0, x+dx, fr.y0+fr.h, c)
	}
}

// line draws a Bresenham segment between two pixels
func line(img *image.NRGBA, x1, y1, x2, y2 int, c color.Color) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}

	err := dx + dy
	for {
		img.Set(x1, y1, c)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			err += dx
			y1 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawText draws text with its baseline at (x, y) using basicfont
func drawText(img draw.Image, x, y int, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(axisColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
