package visualization

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"github.com/bestman-robotics/bestman/sim"
)

const (
	plotPixelsPerMeter = 100
	plotMargin         = 0.5 // meters
)

// MapImage draws the scene from above: the footprint of every body and every debug line. +X points
// right and +Y up.
func (v *Visualizer) MapImage() (image.Image, error) {
	bodies := v.engine.Bodies()
	boxes := make([]sim.AABB, 0, len(bodies))
	colors := make([]color.Color, 0, len(bodies))
	bounds := sim.EmptyAABB()
	for _, body := range bodies {
		box, err := v.engine.BoundingBox(body)
		if err != nil {
			return nil, err
		}
		if box.IsEmpty() {
			continue
		}
		rgba, err := v.engine.Color(body, sim.BaseLink)
		if err != nil {
			return nil, err
		}
		boxes = append(boxes, box)
		colors = append(colors, color.NRGBA{
			R: uint8(rgba[0] * 255), G: uint8(rgba[1] * 255), B: uint8(rgba[2] * 255), A: 160,
		})
		bounds = bounds.Merge(box)
	}
	lines := v.engine.DebugLines()
	for _, line := range lines {
		bounds = bounds.Merge(sim.AABB{Min: line.From, Max: line.From})
		bounds = bounds.Merge(sim.AABB{Min: line.To, Max: line.To})
	}
	if bounds.IsEmpty() {
		return nil, errors.New("nothing to plot")
	}

	minX, minY := bounds.Min.X-plotMargin, bounds.Min.Y-plotMargin
	width := int(math.Ceil((bounds.Max.X - bounds.Min.X + 2*plotMargin) * plotPixelsPerMeter))
	height := int(math.Ceil((bounds.Max.Y - bounds.Min.Y + 2*plotMargin) * plotPixelsPerMeter))
	toPixel := func(x, y float64) (float64, float64) {
		return (x - minX) * plotPixelsPerMeter, float64(height) - (y-minY)*plotPixelsPerMeter
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()

	for i, box := range boxes {
		x0, y0 := toPixel(box.Min.X, box.Max.Y)
		x1, y1 := toPixel(box.Max.X, box.Min.Y)
		dc.DrawRectangle(x0, y0, x1-x0, y1-y0)
		dc.SetColor(colors[i])
		dc.FillPreserve()
		dc.SetColor(color.Black)
		dc.SetLineWidth(1)
		dc.Stroke()
	}

	for _, line := range lines {
		x0, y0 := toPixel(line.From.X, line.From.Y)
		x1, y1 := toPixel(line.To.X, line.To.Y)
		dc.SetRGB(line.Color[0], line.Color[1], line.Color[2])
		dc.SetLineWidth(line.Width)
		dc.DrawLine(x0, y0, x1, y1)
		dc.Stroke()
	}
	return dc.Image(), nil
}

// PlotMap writes MapImage to a PNG file.
func (v *Visualizer) PlotMap(path string) error {
	img, err := v.MapImage()
	if err != nil {
		return err
	}
	if err := gg.SavePNG(path, img); err != nil {
		return errors.Wrapf(err, "cannot save map to %q", path)
	}
	v.logger.Infow("saved map", "path", path)
	return nil
}
