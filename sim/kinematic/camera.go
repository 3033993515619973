package kinematic

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/bestman-robotics/bestman/sim"
	"github.com/bestman-robotics/bestman/utils"
)

var backgroundColor = color.RGBA{R: 178, G: 204, B: 229, A: 255}

type renderTarget struct {
	box   sim.AABB
	body  sim.BodyID
	color [4]float64
}

// RenderCamera ray casts the link bounding boxes of every body through a pinhole camera.
func (e *Engine) RenderCamera(ctx context.Context, req sim.CameraRequest) (*sim.CameraImage, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, errors.Errorf("invalid camera resolution %dx%d", req.Width, req.Height)
	}
	if req.FOV <= 0 || req.FOV >= 180 {
		return nil, errors.Errorf("invalid camera field of view %v", req.FOV)
	}
	if req.Near < 0 || req.Far <= req.Near {
		return nil, errors.Errorf("invalid camera clipping planes near=%v far=%v", req.Near, req.Far)
	}
	targets, err := e.renderTargets()
	if err != nil {
		return nil, err
	}

	img := &sim.CameraImage{
		Width:        req.Width,
		Height:       req.Height,
		RGB:          image.NewRGBA(image.Rect(0, 0, req.Width, req.Height)),
		Depth:        make([]float64, req.Width*req.Height),
		Segmentation: make([]int, req.Width*req.Height),
	}
	focal := float64(req.Height) / 2 / math.Tan(utils.DegToRad(req.FOV)/2)
	cx, cy := float64(req.Width)/2, float64(req.Height)/2
	origin := req.Pose.Point()

	for v := 0; v < req.Height; v++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for u := 0; u < req.Width; u++ {
			// camera frame: +X forward, +Y left, +Z up
			local := r3.Vector{X: 1, Y: -(float64(u) + 0.5 - cx) / focal, Z: -(float64(v) + 0.5 - cy) / focal}
			dir := req.Pose.Transform(local).Sub(origin)

			idx := v*req.Width + u
			best := req.Far
			hit := -1
			var normal r3.Vector
			for i, target := range targets {
				t, n, ok := target.box.IntersectRay(origin, dir)
				if !ok || t < req.Near || t >= best {
					continue
				}
				best, hit, normal = t, i, n
			}
			img.Depth[idx] = best
			if hit < 0 {
				img.Segmentation[idx] = -1
				img.RGB.SetRGBA(u, v, backgroundColor)
				continue
			}
			img.Segmentation[idx] = int(targets[hit].body)
			img.RGB.SetRGBA(u, v, shade(targets[hit].color, normal, dir))
		}
	}
	return img, nil
}

func (e *Engine) renderTargets() ([]renderTarget, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errDisconnected
	}
	var targets []renderTarget
	for id, b := range e.bodies {
		frames, err := b.linkFrames(b.positions())
		if err != nil {
			return nil, err
		}
		for link := sim.BaseLink; link < b.model.NumJoints(); link++ {
			box, ok, err := b.linkAABB(frames, link)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			c, err := b.color(link)
			if err != nil {
				return nil, err
			}
			targets = append(targets, renderTarget{box: box, body: id, color: c})
		}
	}
	return targets, nil
}

// shade applies lambertian shading toward the viewer.
func shade(rgba [4]float64, normal, dir r3.Vector) color.RGBA {
	intensity := 0.4 + 0.6*math.Abs(normal.Dot(dir.Normalize()))
	channel := func(c float64) uint8 {
		return uint8(math.Round(utils.Clamp(c*intensity, 0, 1) * 255))
	}
	return color.RGBA{R: channel(rgba[0]), G: channel(rgba[1]), B: channel(rgba[2]), A: 255}
}
