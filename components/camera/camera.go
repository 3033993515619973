// Package camera implements a pinhole camera mounted on a mobile base. The camera follows the base
// pose and renders through the simulation engine.
package camera

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/bestman-robotics/bestman/logging"
	"github.com/bestman-robotics/bestman/sim"
	"github.com/bestman-robotics/bestman/spatialmath"
)

// Config places the camera on the base and describes its image.
type Config struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	FOV    float64 `json:"fov"` // vertical, degrees
	Near   float64 `json:"near"`
	Far    float64 `json:"far"`
	// MountHeight is measured from the arm place height.
	MountHeight   float64 `json:"mount_height"`
	ForwardOffset float64 `json:"forward_offset"`
	// Pitch tilts the camera down in radians.
	Pitch float64 `json:"pitch"`
}

// DefaultConfig returns the camera configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Width:         320,
		Height:        240,
		FOV:           50,
		Near:          0.01,
		Far:           20,
		MountHeight:   0.7,
		ForwardOffset: 0.2,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg Config) Validate() error {
	var errs error
	if cfg.Width <= 0 || cfg.Height <= 0 {
		errs = multierr.Append(errs, errors.Errorf("invalid camera resolution %dx%d", cfg.Width, cfg.Height))
	}
	if cfg.FOV <= 0 || cfg.FOV >= 180 {
		errs = multierr.Append(errs, errors.Errorf("camera fov must be in (0, 180), got %v", cfg.FOV))
	}
	if cfg.Near < 0 || cfg.Far <= cfg.Near {
		errs = multierr.Append(errs, errors.Errorf("invalid camera clipping planes near=%v far=%v", cfg.Near, cfg.Far))
	}
	return errs
}

// DepthMap is a row major depth image in meters along the optical axis.
type DepthMap struct {
	Width  int
	Height int
	Data   []float64
	Far    float64
}

// At returns the depth at a pixel.
func (dm *DepthMap) At(x, y int) float64 {
	return dm.Data[y*dm.Width+x]
}

// Gray16 maps depths onto 16 bit grey levels with Far as white.
func (dm *DepthMap) Gray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, dm.Width, dm.Height))
	for y := 0; y < dm.Height; y++ {
		for x := 0; x < dm.Width; x++ {
			v := math.Min(dm.At(x, y)/dm.Far, 1)
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(v * math.MaxUint16))})
		}
	}
	return img
}

// Camera is a camera fixed to a base body.
type Camera struct {
	engine         sim.Engine
	base           sim.BodyID
	armPlaceHeight float64
	cfg            Config
	intrinsics     *Intrinsics
	pose           spatialmath.Pose
	logger         logging.Logger
}

// New creates a camera on the given base and places it at the current base pose.
func New(engine sim.Engine, base sim.BodyID, armPlaceHeight float64, cfg Config, logger logging.Logger) (*Camera, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	intrinsics, err := NewIntrinsicsFromFOV(cfg.Width, cfg.Height, cfg.FOV)
	if err != nil {
		return nil, err
	}
	c := &Camera{
		engine:         engine,
		base:           base,
		armPlaceHeight: armPlaceHeight,
		cfg:            cfg,
		intrinsics:     intrinsics,
		logger:         logger,
	}
	if err := c.Update(); err != nil {
		return nil, err
	}
	return c, nil
}

// Update recomputes the camera pose from the base pose.
func (c *Camera) Update() error {
	basePose, err := c.engine.BasePose(c.base)
	if err != nil {
		return errors.Wrap(err, "cannot update camera pose")
	}
	position := basePose.Transform(r3.Vector{X: c.cfg.ForwardOffset})
	position.Z = c.armPlaceHeight + c.cfg.MountHeight
	c.pose = spatialmath.NewPoseFromEuler(position, spatialmath.EulerAngles{Pitch: c.cfg.Pitch, Yaw: basePose.Yaw()})
	return nil
}

// Pose returns the world pose of the camera as of the last Update.
func (c *Camera) Pose() spatialmath.Pose {
	return c.pose
}

// Intrinsics returns the pinhole parameters of the camera.
func (c *Camera) Intrinsics() *Intrinsics {
	return c.intrinsics
}

// Capture renders the scene from the camera.
func (c *Camera) Capture(ctx context.Context) (*sim.CameraImage, error) {
	return c.engine.RenderCamera(ctx, sim.CameraRequest{
		Pose:   c.pose,
		Width:  c.cfg.Width,
		Height: c.cfg.Height,
		FOV:    c.cfg.FOV,
		Near:   c.cfg.Near,
		Far:    c.cfg.Far,
	})
}

// RGBImage renders a colour image.
func (c *Camera) RGBImage(ctx context.Context) (*image.RGBA, error) {
	frame, err := c.Capture(ctx)
	if err != nil {
		return nil, err
	}
	return frame.RGB, nil
}

// DepthImage renders a depth image.
func (c *Camera) DepthImage(ctx context.Context) (*DepthMap, error) {
	frame, err := c.Capture(ctx)
	if err != nil {
		return nil, err
	}
	return &DepthMap{Width: frame.Width, Height: frame.Height, Data: frame.Depth, Far: c.cfg.Far}, nil
}

// SaveRGBImage renders a colour image and writes it to path. The format follows the extension.
func (c *Camera) SaveRGBImage(ctx context.Context, path string) error {
	img, err := c.RGBImage(ctx)
	if err != nil {
		return err
	}
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "cannot save rgb image to %q", path)
	}
	c.logger.Debugw("saved rgb image", "path", path)
	return nil
}

// SaveDepthImage renders a depth image and writes it to path as grey levels.
func (c *Camera) SaveDepthImage(ctx context.Context, path string) error {
	dm, err := c.DepthImage(ctx)
	if err != nil {
		return err
	}
	if err := imaging.Save(dm.Gray16(), path); err != nil {
		return errors.Wrapf(err, "cannot save depth image to %q", path)
	}
	c.logger.Debugw("saved depth image", "path", path)
	return nil
}

// Points3D back projects every pixel that hit geometry into the camera frame, with +X forward,
// +Y left and +Z up.
func (c *Camera) Points3D(ctx context.Context) ([]r3.Vector, error) {
	dm, err := c.DepthImage(ctx)
	if err != nil {
		return nil, err
	}
	points := make([]r3.Vector, 0, len(dm.Data))
	for v := 0; v < dm.Height; v++ {
		for u := 0; u < dm.Width; u++ {
			d := dm.At(u, v)
			if d >= c.cfg.Far {
				continue
			}
			// pixel centers
			x, y, z := c.intrinsics.PixelToPoint(float64(u)+0.5, float64(v)+0.5, d)
			points = append(points, r3.Vector{X: z, Y: -x, Z: -y})
		}
	}
	return points, nil
}

// ToWorld transforms a pose in the camera frame to the world frame.
func (c *Camera) ToWorld(pose spatialmath.Pose) spatialmath.Pose {
	return spatialmath.Compose(c.pose, pose)
}
