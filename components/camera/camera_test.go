package camera

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/bestman-robotics/bestman/logging"
	"github.com/bestman-robotics/bestman/sim"
	"github.com/bestman-robotics/bestman/sim/kinematic"
	"github.com/bestman-robotics/bestman/spatialmath"
	"github.com/bestman-robotics/bestman/utils"
)

const armPlaceHeight = 0.32

func testConfig() Config {
	return Config{
		Width:         32,
		Height:        24,
		FOV:           60,
		Near:          0.01,
		Far:           10,
		MountHeight:   0.2,
		ForwardOffset: 0.1,
	}
}

// setupScene loads a base at the origin facing a sink whose near face is at x=1.7.
func setupScene(t *testing.T) (*kinematic.Engine, sim.BodyID, sim.BodyID) {
	t.Helper()
	ctx := context.Background()
	e := kinematic.New(kinematic.Config{}, logging.NewTestLogger(t))
	base, err := e.LoadObject(ctx, utils.ResolveFile("assets/mobile_manipulator/segbot/segbot.urdf"),
		sim.LoadOptions{FixedBase: true})
	test.That(t, err, test.ShouldBeNil)
	sink, err := e.LoadObject(ctx, utils.ResolveFile("assets/kitchen/elementB.urdf"), sim.LoadOptions{
		Pose:      spatialmath.NewPoseFromPoint(r3.Vector{X: 2}),
		FixedBase: true,
	})
	test.That(t, err, test.ShouldBeNil)
	return e, base, sink
}

func TestIntrinsics(t *testing.T) {
	params, err := NewIntrinsicsFromFOV(640, 480, 90)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.Fx, test.ShouldAlmostEqual, 240)
	test.That(t, params.Fy, test.ShouldAlmostEqual, 240)
	test.That(t, params.Ppx, test.ShouldEqual, 320)
	test.That(t, params.Ppy, test.ShouldEqual, 240)

	x, y, z := params.PixelToPoint(560, 0, 2)
	test.That(t, x, test.ShouldAlmostEqual, 2)
	test.That(t, y, test.ShouldAlmostEqual, -2)
	test.That(t, z, test.ShouldEqual, 2)
	px, py := params.PointToPixel(x, y, z)
	test.That(t, px, test.ShouldEqual, 560)
	test.That(t, py, test.ShouldEqual, 0)
	px, py = params.PointToPixel(1, 1, 0)
	test.That(t, px, test.ShouldEqual, -1)
	test.That(t, py, test.ShouldEqual, -1)

	_, err = NewIntrinsicsFromFOV(640, 480, 180)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewIntrinsicsFromFOV(0, 480, 60)
	test.That(t, err, test.ShouldNotBeNil)
	var nilParams *Intrinsics
	test.That(t, nilParams.CheckValid(), test.ShouldNotBeNil)
}

func TestConfigValidate(t *testing.T) {
	test.That(t, DefaultConfig().Validate(), test.ShouldBeNil)

	cfg := testConfig()
	cfg.Width = 0
	cfg.FOV = 200
	cfg.Far = 0
	err := cfg.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "resolution")
	test.That(t, err.Error(), test.ShouldContainSubstring, "fov")
	test.That(t, err.Error(), test.ShouldContainSubstring, "clipping")

	e, base, _ := setupScene(t)
	_, err = New(e, base, armPlaceHeight, cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = New(e, base+5, armPlaceHeight, testConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCameraPose(t *testing.T) {
	e, base, _ := setupScene(t)
	cam, err := New(e, base, armPlaceHeight, testConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cam.Pose().Point().X, test.ShouldAlmostEqual, 0.1)
	test.That(t, cam.Pose().Point().Z, test.ShouldAlmostEqual, 0.52)

	test.That(t, e.SetBasePose(base, spatialmath.NewPose(r3.Vector{X: 1, Y: 1},
		spatialmath.YawQuaternion(math.Pi/2))), test.ShouldBeNil)
	// the pose only follows the base on Update
	test.That(t, cam.Pose().Point().X, test.ShouldAlmostEqual, 0.1)
	test.That(t, cam.Update(), test.ShouldBeNil)
	test.That(t, cam.Pose().Point().X, test.ShouldAlmostEqual, 1)
	test.That(t, cam.Pose().Point().Y, test.ShouldAlmostEqual, 1.1)
	test.That(t, cam.Pose().Point().Z, test.ShouldAlmostEqual, 0.52)
	test.That(t, cam.Pose().Yaw(), test.ShouldAlmostEqual, math.Pi/2)

	cfg := testConfig()
	cfg.Pitch = 0.3
	tilted, err := New(e, base, armPlaceHeight, cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	forward := spatialmath.RotateVector(tilted.Pose().Orientation(), r3.Vector{X: 1})
	test.That(t, forward.Z, test.ShouldAlmostEqual, -math.Sin(0.3))
}

func TestImages(t *testing.T) {
	ctx := context.Background()
	e, base, sink := setupScene(t)
	cam, err := New(e, base, armPlaceHeight, testConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	frame, err := cam.Capture(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Segmentation[12*32+16], test.ShouldEqual, int(sink))

	rgb, err := cam.RGBImage(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rgb.Bounds().Dx(), test.ShouldEqual, 32)
	test.That(t, rgb.Bounds().Dy(), test.ShouldEqual, 24)

	depth, err := cam.DepthImage(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, depth.At(16, 12), test.ShouldAlmostEqual, 1.6, 1e-6)
	test.That(t, depth.At(0, 0), test.ShouldEqual, 10.)
	gray := depth.Gray16()
	test.That(t, gray.Gray16At(0, 0).Y, test.ShouldEqual, uint16(math.MaxUint16))
	test.That(t, gray.Gray16At(16, 12).Y, test.ShouldBeLessThan, gray.Gray16At(0, 0).Y)

	dir := t.TempDir()
	rgbPath := filepath.Join(dir, "rgb.png")
	depthPath := filepath.Join(dir, "depth.png")
	test.That(t, cam.SaveRGBImage(ctx, rgbPath), test.ShouldBeNil)
	test.That(t, cam.SaveDepthImage(ctx, depthPath), test.ShouldBeNil)
	for _, p := range []string{rgbPath, depthPath} {
		_, err := os.Stat(p)
		test.That(t, err, test.ShouldBeNil)
	}
	test.That(t, cam.SaveRGBImage(ctx, filepath.Join(dir, "rgb")), test.ShouldNotBeNil)
}

func TestPoints3D(t *testing.T) {
	ctx := context.Background()
	e, base, _ := setupScene(t)
	cam, err := New(e, base, armPlaceHeight, testConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	points, err := cam.Points3D(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(points), test.ShouldBeGreaterThan, 0)
	test.That(t, len(points), test.ShouldBeLessThan, 32*24)
	for _, p := range points {
		test.That(t, p.X, test.ShouldAlmostEqual, 1.6, 1e-6)
		world := cam.ToWorld(spatialmath.NewPoseFromPoint(p)).Point()
		test.That(t, world.X, test.ShouldAlmostEqual, 1.7, 1e-6)
		test.That(t, world.Y, test.ShouldBeBetweenOrEqual, -0.6-1e-6, 0.6+1e-6)
		test.That(t, world.Z, test.ShouldBeBetweenOrEqual, -1e-6, 0.9+1e-6)
	}

	// turned away from the sink there is nothing to see
	test.That(t, e.SetBasePose(base, spatialmath.NewPose(r3.Vector{}, spatialmath.YawQuaternion(math.Pi/2))), test.ShouldBeNil)
	test.That(t, cam.Update(), test.ShouldBeNil)
	points, err = cam.Points3D(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, points, test.ShouldBeEmpty)
}
