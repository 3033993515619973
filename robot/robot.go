// Package robot assembles a mobile manipulator from a base and an arm model and the components
// driving them.
package robot

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/bestman-robotics/bestman/components/arm"
	"github.com/bestman-robotics/bestman/components/base"
	"github.com/bestman-robotics/bestman/components/camera"
	"github.com/bestman-robotics/bestman/config"
	"github.com/bestman-robotics/bestman/control"
	"github.com/bestman-robotics/bestman/logging"
	"github.com/bestman-robotics/bestman/motionplan/ik"
	"github.com/bestman-robotics/bestman/sim"
	"github.com/bestman-robotics/bestman/spatialmath"
)

// ArmMountOffset is how far above the top of the base the arm is mounted.
const ArmMountOffset = 0.02

// Colorizer colours a mobile manipulator.
type Colorizer interface {
	ChangeRobotColor(base, arm sim.BodyID, light bool) error
}

// Robot is a mobile manipulator loaded into an engine.
type Robot struct {
	engine         sim.Engine
	baseID         sim.BodyID
	armID          sim.BodyID
	constraint     sim.ConstraintID
	armPlaceHeight float64
	loaded         []sim.BodyID

	navigator *base.Navigator
	arm       *arm.Executor
	camera    *camera.Camera
	logger    logging.Logger
}

// New loads the base and the arm at the configured pose, welds the arm on top of the base and
// builds the navigator, arm executor and camera.
func New(
	ctx context.Context,
	engine sim.Engine,
	colorizer Colorizer,
	cfg *config.Config,
	logger logging.Logger,
) (_ *Robot, err error) {
	if err := cfg.Robot.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid robot config")
	}
	initPose, err := cfg.Robot.Pose()
	if err != nil {
		return nil, err
	}

	r := &Robot{
		engine:         engine,
		armPlaceHeight: cfg.Robot.BaseHeight + ArmMountOffset,
		logger:         logger,
	}
	r.baseID, err = engine.LoadObject(ctx, cfg.Robot.BaseURDFPath, sim.LoadOptions{
		Name:      "base",
		Pose:      initPose,
		FixedBase: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot load base")
	}
	r.loaded = append(r.loaded, r.baseID)
	defer func() {
		if err != nil {
			err = multierr.Combine(err, r.remove())
		}
	}()
	r.armID, err = engine.LoadObject(ctx, cfg.Robot.ArmURDFPath, sim.LoadOptions{
		Name:      "arm",
		Pose:      initPose,
		FixedBase: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot load arm")
	}
	r.loaded = append(r.loaded, r.armID)

	r.constraint, err = engine.CreateFixedConstraint(
		r.baseID, sim.BaseLink, r.armID, sim.BaseLink,
		spatialmath.NewPoseFromPoint(r3.Vector{Z: r.armPlaceHeight - initPose.Point().Z}),
		spatialmath.NewZeroPose(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "cannot attach arm to base")
	}
	if err := r.SyncBaseArmPose(); err != nil {
		return nil, err
	}

	r.arm, err = arm.NewExecutor(engine, r.armID, ik.NewDampedLeastSquares(engine, logger.Sublogger("ik")),
		cfg.Robot.Arm, logger.Sublogger("arm"))
	if err != nil {
		return nil, err
	}
	if len(cfg.Robot.InitJointPositions) > 0 {
		if err := r.arm.SetJointPositions(ctx, cfg.Robot.InitJointPositions); err != nil {
			return nil, errors.Wrap(err, "cannot set initial joint positions")
		}
	}
	if err := colorizer.ChangeRobotColor(r.baseID, r.armID, false); err != nil {
		return nil, err
	}

	r.camera, err = camera.New(engine, r.baseID, r.armPlaceHeight, cfg.Camera, logger.Sublogger("camera"))
	if err != nil {
		return nil, err
	}

	pid, err := control.NewPID(cfg.Controller)
	if err != nil {
		return nil, err
	}
	r.navigator, err = base.NewNavigator(engine, r.baseID, pid, cfg.Navigation, logger.Sublogger("base"),
		base.WithPoseSync(func() error {
			if err := r.SyncBaseArmPose(); err != nil {
				return err
			}
			return r.camera.Update()
		}))
	if err != nil {
		return nil, err
	}

	logger.Infow("robot ready",
		"base", r.baseID, "arm", r.armID, "dof", r.arm.DOF(), "arm_place_height", r.armPlaceHeight)
	return r, nil
}

func (r *Robot) remove() error {
	var errs error
	for _, id := range r.loaded {
		errs = multierr.Append(errs, r.engine.RemoveObject(id))
	}
	return errs
}

// SyncBaseArmPose puts the arm on top of the base, at the base position and orientation.
func (r *Robot) SyncBaseArmPose() error {
	basePose, err := r.engine.BasePose(r.baseID)
	if err != nil {
		return err
	}
	p := basePose.Point()
	return r.engine.SetBasePose(r.armID,
		spatialmath.NewPose(r3.Vector{X: p.X, Y: p.Y, Z: r.armPlaceHeight}, basePose.Orientation()))
}

// BaseID returns the body id of the base.
func (r *Robot) BaseID() sim.BodyID {
	return r.baseID
}

// ArmID returns the body id of the arm.
func (r *Robot) ArmID() sim.BodyID {
	return r.armID
}

// DOF returns the number of controlled arm joints.
func (r *Robot) DOF() int {
	return r.arm.DOF()
}

// JointIndices returns the engine joint indices of the arm joints.
func (r *Robot) JointIndices() []int {
	return r.arm.JointIndices()
}

// TCPLink returns the link index of the tool center point.
func (r *Robot) TCPLink() int {
	return r.arm.TCPLink()
}

// TCPHeight returns the distance between the end effector and the tool center point.
func (r *Robot) TCPHeight() float64 {
	return r.arm.TCPHeight()
}

// EndEffectorLink returns the link index of the end effector.
func (r *Robot) EndEffectorLink() int {
	return r.arm.EndEffectorLink()
}

// ArmPlaceHeight returns the height of the arm base.
func (r *Robot) ArmPlaceHeight() float64 {
	return r.armPlaceHeight
}

// Navigator returns the base navigator.
func (r *Robot) Navigator() *base.Navigator {
	return r.navigator
}

// Arm returns the arm trajectory executor.
func (r *Robot) Arm() *arm.Executor {
	return r.arm
}

// Camera returns the camera mounted on the base.
func (r *Robot) Camera() *camera.Camera {
	return r.camera
}

// Size returns the larger horizontal extent of the base and the arm.
func (r *Robot) Size() (float64, error) {
	var size float64
	for _, id := range []sim.BodyID{r.baseID, r.armID} {
		box, err := r.engine.BoundingBox(id)
		if err != nil {
			return 0, err
		}
		extent := box.Size()
		size = math.Max(size, math.Max(extent.X, extent.Y))
	}
	return size, nil
}
