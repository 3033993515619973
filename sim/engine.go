// Package sim defines the physics engine collaborator that robot components drive. Components
// hold an Engine handle and body identifiers; they never own engine state.
package sim

import (
	"context"
	"image"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/bestman-robotics/bestman/referenceframe/urdf"
	"github.com/bestman-robotics/bestman/spatialmath"
)

// BaseLink is the link index of a body's root link.
const BaseLink = -1

// ErrUnknownBody is returned when a body id does not name a loaded body.
var ErrUnknownBody = errors.New("unknown body")

// BodyID identifies a body loaded into an engine.
type BodyID int

// ConstraintID identifies a constraint between two bodies.
type ConstraintID int

// JointInfo describes a joint of a loaded body.
type JointInfo = urdf.JointInfo

// LoadOptions controls how a URDF is placed into the world.
type LoadOptions struct {
	Name      string
	Pose      spatialmath.Pose
	Scaling   float64
	FixedBase bool
}

// BodyInfo describes a loaded body.
type BodyInfo struct {
	ID        BodyID
	Name      string
	URDFPath  string
	Scaling   float64
	FixedBase bool
}

// JointState is the current position and velocity of a joint.
type JointState struct {
	Position float64
	Velocity float64
}

// LinkState holds the world poses of a link. CenterOfMass is the inertial frame, Frame the
// URDF link frame.
type LinkState struct {
	CenterOfMass spatialmath.Pose
	Frame        spatialmath.Pose
}

// MotorOptions bounds a position controlled joint. Zero values fall back to the joint limits.
type MotorOptions struct {
	MaxVelocity float64
	Force       float64
}

// Line is a debug line drawn in the world.
type Line struct {
	From  r3.Vector
	To    r3.Vector
	Color [3]float64
	Width float64
}

// CameraRequest describes a pinhole camera. The camera looks along +X of its pose with +Z up.
type CameraRequest struct {
	Pose   spatialmath.Pose
	Width  int
	Height int
	FOV    float64 // vertical field of view in degrees
	Near   float64
	Far    float64
}

// CameraImage is a rendered camera frame. Depth is in meters along the optical axis, row major,
// and Segmentation holds the body id seen at each pixel or -1.
type CameraImage struct {
	Width        int
	Height       int
	RGB          *image.RGBA
	Depth        []float64
	Segmentation []int
}

// StepHook is called after every engine tick.
type StepHook func(tick int64)

// Engine is a rigid body simulation that bodies can be loaded into and stepped.
type Engine interface {
	// ID identifies the engine client.
	ID() string
	// LoadObject loads a URDF file into the world.
	LoadObject(ctx context.Context, urdfPath string, opts LoadOptions) (BodyID, error)
	RemoveObject(id BodyID) error
	Bodies() []BodyID
	BodyInfo(id BodyID) (BodyInfo, error)

	// BasePose returns the pose of the root link's inertial frame.
	BasePose(id BodyID) (spatialmath.Pose, error)
	SetBasePose(id BodyID, pose spatialmath.Pose) error
	SetBaseVelocity(id BodyID, linear, angular r3.Vector) error

	NumJoints(id BodyID) (int, error)
	JointInfo(id BodyID, joint int) (JointInfo, error)
	JointState(id BodyID, joint int) (JointState, error)
	// ResetJointState sets a joint position immediately, without simulating motion.
	ResetJointState(id BodyID, joint int, position float64) error
	// SetJointPositionTarget commands a joint motor in position control mode.
	SetJointPositionTarget(id BodyID, joint int, target float64, opts MotorOptions) error
	LinkState(id BodyID, link int) (LinkState, error)
	// ForwardKinematics returns the world pose of a link's inertial frame for the given joint
	// positions, one per joint, without changing the body.
	ForwardKinematics(id BodyID, link int, positions []float64) (spatialmath.Pose, error)

	// CreateFixedConstraint welds child to parent. The frames are expressed relative to the
	// inertial frames of the constrained links.
	CreateFixedConstraint(parent BodyID, parentLink int, child BodyID, childLink int,
		parentFrame, childFrame spatialmath.Pose) (ConstraintID, error)
	RemoveConstraint(id ConstraintID) error

	// BoundingBox returns the world axis aligned bounding box of a whole body.
	BoundingBox(id BodyID) (AABB, error)
	LinkBoundingBox(id BodyID, link int) (AABB, error)

	SetColor(id BodyID, link int, rgba [4]float64) error
	Color(id BodyID, link int) ([4]float64, error)
	AddDebugLine(line Line) int
	DebugLines() []Line
	RemoveDebugLines()
	RenderCamera(ctx context.Context, req CameraRequest) (*CameraImage, error)

	// Run advances the simulation by the given number of ticks.
	Run(ctx context.Context, ticks int) error
	// Wait advances the simulation for the given amount of simulated time.
	Wait(ctx context.Context, d time.Duration) error
	TimeStep() time.Duration
	Ticks() int64
	// AddStepHook registers a hook called after every tick and returns a function removing it.
	AddStepHook(hook StepHook) func()
	Disconnect() error
}
