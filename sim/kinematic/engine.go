// Package kinematic implements an in-memory sim.Engine. Bodies are articulated kinematically:
// position controlled joints move toward their targets every tick, bases move only when reset
// or given a velocity, and fixed constraints are re-solved after every tick.
package kinematic

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/bestman-robotics/bestman/logging"
	"github.com/bestman-robotics/bestman/referenceframe/urdf"
	"github.com/bestman-robotics/bestman/sim"
	"github.com/bestman-robotics/bestman/spatialmath"
)

const (
	// DefaultTimeStep matches a 240Hz physics loop.
	DefaultTimeStep = time.Second / 240
	// trackingGain is the fraction of the remaining position error a motor removes per tick when
	// no velocity cap applies.
	trackingGain = 0.3
)

var errDisconnected = errors.New("engine is disconnected")

// Config configures an Engine.
type Config struct {
	TimeStep time.Duration `json:"time_step" mapstructure:"time_step"`
	// RealTime paces ticks against the wall clock.
	RealTime bool `json:"real_time" mapstructure:"real_time"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to pace real time simulation.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

type constraint struct {
	parent      sim.BodyID
	parentLink  int
	child       sim.BodyID
	childLink   int
	parentFrame spatialmath.Pose
	childFrame  spatialmath.Pose
}

type hookEntry struct {
	id   int
	hook sim.StepHook
}

// Engine is a kinematic simulation. It is safe for concurrent use, but concurrent callers are
// not isolated from each other.
type Engine struct {
	id       string
	logger   logging.Logger
	clock    clock.Clock
	timeStep time.Duration
	realTime bool

	mu             sync.Mutex
	bodies         map[sim.BodyID]*body
	nextBody       sim.BodyID
	constraints    map[sim.ConstraintID]constraint
	nextConstraint sim.ConstraintID
	lines          []sim.Line
	hooks          []hookEntry
	nextHook       int
	ticks          int64
	closed         bool
}

var _ sim.Engine = (*Engine)(nil)

// New returns an empty kinematic engine.
func New(cfg Config, logger logging.Logger, opts ...Option) *Engine {
	if cfg.TimeStep <= 0 {
		cfg.TimeStep = DefaultTimeStep
	}
	e := &Engine{
		id:          uuid.NewString(),
		logger:      logger,
		clock:       clock.New(),
		timeStep:    cfg.TimeStep,
		realTime:    cfg.RealTime,
		bodies:      map[sim.BodyID]*body{},
		constraints: map[sim.ConstraintID]constraint{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger.Debugw("created kinematic engine", "id", e.id, "time_step", e.timeStep, "real_time", e.realTime)
	return e
}

// ID returns the client id of the engine.
func (e *Engine) ID() string {
	return e.id
}

// LoadObject parses a URDF file and places it in the world.
func (e *Engine) LoadObject(ctx context.Context, urdfPath string, opts sim.LoadOptions) (sim.BodyID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	model, err := urdf.LoadModel(urdfPath)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot load %q", urdfPath)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, errDisconnected
	}
	id := e.nextBody
	e.nextBody++
	if opts.Name == "" {
		opts.Name = model.Name()
	}
	e.bodies[id] = newBody(sim.BodyInfo{
		ID:        id,
		Name:      opts.Name,
		URDFPath:  urdfPath,
		Scaling:   opts.Scaling,
		FixedBase: opts.FixedBase,
	}, model, opts.Pose)
	e.logger.Debugw("loaded object", "name", opts.Name, "id", id, "path", urdfPath, "joints", model.NumJoints())
	return id, nil
}

// RemoveObject removes a body and every constraint attached to it.
func (e *Engine) RemoveObject(id sim.BodyID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.body(id); err != nil {
		return err
	}
	delete(e.bodies, id)
	for cid, c := range e.constraints {
		if c.parent == id || c.child == id {
			delete(e.constraints, cid)
		}
	}
	return nil
}

// Bodies returns the ids of every loaded body in load order.
func (e *Engine) Bodies() []sim.BodyID {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]sim.BodyID, 0, len(e.bodies))
	for id := range e.bodies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BodyInfo describes a loaded body.
func (e *Engine) BodyInfo(id sim.BodyID) (sim.BodyInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.body(id)
	if err != nil {
		return sim.BodyInfo{}, err
	}
	return b.info, nil
}

// BasePose returns the world pose of a body's root inertial frame.
func (e *Engine) BasePose(id sim.BodyID) (spatialmath.Pose, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.body(id)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	return b.base, nil
}

// SetBasePose teleports a body.
func (e *Engine) SetBasePose(id sim.BodyID, pose spatialmath.Pose) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.body(id)
	if err != nil {
		return err
	}
	b.base = pose
	return nil
}

// SetBaseVelocity sets the linear and angular velocity of a free floating body. Fixed base bodies
// ignore it.
func (e *Engine) SetBaseVelocity(id sim.BodyID, linear, angular r3.Vector) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.body(id)
	if err != nil {
		return err
	}
	b.linear, b.angular = linear, angular
	return nil
}

// NumJoints returns the number of joints of a body, fixed joints included.
func (e *Engine) NumJoints(id sim.BodyID) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.body(id)
	if err != nil {
		return 0, err
	}
	return b.model.NumJoints(), nil
}

// JointInfo describes a joint of a body.
func (e *Engine) JointInfo(id sim.BodyID, joint int) (sim.JointInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.body(id)
	if err != nil {
		return sim.JointInfo{}, err
	}
	return b.model.Joint(joint)
}

// JointState returns the position and velocity of a joint.
func (e *Engine) JointState(id sim.BodyID, joint int) (sim.JointState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bodyJoint(id, joint)
	if err != nil {
		return sim.JointState{}, err
	}
	s := b.joints[joint]
	return sim.JointState{Position: s.position, Velocity: s.velocity}, nil
}

// ResetJointState sets a joint position and clears its motor.
func (e *Engine) ResetJointState(id sim.BodyID, joint int, position float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bodyJoint(id, joint)
	if err != nil {
		return err
	}
	b.joints[joint] = jointState{position: position}
	return nil
}

// SetJointPositionTarget commands a joint to move toward target on the following ticks.
func (e *Engine) SetJointPositionTarget(id sim.BodyID, joint int, target float64, opts sim.MotorOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bodyJoint(id, joint)
	if err != nil {
		return err
	}
	info, err := b.model.Joint(joint)
	if err != nil {
		return err
	}
	if !info.Movable() {
		return errors.Errorf("joint %d (%s) of body %d is fixed", joint, info.Name, id)
	}
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return errors.Errorf("invalid target %v for joint %d of body %d", target, joint, id)
	}
	b.joints[joint].motor = &motor{target: target, maxVelocity: opts.MaxVelocity}
	return nil
}

// LinkState returns the world poses of a link. The base link is -1.
func (e *Engine) LinkState(id sim.BodyID, link int) (sim.LinkState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.body(id)
	if err != nil {
		return sim.LinkState{}, err
	}
	frames, err := b.linkFrames(b.positions())
	if err != nil {
		return sim.LinkState{}, err
	}
	return b.linkState(frames, link)
}

// ForwardKinematics returns the world pose of a link's inertial frame for the given joint
// positions.
func (e *Engine) ForwardKinematics(id sim.BodyID, link int, positions []float64) (spatialmath.Pose, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.body(id)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	frames, err := b.linkFrames(positions)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	state, err := b.linkState(frames, link)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	return state.CenterOfMass, nil
}

// CreateFixedConstraint welds the base of child to a link of parent.
func (e *Engine) CreateFixedConstraint(
	parent sim.BodyID, parentLink int,
	child sim.BodyID, childLink int,
	parentFrame, childFrame spatialmath.Pose,
) (sim.ConstraintID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.body(parent)
	if err != nil {
		return 0, err
	}
	if _, err := p.linkName(parentLink); err != nil {
		return 0, err
	}
	if _, err := e.body(child); err != nil {
		return 0, err
	}
	if childLink != sim.BaseLink {
		return 0, errors.Errorf("fixed constraints can only hold the base link of a body, got link %d", childLink)
	}
	id := e.nextConstraint
	e.nextConstraint++
	e.constraints[id] = constraint{
		parent:      parent,
		parentLink:  parentLink,
		child:       child,
		childLink:   childLink,
		parentFrame: parentFrame,
		childFrame:  childFrame,
	}
	return id, nil
}

// RemoveConstraint deletes a constraint.
func (e *Engine) RemoveConstraint(id sim.ConstraintID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.constraints[id]; !ok {
		return errors.Errorf("unknown constraint %d", id)
	}
	delete(e.constraints, id)
	return nil
}

// BoundingBox returns the world bounding box of every link of a body.
func (e *Engine) BoundingBox(id sim.BodyID) (sim.AABB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.body(id)
	if err != nil {
		return sim.AABB{}, err
	}
	frames, err := b.linkFrames(b.positions())
	if err != nil {
		return sim.AABB{}, err
	}
	box := sim.EmptyAABB()
	for link := sim.BaseLink; link < b.model.NumJoints(); link++ {
		linkBox, _, err := b.linkAABB(frames, link)
		if err != nil {
			return sim.AABB{}, err
		}
		box = box.Merge(linkBox)
	}
	return box, nil
}

// LinkBoundingBox returns the world bounding box of one link. Links without geometry have a
// degenerate box at their centre of mass.
func (e *Engine) LinkBoundingBox(id sim.BodyID, link int) (sim.AABB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.body(id)
	if err != nil {
		return sim.AABB{}, err
	}
	frames, err := b.linkFrames(b.positions())
	if err != nil {
		return sim.AABB{}, err
	}
	box, _, err := b.linkAABB(frames, link)
	return box, err
}

// SetColor sets the rendered colour of a link.
func (e *Engine) SetColor(id sim.BodyID, link int, rgba [4]float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.body(id)
	if err != nil {
		return err
	}
	if _, err := b.linkName(link); err != nil {
		return err
	}
	b.colors[link] = rgba
	return nil
}

// Color returns the rendered colour of a link.
func (e *Engine) Color(id sim.BodyID, link int) ([4]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.body(id)
	if err != nil {
		return [4]float64{}, err
	}
	return b.color(link)
}

// AddDebugLine stores a debug line and returns its index.
func (e *Engine) AddDebugLine(line sim.Line) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = append(e.lines, line)
	return len(e.lines) - 1
}

// DebugLines returns every debug line drawn so far.
func (e *Engine) DebugLines() []sim.Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]sim.Line, len(e.lines))
	copy(out, e.lines)
	return out
}

// RemoveDebugLines clears the debug lines.
func (e *Engine) RemoveDebugLines() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = nil
}

// Run advances the simulation tick by tick. Step hooks run after each tick without the engine
// lock held, so they may query the engine.
func (e *Engine) Run(ctx context.Context, ticks int) error {
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return errDisconnected
		}
		e.step()
		tick := e.ticks
		hooks := make([]sim.StepHook, 0, len(e.hooks))
		for _, h := range e.hooks {
			hooks = append(hooks, h.hook)
		}
		e.mu.Unlock()

		for _, h := range hooks {
			h(tick)
		}
		if e.realTime {
			e.clock.Sleep(e.timeStep)
		}
	}
	return nil
}

// Wait runs the simulation for d of simulated time.
func (e *Engine) Wait(ctx context.Context, d time.Duration) error {
	return e.Run(ctx, int(d/e.timeStep))
}

// TimeStep returns the simulated duration of one tick.
func (e *Engine) TimeStep() time.Duration {
	return e.timeStep
}

// Ticks returns the number of ticks run so far.
func (e *Engine) Ticks() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

// AddStepHook registers a hook called after every tick.
func (e *Engine) AddStepHook(hook sim.StepHook) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextHook
	e.nextHook++
	e.hooks = append(e.hooks, hookEntry{id: id, hook: hook})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, h := range e.hooks {
			if h.id == id {
				e.hooks = append(e.hooks[:i], e.hooks[i+1:]...)
				return
			}
		}
	}
}

// Disconnect removes every body and stops the engine. Calling it twice is an error.
func (e *Engine) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errDisconnected
	}
	e.closed = true
	e.bodies = map[sim.BodyID]*body{}
	e.constraints = map[sim.ConstraintID]constraint{}
	e.hooks = nil
	e.lines = nil
	e.logger.Debugw("disconnected kinematic engine", "id", e.id, "ticks", e.ticks)
	return nil
}

// step must be called with the lock held.
func (e *Engine) step() {
	dt := e.timeStep.Seconds()
	for _, b := range e.bodies {
		b.step(dt)
	}
	e.solveConstraints()
	e.ticks++
}

func (e *Engine) solveConstraints() {
	ids := make([]sim.ConstraintID, 0, len(e.constraints))
	for id := range e.constraints {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		c := e.constraints[id]
		parent, child := e.bodies[c.parent], e.bodies[c.child]
		if parent == nil || child == nil {
			continue
		}
		frames, err := parent.linkFrames(parent.positions())
		if err != nil {
			e.logger.Warnw("cannot solve constraint", "constraint", id, "error", err)
			continue
		}
		anchor, err := parent.linkState(frames, c.parentLink)
		if err != nil {
			e.logger.Warnw("cannot solve constraint", "constraint", id, "error", err)
			continue
		}
		child.base = spatialmath.Compose(
			spatialmath.Compose(anchor.CenterOfMass, c.parentFrame),
			spatialmath.PoseInverse(c.childFrame),
		)
	}
}

func (e *Engine) body(id sim.BodyID) (*body, error) {
	if e.closed {
		return nil, errDisconnected
	}
	b, ok := e.bodies[id]
	if !ok {
		return nil, errors.Wrapf(sim.ErrUnknownBody, "body %d", id)
	}
	return b, nil
}

func (e *Engine) bodyJoint(id sim.BodyID, joint int) (*body, error) {
	b, err := e.body(id)
	if err != nil {
		return nil, err
	}
	if joint < 0 || joint >= len(b.joints) {
		return nil, errors.Errorf("joint index %d out of range for body %d with %d joints", joint, id, len(b.joints))
	}
	return b, nil
}
