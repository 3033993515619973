package arm

import (
	"context"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/bestman-robotics/bestman/logging"
	"github.com/bestman-robotics/bestman/motionplan/ik"
	"github.com/bestman-robotics/bestman/sim"
	"github.com/bestman-robotics/bestman/spatialmath"
)

var trajectoryColor = [3]float64{1, 0, 0}

// Executor commands the arm joints of a body. It does not own the body; callers must not run two
// motions on the same arm at once.
type Executor struct {
	engine sim.Engine
	body   sim.BodyID
	solver ik.Solver
	cfg    Config
	joints []sim.JointInfo
	logger logging.Logger
}

// NewExecutor reads the joint descriptions of the configured arm joints.
func NewExecutor(engine sim.Engine, body sim.BodyID, solver ik.Solver, cfg Config, logger logging.Logger) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	numJoints, err := engine.NumJoints(body)
	if err != nil {
		return nil, err
	}
	if cfg.EndEffectorLink < 0 || cfg.EndEffectorLink >= numJoints {
		return nil, errors.Errorf("end effector link %d out of range for body %d with %d links", cfg.EndEffectorLink, body, numJoints)
	}
	joints := make([]sim.JointInfo, 0, len(cfg.JointIndices))
	for _, idx := range cfg.JointIndices {
		info, err := engine.JointInfo(body, idx)
		if err != nil {
			return nil, errors.Wrap(err, "invalid arm joint")
		}
		if !info.Movable() {
			return nil, errors.Errorf("arm joint %d (%s) is fixed", idx, info.Name)
		}
		joints = append(joints, info)
	}
	return &Executor{
		engine: engine,
		body:   body,
		solver: solver,
		cfg:    cfg,
		joints: joints,
		logger: logger,
	}, nil
}

// Body returns the id of the arm body.
func (a *Executor) Body() sim.BodyID {
	return a.body
}

// DOF returns the number of arm joints.
func (a *Executor) DOF() int {
	return len(a.joints)
}

// JointIndices returns the engine indices of the arm joints.
func (a *Executor) JointIndices() []int {
	return append([]int(nil), a.cfg.JointIndices...)
}

// JointInfo describes every arm joint.
func (a *Executor) JointInfo() []sim.JointInfo {
	return append([]sim.JointInfo(nil), a.joints...)
}

// EndEffectorLink returns the link index of the end effector.
func (a *Executor) EndEffectorLink() int {
	return a.cfg.EndEffectorLink
}

// TCPLink returns the link index of the tool centre point.
func (a *Executor) TCPLink() int {
	return a.cfg.TCPLink
}

// TCPHeight returns the configured height of the tool centre point.
func (a *Executor) TCPHeight() float64 {
	return a.cfg.TCPHeight
}

// LowerLimits returns the lower limit of every arm joint.
func (a *Executor) LowerLimits() []float64 {
	return lo.Map(a.joints, func(j sim.JointInfo, _ int) float64 { return j.Lower })
}

// UpperLimits returns the upper limit of every arm joint.
func (a *Executor) UpperLimits() []float64 {
	return lo.Map(a.joints, func(j sim.JointInfo, _ int) float64 { return j.Upper })
}

// JointRanges returns upper minus lower limit for every arm joint.
func (a *Executor) JointRanges() []float64 {
	return lo.Map(a.joints, func(j sim.JointInfo, _ int) float64 { return j.Upper - j.Lower })
}

// JointBounds returns the [lower, upper] limits of every arm joint.
func (a *Executor) JointBounds() [][2]float64 {
	return lo.Map(a.joints, func(j sim.JointInfo, _ int) [2]float64 { return [2]float64{j.Lower, j.Upper} })
}

// CurrentJointPositions returns the position of every arm joint.
func (a *Executor) CurrentJointPositions() ([]float64, error) {
	out := make([]float64, len(a.joints))
	for i, j := range a.joints {
		state, err := a.engine.JointState(a.body, j.Index)
		if err != nil {
			return nil, err
		}
		out[i] = state.Position
	}
	return out, nil
}

// EndEffectorPose returns the world pose of the end effector's centre of mass.
func (a *Executor) EndEffectorPose() (spatialmath.Pose, error) {
	state, err := a.engine.LinkState(a.body, a.cfg.EndEffectorLink)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	return state.CenterOfMass, nil
}

func (a *Executor) checkDOF(positions []float64) error {
	if len(positions) != len(a.joints) {
		return errors.Errorf("expected %d joint positions, got %d", len(a.joints), len(positions))
	}
	return nil
}

// SetJointPositions teleports the arm joints, without simulating motion, then lets the engine
// settle.
func (a *Executor) SetJointPositions(ctx context.Context, positions []float64) error {
	if err := a.checkDOF(positions); err != nil {
		return err
	}
	for i, j := range a.joints {
		if err := a.engine.ResetJointState(a.body, j.Index, positions[i]); err != nil {
			return err
		}
	}
	return a.engine.Run(ctx, resetSettleTicks)
}

// MoveToJointPositions commands every arm joint in position control and runs the engine for a
// fixed settling period. Arrival is not checked.
func (a *Executor) MoveToJointPositions(ctx context.Context, positions []float64) error {
	if err := a.checkDOF(positions); err != nil {
		return err
	}
	for i, j := range a.joints {
		if err := a.engine.SetJointPositionTarget(a.body, j.Index, positions[i], sim.MotorOptions{}); err != nil {
			return err
		}
	}
	return a.engine.Run(ctx, moveSettleTicks)
}

// JointsToCartesian moves the arm to the given joint positions and returns the resulting end
// effector pose.
func (a *Executor) JointsToCartesian(ctx context.Context, positions []float64) (spatialmath.Pose, error) {
	if err := a.MoveToJointPositions(ctx, positions); err != nil {
		return spatialmath.Pose{}, err
	}
	return a.EndEffectorPose()
}

// CartesianToJoints solves for arm joint positions placing the end effector at pose. The arm's
// joint limits bound the solve and the reset positions bias it.
func (a *Executor) CartesianToJoints(ctx context.Context, pose spatialmath.Pose) ([]float64, error) {
	orientation := pose.Orientation()
	sol, err := a.solver.Solve(ctx, ik.Request{
		Body:              a.body,
		EndEffectorLink:   a.cfg.EndEffectorLink,
		Position:          pose.Point(),
		Orientation:       &orientation,
		LowerLimits:       a.LowerLimits(),
		UpperLimits:       a.UpperLimits(),
		JointRanges:       a.JointRanges(),
		RestPose:          a.cfg.ResetJointPositions,
		MaxIterations:     DefaultIKMaxIterations,
		ResidualThreshold: DefaultIKResidualThreshold,
	})
	if err != nil {
		return nil, err
	}
	if len(sol.Positions) < len(a.joints) {
		return nil, errors.Errorf("solver returned %d joint positions for a %d joint arm", len(sol.Positions), len(a.joints))
	}
	return sol.Positions[:len(a.joints)], nil
}

// IKError is the distance between the end effector and the goal position.
func (a *Executor) IKError(goal spatialmath.Pose) (float64, error) {
	pose, err := a.EndEffectorPose()
	if err != nil {
		return 0, err
	}
	return pose.Distance(goal), nil
}

// RotateEndEffector turns the last arm joint by angle and runs the engine until every joint is
// within tolerance of its target. Joints still off target after a bounded number of ticks are
// logged as a warning.
func (a *Executor) RotateEndEffector(ctx context.Context, angle float64) error {
	target, err := a.CurrentJointPositions()
	if err != nil {
		return err
	}
	target[len(target)-1] += angle
	if err := a.MoveToJointPositions(ctx, target); err != nil {
		return err
	}
	for tick := 0; ; tick++ {
		current, err := a.CurrentJointPositions()
		if err != nil {
			return err
		}
		settled := lo.EveryBy(lo.Range(len(target)), func(i int) bool {
			return math.Abs(current[i]-target[i]) < rotateTolerance
		})
		if settled {
			break
		}
		if tick >= maxRotateTicks {
			a.logger.Warnw("end effector did not settle", "ticks", maxRotateTicks, "target", target, "current", current)
			return nil
		}
		if err := a.engine.Run(ctx, 1); err != nil {
			return err
		}
	}
	a.logger.Info("rotate end effector completed")
	return nil
}

// MoveToPose moves the end effector along a straight line toward goal. Positions are linearly
// interpolated and orientations spherically interpolated over steps samples; each sample is solved
// with inverse kinematics and commanded without checking arrival. Only the final position error
// is compared with threshold.
func (a *Executor) MoveToPose(ctx context.Context, goal spatialmath.Pose, steps int, threshold float64) (Result, error) {
	if steps < 1 {
		return Result{}, errors.Errorf("steps must be at least 1, got %d", steps)
	}
	start, err := a.EndEffectorPose()
	if err != nil {
		return Result{}, err
	}
	for _, pose := range spatialmath.InterpolatePath(start, goal, steps) {
		positions, err := a.CartesianToJoints(ctx, pose)
		if err != nil {
			return Result{}, err
		}
		if err := a.MoveToJointPositions(ctx, positions); err != nil {
			return Result{}, err
		}
	}
	ikErr, err := a.IKError(goal)
	if err != nil {
		return Result{}, err
	}
	if ikErr >= threshold {
		a.logger.Warnw("arm did not reach the goal position", "goal", goal.Point(), "error", ikErr)
	}
	a.logger.Info("move end effector to goal pose finished")
	return Result{Reached: ikErr < threshold, Error: ikErr}, nil
}

// ExecuteTrajectory commands each joint configuration in order, lets the engine settle, and
// compares the final joint positions with the last configuration. An empty trajectory does
// nothing.
func (a *Executor) ExecuteTrajectory(ctx context.Context, trajectory [][]float64, threshold float64) (Result, error) {
	if len(trajectory) == 0 {
		return Result{Reached: true}, nil
	}
	for i, positions := range trajectory {
		if err := a.checkDOF(positions); err != nil {
			return Result{}, errors.Wrapf(err, "trajectory entry %d", i)
		}
	}

	var previous spatialmath.Pose
	for i, positions := range trajectory {
		if err := a.MoveToJointPositions(ctx, positions); err != nil {
			return Result{}, err
		}
		if !a.cfg.EnablePlot {
			continue
		}
		current, err := a.EndEffectorPose()
		if err != nil {
			return Result{}, err
		}
		if i != 0 {
			a.engine.AddDebugLine(sim.Line{
				From:  previous.Point(),
				To:    current.Point(),
				Color: trajectoryColor,
				Width: 3,
			})
		}
		previous = current
	}
	if err := a.engine.Run(ctx, moveSettleTicks); err != nil {
		return Result{}, err
	}

	current, err := a.CurrentJointPositions()
	if err != nil {
		return Result{}, err
	}
	last := trajectory[len(trajectory)-1]
	diffs := lo.Map(current, func(v float64, i int) float64 { return math.Abs(v - last[i]) })
	maxErr, err := stats.Max(diffs)
	if err != nil {
		return Result{}, err
	}
	meanErr, err := stats.Mean(diffs)
	if err != nil {
		return Result{}, err
	}
	over := lo.CountBy(diffs, func(d float64) bool { return d > threshold })
	if over > 0 {
		a.logger.Warnw("arm did not reach the trajectory end", "joints", over, "max_error", maxErr)
	}
	a.logger.Info("execute trajectory finished")
	return Result{
		Reached:             over == 0,
		Error:               maxErr,
		MeanJointError:      meanErr,
		JointsOverThreshold: over,
	}, nil
}
