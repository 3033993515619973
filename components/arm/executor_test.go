package arm

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bestman-robotics/bestman/logging"
	"github.com/bestman-robotics/bestman/motionplan/ik"
	"github.com/bestman-robotics/bestman/sim"
	"github.com/bestman-robotics/bestman/sim/kinematic"
	"github.com/bestman-robotics/bestman/spatialmath"
	"github.com/bestman-robotics/bestman/utils"
)

var restPose = []float64{0, -0.5, 1.0, -0.5, 0.3, 0.1}

func testConfig() Config {
	return Config{
		JointIndices:        []int{0, 1, 2, 3, 4, 5},
		EndEffectorLink:     6,
		TCPLink:             7,
		TCPHeight:           0.15,
		ResetJointPositions: restPose,
	}
}

func setupExecutor(t *testing.T, cfg Config) (*Executor, *kinematic.Engine, *observer.ObservedLogs) {
	t.Helper()
	logger, observed := logging.NewObservedTestLogger(t)
	e := kinematic.New(kinematic.Config{}, logger)
	id, err := e.LoadObject(context.Background(), utils.ResolveFile("assets/mobile_manipulator/ur5e/ur5e.urdf"),
		sim.LoadOptions{FixedBase: true})
	test.That(t, err, test.ShouldBeNil)
	a, err := NewExecutor(e, id, ik.NewDampedLeastSquares(e, logger), cfg, logger.Sublogger("arm"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.SetJointPositions(context.Background(), restPose), test.ShouldBeNil)
	return a, e, observed
}

func TestNewExecutorValidation(t *testing.T) {
	a, e, _ := setupExecutor(t, testConfig())
	logger := logging.NewTestLogger(t)
	solver := ik.NewDampedLeastSquares(e, logger)

	for name, mutate := range map[string]func(*Config){
		"no joints":       func(c *Config) { c.JointIndices = nil },
		"duplicate joint": func(c *Config) { c.JointIndices = []int{0, 0}; c.ResetJointPositions = nil },
		"reset mismatch":  func(c *Config) { c.ResetJointPositions = []float64{0} },
		"fixed joint":     func(c *Config) { c.JointIndices = []int{0, 6}; c.ResetJointPositions = nil },
		"joint range":     func(c *Config) { c.JointIndices = []int{0, 9}; c.ResetJointPositions = nil },
		"end effector":    func(c *Config) { c.EndEffectorLink = 8 },
		"base link":       func(c *Config) { c.EndEffectorLink = sim.BaseLink },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			_, err := NewExecutor(e, a.Body(), solver, cfg, logger)
			test.That(t, err, test.ShouldNotBeNil)
		})
	}

	_, err := NewExecutor(e, a.Body()+1, solver, testConfig(), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestJointDescriptions(t *testing.T) {
	a, _, _ := setupExecutor(t, testConfig())
	test.That(t, a.DOF(), test.ShouldEqual, 6)
	test.That(t, a.JointIndices(), test.ShouldResemble, []int{0, 1, 2, 3, 4, 5})
	test.That(t, a.EndEffectorLink(), test.ShouldEqual, 6)
	test.That(t, a.TCPLink(), test.ShouldEqual, 7)
	test.That(t, a.TCPHeight(), test.ShouldEqual, 0.15)
	test.That(t, a.JointInfo()[2].Name, test.ShouldEqual, "elbow_joint")

	test.That(t, a.LowerLimits()[2], test.ShouldAlmostEqual, -3.1416)
	test.That(t, a.UpperLimits()[0], test.ShouldAlmostEqual, 6.2832)
	test.That(t, a.JointRanges()[2], test.ShouldAlmostEqual, 6.2832)
	test.That(t, a.JointBounds()[2], test.ShouldResemble, [2]float64{-3.1416, 3.1416})
}

func TestJointMotion(t *testing.T) {
	ctx := context.Background()
	a, e, _ := setupExecutor(t, testConfig())

	q, err := a.CurrentJointPositions()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, q, test.ShouldResemble, restPose)

	before := e.Ticks()
	target := []float64{0.2, -0.7, 1.1, -0.3, 0.4, 0.5}
	test.That(t, a.MoveToJointPositions(ctx, target), test.ShouldBeNil)
	test.That(t, e.Ticks()-before, test.ShouldEqual, moveSettleTicks)
	q, err = a.CurrentJointPositions()
	test.That(t, err, test.ShouldBeNil)
	for i := range q {
		test.That(t, q[i], test.ShouldAlmostEqual, target[i], 1e-4)
	}

	before = e.Ticks()
	test.That(t, a.SetJointPositions(ctx, restPose), test.ShouldBeNil)
	test.That(t, e.Ticks()-before, test.ShouldEqual, resetSettleTicks)

	test.That(t, a.MoveToJointPositions(ctx, []float64{1}), test.ShouldNotBeNil)
	test.That(t, a.SetJointPositions(ctx, []float64{1}), test.ShouldNotBeNil)

	pose, err := a.JointsToCartesian(ctx, target)
	test.That(t, err, test.ShouldBeNil)
	fk, err := e.ForwardKinematics(a.Body(), 6, append(append([]float64{}, target...), 0, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqualEps(pose, fk, 1e-3), test.ShouldBeTrue)
}

func TestCartesianToJoints(t *testing.T) {
	ctx := context.Background()
	a, e, _ := setupExecutor(t, testConfig())

	want := []float64{0.3, -0.8, 1.2, -0.4, 0.5, 0.2}
	goal, err := e.ForwardKinematics(a.Body(), 6, append(append([]float64{}, want...), 0, 0))
	test.That(t, err, test.ShouldBeNil)

	q, err := a.CartesianToJoints(ctx, goal)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, q, test.ShouldHaveLength, 6)
	test.That(t, a.SetJointPositions(ctx, q), test.ShouldBeNil)
	ikErr, err := a.IKError(goal)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ikErr, test.ShouldBeLessThan, 1e-3)
}

func TestMoveToPose(t *testing.T) {
	ctx := context.Background()
	a, e, observed := setupExecutor(t, testConfig())

	goal, err := e.ForwardKinematics(a.Body(), 6, []float64{0.3, -0.7, 1.2, -0.6, 0.4, 0.3, 0, 0})
	test.That(t, err, test.ShouldBeNil)
	res, err := a.MoveToPose(ctx, goal, DefaultMoveSteps, DefaultIKThreshold)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Reached, test.ShouldBeTrue)
	test.That(t, res.Error, test.ShouldBeLessThan, 0.01)
	test.That(t, observed.FilterMessage("move end effector to goal pose finished").Len(), test.ShouldEqual, 1)

	// out of reach: the arm gets as close as it can and warns
	far := spatialmath.NewPoseFromPoint(r3.Vector{X: 5, Z: 0.5})
	res, err = a.MoveToPose(ctx, far, 2, DefaultIKThreshold)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Reached, test.ShouldBeFalse)
	test.That(t, res.Error, test.ShouldBeGreaterThan, 3)
	test.That(t, observed.FilterMessage("arm did not reach the goal position").Len(), test.ShouldEqual, 1)

	_, err = a.MoveToPose(ctx, goal, 0, DefaultIKThreshold)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestExecuteTrajectory(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.EnablePlot = true
	a, e, observed := setupExecutor(t, cfg)

	before := e.Ticks()
	res, err := a.ExecuteTrajectory(ctx, nil, DefaultTrajectoryThreshold)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Reached, test.ShouldBeTrue)
	test.That(t, e.Ticks(), test.ShouldEqual, before)

	trajectory := [][]float64{
		{0.1, -0.5, 1.0, -0.5, 0.3, 0.1},
		{0.2, -0.6, 1.1, -0.5, 0.3, 0.1},
		{0.3, -0.7, 1.2, -0.5, 0.3, 0.1},
	}
	res, err = a.ExecuteTrajectory(ctx, trajectory, DefaultTrajectoryThreshold)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Reached, test.ShouldBeTrue)
	test.That(t, res.JointsOverThreshold, test.ShouldEqual, 0)
	test.That(t, res.Error, test.ShouldBeLessThan, 1e-4)
	test.That(t, res.MeanJointError, test.ShouldBeLessThanOrEqualTo, res.Error)
	test.That(t, e.Ticks()-before, test.ShouldEqual, 4*moveSettleTicks)
	test.That(t, e.DebugLines(), test.ShouldHaveLength, 2)
	test.That(t, observed.FilterMessage("execute trajectory finished").Len(), test.ShouldEqual, 1)

	// a negative threshold counts every joint as missed
	res, err = a.ExecuteTrajectory(ctx, trajectory[2:], -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Reached, test.ShouldBeFalse)
	test.That(t, res.JointsOverThreshold, test.ShouldEqual, 6)
	test.That(t, observed.FilterMessage("arm did not reach the trajectory end").Len(), test.ShouldEqual, 1)

	_, err = a.ExecuteTrajectory(ctx, [][]float64{{0, 0}}, DefaultTrajectoryThreshold)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRotateEndEffector(t *testing.T) {
	ctx := context.Background()
	a, _, observed := setupExecutor(t, testConfig())

	test.That(t, a.RotateEndEffector(ctx, 0.5), test.ShouldBeNil)
	q, err := a.CurrentJointPositions()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, q[5], test.ShouldAlmostEqual, restPose[5]+0.5, rotateTolerance)
	test.That(t, q[0], test.ShouldAlmostEqual, restPose[0], rotateTolerance)
	test.That(t, observed.FilterMessage("rotate end effector completed").Len(), test.ShouldEqual, 1)
}

// laggingEngine reports the last arm joint a fixed offset away from where it is.
type laggingEngine struct {
	*kinematic.Engine
	joint  int
	offset float64
}

func (e *laggingEngine) JointState(id sim.BodyID, joint int) (sim.JointState, error) {
	state, err := e.Engine.JointState(id, joint)
	if joint == e.joint {
		state.Position += e.offset
	}
	return state, err
}

func TestRotateEndEffectorNotSettled(t *testing.T) {
	ctx := context.Background()
	a, e, observed := setupExecutor(t, testConfig())
	lagging := &laggingEngine{Engine: e, joint: 5, offset: 0.2}
	stuck, err := NewExecutor(lagging, a.Body(), ik.NewDampedLeastSquares(lagging, logging.NewTestLogger(t)),
		testConfig(), a.logger)
	test.That(t, err, test.ShouldBeNil)

	before := e.Ticks()
	test.That(t, stuck.RotateEndEffector(ctx, 0.5), test.ShouldBeNil)
	test.That(t, e.Ticks()-before, test.ShouldBeGreaterThanOrEqualTo, int64(maxRotateTicks))
	test.That(t, observed.FilterMessage("end effector did not settle").Len(), test.ShouldEqual, 1)
	test.That(t, observed.FilterMessage("rotate end effector completed").Len(), test.ShouldEqual, 0)
}
