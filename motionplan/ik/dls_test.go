package ik

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/bestman-robotics/bestman/logging"
	"github.com/bestman-robotics/bestman/sim"
	"github.com/bestman-robotics/bestman/sim/kinematic"
	"github.com/bestman-robotics/bestman/spatialmath"
	"github.com/bestman-robotics/bestman/utils"
)

const eeLink = 6

func setupArm(t *testing.T, seed []float64) (*kinematic.Engine, sim.BodyID) {
	t.Helper()
	e := kinematic.New(kinematic.Config{}, logging.NewTestLogger(t))
	id, err := e.LoadObject(context.Background(), utils.ResolveFile("assets/mobile_manipulator/ur5e/ur5e.urdf"),
		sim.LoadOptions{FixedBase: true})
	test.That(t, err, test.ShouldBeNil)
	for i, v := range seed {
		test.That(t, e.ResetJointState(id, i, v), test.ShouldBeNil)
	}
	return e, id
}

func withFixed(q []float64) []float64 {
	return append(append([]float64{}, q...), 0, 0)
}

func TestSolvePose(t *testing.T) {
	ctx := context.Background()
	e, id := setupArm(t, []float64{0, -0.5, 1.0, -0.5, 0.3, 0.1})
	solver := NewDampedLeastSquares(e, logging.NewTestLogger(t))

	want := []float64{0.3, -0.8, 1.2, -0.4, 0.5, 0.2}
	goal, err := e.ForwardKinematics(id, eeLink, withFixed(want))
	test.That(t, err, test.ShouldBeNil)
	orientation := goal.Orientation()

	sol, err := solver.Solve(ctx, Request{
		Body:            id,
		EndEffectorLink: eeLink,
		Position:        goal.Point(),
		Orientation:     &orientation,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sol.Converged, test.ShouldBeTrue)
	test.That(t, sol.Residual, test.ShouldBeLessThan, DefaultResidualThreshold)
	test.That(t, len(sol.Positions), test.ShouldEqual, 6)

	got, err := e.ForwardKinematics(id, eeLink, withFixed(sol.Positions))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqualEps(got, goal, 1e-3), test.ShouldBeTrue)
	test.That(t, NewSquaredNormMetric(goal)(got), test.ShouldBeLessThan, 1e-6)

	// solving reads the body but never moves it
	state, err := e.JointState(id, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.Position, test.ShouldEqual, 0)
}

func TestSolvePositionWithLimits(t *testing.T) {
	ctx := context.Background()
	seed := []float64{0, -0.5, 1.0, -0.5, 0.3, 0.1}
	e, id := setupArm(t, seed)
	solver := NewDampedLeastSquares(e, logging.NewTestLogger(t))

	start, err := e.ForwardKinematics(id, eeLink, withFixed(seed))
	test.That(t, err, test.ShouldBeNil)
	target := start.Point().Add(r3.Vector{X: 0.05, Y: -0.05, Z: -0.05})

	lower := []float64{-1, -2, -2, -2, -2, -2}
	upper := []float64{1, 2, 2, 2, 2, 2}
	sol, err := solver.Solve(ctx, Request{
		Body:            id,
		EndEffectorLink: eeLink,
		Position:        target,
		LowerLimits:     lower,
		UpperLimits:     upper,
		JointRanges:     []float64{2, 4, 4, 4, 4, 4},
		RestPose:        seed,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sol.Converged, test.ShouldBeTrue)
	for i, v := range sol.Positions {
		test.That(t, v, test.ShouldBeBetweenOrEqual, lower[i], upper[i])
	}
	got, err := e.ForwardKinematics(id, eeLink, withFixed(sol.Positions))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, NewPositionOnlyMetric(spatialmath.NewPoseFromPoint(target))(got), test.ShouldBeLessThan, 1e-6)
}

func TestSolveIterationLimit(t *testing.T) {
	ctx := context.Background()
	e, id := setupArm(t, []float64{0, -0.5, 1.0, -0.5, 0.3, 0.1})
	solver := NewDampedLeastSquares(e, logging.NewTestLogger(t))

	sol, err := solver.Solve(ctx, Request{
		Body:            id,
		EndEffectorLink: eeLink,
		Position:        r3.Vector{X: 0.5, Y: 0.3, Z: 0.4},
		MaxIterations:   1,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sol.Converged, test.ShouldBeFalse)
	test.That(t, sol.Iterations, test.ShouldEqual, 1)
	test.That(t, sol.Residual, test.ShouldBeGreaterThan, 0)
}

func TestSolveErrors(t *testing.T) {
	ctx := context.Background()
	e, id := setupArm(t, nil)
	solver := NewDampedLeastSquares(e, logging.NewTestLogger(t))

	_, err := solver.Solve(ctx, Request{Body: id + 10, EndEffectorLink: eeLink})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = solver.Solve(ctx, Request{Body: id, EndEffectorLink: 8})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = solver.Solve(ctx, Request{Body: id, EndEffectorLink: eeLink, MaxIterations: -1})
	test.That(t, err, test.ShouldNotBeNil)

	base, err := e.LoadObject(ctx, utils.ResolveFile("assets/mobile_manipulator/segbot/segbot.urdf"), sim.LoadOptions{})
	test.That(t, err, test.ShouldBeNil)
	_, err = solver.Solve(ctx, Request{Body: base, EndEffectorLink: 0})
	test.That(t, err, test.ShouldNotBeNil)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = solver.Solve(cancelled, Request{Body: id, EndEffectorLink: eeLink, Position: r3.Vector{X: 0.5}})
	test.That(t, err, test.ShouldBeError, context.Canceled)
}

func TestJointMetric(t *testing.T) {
	test.That(t, JointMetric([]float64{0, 0}, []float64{3, 4}), test.ShouldAlmostEqual, 5)
}
