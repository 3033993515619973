package ik

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/bestman-robotics/bestman/logging"
	"github.com/bestman-robotics/bestman/referenceframe/urdf"
	"github.com/bestman-robotics/bestman/spatialmath"
)

const (
	jacobianStep = 1e-6
	damping      = 0.05
	maxStepNorm  = 0.5
	restGain     = 0.1
)

// DampedLeastSquares is an iterative Jacobian solver. Every iteration takes the damped pseudo
// inverse step toward the target, pulls the null space toward the rest pose and clamps the
// result into the joint limits.
type DampedLeastSquares struct {
	kin    Kinematics
	logger logging.Logger
}

var _ Solver = (*DampedLeastSquares)(nil)

// NewDampedLeastSquares returns a solver reading joint state and forward kinematics from kin.
func NewDampedLeastSquares(kin Kinematics, logger logging.Logger) *DampedLeastSquares {
	return &DampedLeastSquares{kin: kin, logger: logger}
}

type jointBounds struct {
	index      int
	lower      float64
	upper      float64
	rest       float64
	restRange  float64
	hasRest    bool
	continuous bool
}

// Solve seeds from the current joint positions and iterates until the residual drops below the
// threshold or the iteration budget runs out. Running out is not an error; the best solution
// found is returned with Converged unset.
func (s *DampedLeastSquares) Solve(ctx context.Context, req Request) (*Solution, error) {
	numJoints, err := s.kin.NumJoints(req.Body)
	if err != nil {
		return nil, err
	}
	if err := req.validate(numJoints); err != nil {
		return nil, err
	}
	if req.MaxIterations == 0 {
		req.MaxIterations = DefaultMaxIterations
	}
	if req.ResidualThreshold == 0 {
		req.ResidualThreshold = DefaultResidualThreshold
	}

	q := make([]float64, numJoints)
	var movable []jointBounds
	for i := 0; i < numJoints; i++ {
		info, err := s.kin.JointInfo(req.Body, i)
		if err != nil {
			return nil, err
		}
		state, err := s.kin.JointState(req.Body, i)
		if err != nil {
			return nil, err
		}
		q[i] = state.Position
		if !info.Movable() {
			continue
		}
		n := len(movable)
		b := jointBounds{index: i, lower: info.Lower, upper: info.Upper, continuous: info.Type == urdf.Continuous}
		if n < len(req.LowerLimits) && n < len(req.UpperLimits) {
			b.lower, b.upper = req.LowerLimits[n], req.UpperLimits[n]
		}
		if n < len(req.RestPose) {
			b.rest, b.hasRest, b.restRange = req.RestPose[n], true, 1
			if n < len(req.JointRanges) && req.JointRanges[n] > 1 {
				b.restRange = req.JointRanges[n]
			}
		}
		movable = append(movable, b)
	}
	if len(movable) == 0 {
		return nil, errors.Errorf("body %d has no movable joints", req.Body)
	}

	goal := req.Target()
	withOrientation := req.Orientation != nil
	solution := &Solution{}
	for solution.Iterations = 0; solution.Iterations < req.MaxIterations; solution.Iterations++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current, err := s.kin.ForwardKinematics(req.Body, req.EndEffectorLink, q)
		if err != nil {
			return nil, err
		}
		residual := poseError(current, goal, withOrientation)
		solution.Residual = floats.Norm(residual, 2)
		if solution.Residual < req.ResidualThreshold {
			solution.Converged = true
			break
		}
		jac, err := s.jacobian(req, q, movable, current, withOrientation)
		if err != nil {
			return nil, err
		}
		dq, err := dampedStep(jac, residual, q, movable)
		if err != nil {
			return nil, err
		}
		for k, b := range movable {
			q[b.index] = clampJoint(q[b.index]+dq[k], b)
		}
	}
	if !solution.Converged {
		// the loop exits before measuring the last step
		current, err := s.kin.ForwardKinematics(req.Body, req.EndEffectorLink, q)
		if err != nil {
			return nil, err
		}
		solution.Residual = floats.Norm(poseError(current, goal, withOrientation), 2)
		solution.Converged = solution.Residual < req.ResidualThreshold
		s.logger.Debugw("inverse kinematics stopped at iteration limit",
			"body", req.Body, "iterations", solution.Iterations, "residual", solution.Residual)
	}

	solution.Positions = make([]float64, len(movable))
	for k, b := range movable {
		solution.Positions[k] = q[b.index]
	}
	return solution, nil
}

// jacobian differentiates the pose error numerically with respect to every movable joint.
func (s *DampedLeastSquares) jacobian(
	req Request,
	q []float64,
	movable []jointBounds,
	current spatialmath.Pose,
	withOrientation bool,
) (*mat.Dense, error) {
	rows := 3
	if withOrientation {
		rows = 6
	}
	jac := mat.NewDense(rows, len(movable), nil)
	probe := make([]float64, len(q))
	for k, b := range movable {
		copy(probe, q)
		probe[b.index] += jacobianStep
		moved, err := s.kin.ForwardKinematics(req.Body, req.EndEffectorLink, probe)
		if err != nil {
			return nil, err
		}
		// the twist from current to moved, per unit joint motion
		col := poseError(current, moved, withOrientation)
		for r, v := range col {
			jac.Set(r, k, v/jacobianStep)
		}
	}
	return jac, nil
}

// dampedStep returns J⁺e with J⁺ = Jᵀ(JJᵀ + λ²I)⁻¹ plus a pull toward the rest pose projected
// into the null space of J, scaled down to the maximum step norm.
func dampedStep(jac *mat.Dense, residual, q []float64, movable []jointBounds) ([]float64, error) {
	rows, cols := jac.Dims()
	var jjt mat.Dense
	jjt.Mul(jac, jac.T())
	for i := 0; i < rows; i++ {
		jjt.Set(i, i, jjt.At(i, i)+damping*damping)
	}
	var inv mat.Dense
	if err := inv.Inverse(&jjt); err != nil {
		return nil, errors.Wrap(err, "cannot invert damped jacobian")
	}
	var pinv mat.Dense
	pinv.Mul(jac.T(), &inv)

	var step mat.VecDense
	step.MulVec(&pinv, mat.NewVecDense(rows, residual))

	bias := make([]float64, cols)
	hasRest := false
	for k, b := range movable {
		if b.hasRest {
			bias[k] = restGain * (b.rest - q[b.index]) / b.restRange
			hasRest = true
		}
	}
	if hasRest {
		nullspace, err := nullspaceProjector(jac)
		if err != nil {
			return nil, err
		}
		var restStep mat.VecDense
		restStep.MulVec(nullspace, mat.NewVecDense(cols, bias))
		step.AddVec(&step, &restStep)
	}

	out := mat.Col(nil, 0, &step)
	if norm := floats.Norm(out, 2); norm > maxStepNorm {
		floats.Scale(maxStepNorm/norm, out)
	}
	return out, nil
}

// clampJoint keeps a joint within its limits. Limits with lower above upper, and continuous
// joints, are unbounded.
func clampJoint(v float64, b jointBounds) float64 {
	if b.continuous || b.lower > b.upper {
		return v
	}
	return math.Max(b.lower, math.Min(b.upper, v))
}

// nullspaceProjector returns I - VᵣVᵣᵀ where Vᵣ spans the row space of jac.
func nullspaceProjector(jac *mat.Dense) (*mat.Dense, error) {
	_, cols := jac.Dims()
	var svd mat.SVD
	if !svd.Factorize(jac, mat.SVDFull) {
		return nil, errors.New("cannot factorize jacobian")
	}
	var v mat.Dense
	svd.VTo(&v)
	proj := mat.NewDense(cols, cols, nil)
	for i := 0; i < cols; i++ {
		proj.Set(i, i, 1)
	}
	for k, sv := range svd.Values(nil) {
		if sv < 1e-9 {
			continue
		}
		col := mat.NewVecDense(cols, mat.Col(nil, k, &v))
		var outer mat.Dense
		outer.Outer(1, col, col)
		proj.Sub(proj, &outer)
	}
	return proj, nil
}
