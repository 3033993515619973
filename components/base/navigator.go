package base

import (
	"context"
	"math"

	"github.com/golang/geo/r3"

	"github.com/bestman-robotics/bestman/logging"
	"github.com/bestman-robotics/bestman/sim"
	"github.com/bestman-robotics/bestman/spatialmath"
)

var pathColor = [3]float64{1, 0, 0}

// Option configures a Navigator.
type Option func(*Navigator)

// WithPoseSync registers a function called every time the navigator moves the base, so bodies
// attached to the base can follow it.
func WithPoseSync(sync func() error) Option {
	return func(n *Navigator) {
		n.sync = sync
	}
}

// Navigator moves a base body. It holds the engine and the body id but owns neither; callers
// must not run two motions on the same body at once.
type Navigator struct {
	engine     sim.Engine
	body       sim.BodyID
	controller DistanceController
	cfg        Config
	logger     logging.Logger
	sync       func() error
	heading    float64
}

// NewNavigator returns a navigator for the given base body.
func NewNavigator(
	engine sim.Engine,
	body sim.BodyID,
	controller DistanceController,
	cfg Config,
	logger logging.Logger,
	opts ...Option,
) (*Navigator, error) {
	cfg.setDefaults()
	pose, err := engine.BasePose(body)
	if err != nil {
		return nil, err
	}
	n := &Navigator{
		engine:     engine,
		body:       body,
		controller: controller,
		cfg:        cfg,
		logger:     logger,
		sync:       func() error { return nil },
		heading:    pose.Yaw(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Body returns the id of the base body.
func (n *Navigator) Body() sim.BodyID {
	return n.body
}

// Heading returns the last yaw the navigator applied to the base.
func (n *Navigator) Heading() float64 {
	return n.heading
}

// CurrentPose returns the pose of the base.
func (n *Navigator) CurrentPose() (spatialmath.Pose, error) {
	return n.engine.BasePose(n.body)
}

// Stop zeroes the base velocity.
func (n *Navigator) Stop() error {
	return n.engine.SetBaseVelocity(n.body, r3.Vector{}, r3.Vector{})
}

// NavigationError is the distance between the base and the goal position.
func (n *Navigator) NavigationError(goal spatialmath.Pose) (float64, error) {
	pose, err := n.CurrentPose()
	if err != nil {
		return 0, err
	}
	return pose.Distance(goal), nil
}

func (n *Navigator) applyYaw(yaw float64) error {
	pose, err := n.CurrentPose()
	if err != nil {
		return err
	}
	if err := n.engine.SetBasePose(n.body, pose.WithOrientation(spatialmath.YawQuaternion(yaw))); err != nil {
		return err
	}
	return n.sync()
}

// RotateTo turns the base in place to face targetYaw. A gradual rotation steps the yaw by the
// configured step size along the shortest direction, one tick per step, then snaps to the exact
// target. An instant rotation applies the target and lets the engine settle.
func (n *Navigator) RotateTo(ctx context.Context, targetYaw float64, gradual bool) error {
	if !gradual {
		if err := n.applyYaw(targetYaw); err != nil {
			return err
		}
		n.heading = targetYaw
		return n.engine.Run(ctx, instantRotationTicks)
	}

	pose, err := n.CurrentPose()
	if err != nil {
		return err
	}
	current := pose.Yaw()
	diff := spatialmath.ShortestAngularDistance(current, targetYaw)
	for math.Abs(diff) > n.cfg.StepSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		if diff > 0 {
			current += n.cfg.StepSize
		} else {
			current -= n.cfg.StepSize
		}
		current = spatialmath.NormalizeAngle(current)
		diff = spatialmath.ShortestAngularDistance(current, targetYaw)
		if err := n.applyYaw(current); err != nil {
			return err
		}
		n.heading = current
		if err := n.engine.Run(ctx, 1); err != nil {
			return err
		}
	}

	if err := n.applyYaw(targetYaw); err != nil {
		return err
	}
	n.heading = targetYaw
	return n.engine.Run(ctx, 1)
}

// translate moves the base by distance along its current heading.
func (n *Navigator) translate(distance float64) error {
	pose, err := n.CurrentPose()
	if err != nil {
		return err
	}
	yaw := pose.Yaw()
	point := pose.Point().Add(r3.Vector{X: distance * math.Cos(yaw), Y: distance * math.Sin(yaw)})
	if err := n.engine.SetBasePose(n.body, pose.WithPoint(point)); err != nil {
		return err
	}
	return n.sync()
}

// MoveToWaypoint drives the base to the x, y position of waypoint. The base turns to face the
// waypoint once, on the first iteration, and then only translates along its heading by the
// controller output. The loop ends when the planar distance drops below threshold or after the
// configured number of iterations.
func (n *Navigator) MoveToWaypoint(ctx context.Context, waypoint spatialmath.Pose, threshold float64) (Result, error) {
	rotated := false
	var distance float64
	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		pose, err := n.CurrentPose()
		if err != nil {
			return Result{}, err
		}
		dx, dy := waypoint.X()-pose.X(), waypoint.Y()-pose.Y()
		distance = math.Hypot(dx, dy)
		if distance < threshold {
			break
		}
		if iteration > n.cfg.MaxIterations {
			n.logger.Warnw("base gave up on waypoint", "waypoint", waypoint.Point(), "distance", distance,
				"iterations", n.cfg.MaxIterations)
			break
		}

		n.controller.SetGoal(0)
		output := n.controller.Calculate(distance)

		if !rotated {
			if err := n.RotateTo(ctx, math.Atan2(dy, dx), true); err != nil {
				return Result{}, err
			}
			rotated = true
		}
		if err := n.translate(-output); err != nil {
			return Result{}, err
		}
		if iteration%syncInterval == 0 {
			if err := n.engine.Run(ctx, 1); err != nil {
				return Result{}, err
			}
		}
	}
	if err := n.engine.Run(ctx, 1); err != nil {
		return Result{}, err
	}
	return Result{Reached: distance < threshold, Error: distance}, nil
}

// Navigate follows path point by point on the ground plane, then turns to the goal yaw. Missing
// the goal by threshold or more is reported in the result and logged, not returned as an error.
func (n *Navigator) Navigate(ctx context.Context, goal spatialmath.Pose, path []r3.Vector, threshold float64) (Result, error) {
	for i, p := range path {
		next := r3.Vector{X: p.X, Y: p.Y}
		if _, err := n.MoveToWaypoint(ctx, spatialmath.NewPose(next, goal.Orientation()), DefaultWaypointThreshold); err != nil {
			return Result{}, err
		}
		if i != 0 && n.cfg.EnablePlot {
			n.engine.AddDebugLine(sim.Line{
				From:  r3.Vector{X: path[i-1].X, Y: path[i-1].Y},
				To:    next,
				Color: pathColor,
				Width: 3,
			})
		}
	}

	if err := n.RotateTo(ctx, goal.Yaw(), true); err != nil {
		return Result{}, err
	}
	if err := n.engine.Run(ctx, navigationSettleTicks); err != nil {
		return Result{}, err
	}
	navErr, err := n.NavigationError(goal)
	if err != nil {
		return Result{}, err
	}
	if navErr >= threshold {
		n.logger.Warnw("base did not reach the goal position", "goal", goal.Point(), "error", navErr)
	}
	n.logger.Info("navigation is done")
	return Result{Reached: navErr < threshold, Error: navErr}, nil
}
