package kinematic

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/bestman-robotics/bestman/referenceframe/urdf"
	"github.com/bestman-robotics/bestman/sim"
	"github.com/bestman-robotics/bestman/spatialmath"
)

var defaultColor = [4]float64{0.7, 0.7, 0.7, 1}

type motor struct {
	target      float64
	maxVelocity float64
}

type jointState struct {
	position float64
	velocity float64
	motor    *motor
}

type body struct {
	info   sim.BodyInfo
	model  *urdf.Model
	scale  float64
	joints []jointState
	colors map[int][4]float64

	// base is the world pose of the root link's inertial frame.
	base            spatialmath.Pose
	linear, angular r3.Vector
}

func newBody(info sim.BodyInfo, model *urdf.Model, base spatialmath.Pose) *body {
	if info.Scaling <= 0 {
		info.Scaling = 1
	}
	b := &body{
		info:   info,
		model:  model.Scaled(info.Scaling),
		scale:  info.Scaling,
		joints: make([]jointState, model.NumJoints()),
		colors: map[int][4]float64{},
		base:   base,
	}
	for link := sim.BaseLink; link < model.NumJoints(); link++ {
		l, err := b.model.Link(link)
		if err != nil {
			continue
		}
		for _, v := range l.Visuals {
			if v.Material == nil {
				continue
			}
			m := v.Material
			if m.Color == nil {
				if named, ok := b.model.Robot().Material(m.Name); ok {
					m = named
				}
			}
			b.colors[link] = m.RGBA()
			break
		}
	}
	return b
}

func (b *body) positions() []float64 {
	out := make([]float64, len(b.joints))
	for i, j := range b.joints {
		out[i] = j.position
	}
	return out
}

func (b *body) scalePose(p spatialmath.Pose) spatialmath.Pose {
	return p.WithPoint(p.Point().Mul(b.scale))
}

func (b *body) inertial(link int) (spatialmath.Pose, error) {
	l, err := b.model.Link(link)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	return b.scalePose(l.InertialPose()), nil
}

func (b *body) linkName(link int) (string, error) {
	return b.model.LinkName(link)
}

// rootFrame returns the world pose of the root link frame.
func (b *body) rootFrame() (spatialmath.Pose, error) {
	inertial, err := b.inertial(sim.BaseLink)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	return spatialmath.Compose(b.base, spatialmath.PoseInverse(inertial)), nil
}

// linkFrames returns the world link frames of every non root link.
func (b *body) linkFrames(positions []float64) ([]spatialmath.Pose, error) {
	root, err := b.rootFrame()
	if err != nil {
		return nil, err
	}
	return b.model.LinkFrames(root, positions)
}

func (b *body) linkState(frames []spatialmath.Pose, link int) (sim.LinkState, error) {
	if link == sim.BaseLink {
		root, err := b.rootFrame()
		if err != nil {
			return sim.LinkState{}, err
		}
		return sim.LinkState{CenterOfMass: b.base, Frame: root}, nil
	}
	if link < 0 || link >= len(frames) {
		return sim.LinkState{}, errors.Errorf("link index %d out of range for body %d with %d links", link, b.info.ID, len(frames))
	}
	inertial, err := b.inertial(link)
	if err != nil {
		return sim.LinkState{}, err
	}
	return sim.LinkState{
		CenterOfMass: spatialmath.Compose(frames[link], inertial),
		Frame:        frames[link],
	}, nil
}

// linkAABB bounds the collision geometry of a link, falling back to its visuals. The bool
// reports whether the link has any geometry.
func (b *body) linkAABB(frames []spatialmath.Pose, link int) (sim.AABB, bool, error) {
	state, err := b.linkState(frames, link)
	if err != nil {
		return sim.AABB{}, false, err
	}
	l, err := b.model.Link(link)
	if err != nil {
		return sim.AABB{}, false, err
	}
	type shape struct {
		origin   *urdf.Origin
		geometry urdf.Geometry
	}
	shapes := make([]shape, 0, len(l.Collisions))
	for _, c := range l.Collisions {
		shapes = append(shapes, shape{c.Origin, c.Geometry})
	}
	if len(shapes) == 0 {
		for _, v := range l.Visuals {
			shapes = append(shapes, shape{v.Origin, v.Geometry})
		}
	}
	box := sim.EmptyAABB()
	for _, s := range shapes {
		if s.geometry.Type() == urdf.UnknownType {
			continue
		}
		pose := spatialmath.Compose(state.Frame, b.scalePose(s.origin.Pose()))
		box = box.Merge(sim.NewOrientedAABB(pose, s.geometry.HalfExtents().Mul(b.scale)))
	}
	if box.IsEmpty() {
		p := state.CenterOfMass.Point()
		return sim.AABB{Min: p, Max: p}, false, nil
	}
	return box, true, nil
}

func (b *body) color(link int) ([4]float64, error) {
	if _, err := b.linkName(link); err != nil {
		return [4]float64{}, err
	}
	if c, ok := b.colors[link]; ok {
		return c, nil
	}
	return defaultColor, nil
}

// step advances joint motors and base velocity by dt seconds.
func (b *body) step(dt float64) {
	for i := range b.joints {
		j := &b.joints[i]
		if j.motor == nil {
			j.velocity = 0
			continue
		}
		delta := j.motor.target - j.position
		move := delta * trackingGain
		if j.motor.maxVelocity > 0 {
			limit := j.motor.maxVelocity * dt
			move = math.Max(-limit, math.Min(limit, delta))
		}
		if math.Abs(delta) < 1e-12 {
			move = delta
		}
		j.position += move
		j.velocity = move / dt
	}

	if b.info.FixedBase || (b.linear.Norm() == 0 && b.angular.Norm() == 0) {
		return
	}
	point := b.base.Point().Add(b.linear.Mul(dt))
	orientation := b.base.Orientation()
	if w := b.angular.Norm(); w > 0 {
		axis := b.angular.Normalize()
		aa := &spatialmath.R4AA{Theta: w * dt, RX: axis.X, RY: axis.Y, RZ: axis.Z}
		orientation = quat.Mul(aa.ToQuat(), orientation)
	}
	b.base = spatialmath.NewPose(point, orientation)
}
