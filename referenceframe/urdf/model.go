package urdf

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/bestman-robotics/bestman/spatialmath"
)

// JointType is the kind of motion a joint permits.
type JointType string

// The joint types a Model can articulate.
const (
	Revolute   JointType = "revolute"
	Continuous JointType = "continuous"
	Prismatic  JointType = "prismatic"
	Fixed      JointType = "fixed"
)

// NewUnsupportedJointTypeError is used when a joint type cannot be articulated.
func NewUnsupportedJointTypeError(jointType string) error {
	return errors.Errorf("unsupported joint type detected: %q", jointType)
}

// JointInfo describes one joint of a model. A joint shares its index with its child link.
type JointInfo struct {
	Index       int
	Name        string
	Type        JointType
	LinkName    string
	ParentIndex int
	Origin      spatialmath.Pose
	Axis        r3.Vector
	Lower       float64
	Upper       float64
	MaxForce    float64
	MaxVelocity float64
	Damping     float64
	Friction    float64
}

// Movable reports whether the joint has a degree of freedom.
func (j JointInfo) Movable() bool {
	return j.Type != Fixed
}

// Model is a kinematic tree built from a URDF. Links other than the root are indexed in
// depth first order from the root, following document order among siblings. The root link
// has index -1.
type Model struct {
	robot     *Robot
	root      string
	joints    []JointInfo
	linkIndex map[string]int
}

// NewModel builds the kinematic tree of a parsed URDF.
func NewModel(robot *Robot) (*Model, error) {
	children := map[string][]Joint{}
	isChild := map[string]bool{}
	for _, j := range robot.Joints {
		if _, ok := robot.Link(j.Parent.Link); !ok {
			return nil, errors.Errorf("joint %q references unknown parent link %q", j.Name, j.Parent.Link)
		}
		if _, ok := robot.Link(j.Child.Link); !ok {
			return nil, errors.Errorf("joint %q references unknown child link %q", j.Name, j.Child.Link)
		}
		if isChild[j.Child.Link] {
			return nil, errors.Errorf("link %q has more than one parent joint", j.Child.Link)
		}
		isChild[j.Child.Link] = true
		children[j.Parent.Link] = append(children[j.Parent.Link], j)
	}

	roots := []string{}
	for _, l := range robot.Links {
		if !isChild[l.Name] {
			roots = append(roots, l.Name)
		}
	}
	if len(roots) != 1 {
		return nil, errors.Errorf("URDF %q must have exactly one root link, found %d", robot.Name, len(roots))
	}

	m := &Model{
		robot:     robot,
		root:      roots[0],
		linkIndex: map[string]int{roots[0]: -1},
	}
	var walk func(parent string, parentIndex int) error
	walk = func(parent string, parentIndex int) error {
		for _, j := range children[parent] {
			info, err := newJointInfo(j, len(m.joints), parentIndex)
			if err != nil {
				return err
			}
			m.joints = append(m.joints, info)
			m.linkIndex[j.Child.Link] = info.Index
			if err := walk(j.Child.Link, info.Index); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(m.root, -1); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadModel parses a URDF file and builds its kinematic tree.
func LoadModel(filename string) (*Model, error) {
	robot, err := ParseFile(filename)
	if err != nil {
		return nil, err
	}
	return NewModel(robot)
}

func newJointInfo(j Joint, index, parentIndex int) (JointInfo, error) {
	info := JointInfo{
		Index:       index,
		Name:        j.Name,
		Type:        JointType(j.Type),
		LinkName:    j.Child.Link,
		ParentIndex: parentIndex,
		Origin:      j.Origin.Pose(),
		Axis:        j.Axis.Vector(),
	}
	switch info.Type {
	case Revolute, Prismatic:
		if j.Limit == nil {
			return JointInfo{}, errors.Errorf("joint %q of type %s requires a limit element", j.Name, j.Type)
		}
	case Continuous, Fixed:
	default:
		return JointInfo{}, NewUnsupportedJointTypeError(j.Type)
	}
	if j.Limit != nil {
		info.Lower = j.Limit.Lower
		info.Upper = j.Limit.Upper
		info.MaxForce = j.Limit.Effort
		info.MaxVelocity = j.Limit.Velocity
	}
	if j.Dynamics != nil {
		info.Damping = j.Dynamics.Damping
		info.Friction = j.Dynamics.Friction
	}
	return info, nil
}

// Name returns the robot name declared in the URDF.
func (m *Model) Name() string {
	return m.robot.Name
}

// Robot returns the parsed URDF.
func (m *Model) Robot() *Robot {
	return m.robot
}

// RootLink returns the name of the root link.
func (m *Model) RootLink() string {
	return m.root
}

// NumJoints returns the number of joints, fixed joints included.
func (m *Model) NumJoints() int {
	return len(m.joints)
}

// Joint returns the joint with the given index.
func (m *Model) Joint(index int) (JointInfo, error) {
	if index < 0 || index >= len(m.joints) {
		return JointInfo{}, errors.Errorf("joint index %d out of range [0, %d)", index, len(m.joints))
	}
	return m.joints[index], nil
}

// Joints returns every joint in index order.
func (m *Model) Joints() []JointInfo {
	out := make([]JointInfo, len(m.joints))
	copy(out, m.joints)
	return out
}

// MovableJoints returns the indices of the non fixed joints in index order.
func (m *Model) MovableJoints() []int {
	out := []int{}
	for _, j := range m.joints {
		if j.Movable() {
			out = append(out, j.Index)
		}
	}
	return out
}

// LinkIndex returns the index of the named link. The root link is -1.
func (m *Model) LinkIndex(name string) (int, bool) {
	idx, ok := m.linkIndex[name]
	return idx, ok
}

// LinkName returns the name of the link with the given index.
func (m *Model) LinkName(index int) (string, error) {
	if index == -1 {
		return m.root, nil
	}
	j, err := m.Joint(index)
	if err != nil {
		return "", err
	}
	return j.LinkName, nil
}

// Link returns the URDF description of the link with the given index.
func (m *Model) Link(index int) (*Link, error) {
	name, err := m.LinkName(index)
	if err != nil {
		return nil, err
	}
	l, _ := m.robot.Link(name)
	return l, nil
}

// JointMotion returns the transform a joint adds at the given position.
func (j JointInfo) JointMotion(q float64) spatialmath.Pose {
	switch j.Type {
	case Revolute, Continuous:
		aa := &spatialmath.R4AA{Theta: q, RX: j.Axis.X, RY: j.Axis.Y, RZ: j.Axis.Z}
		return spatialmath.NewPose(r3.Vector{}, aa.ToQuat())
	case Prismatic:
		return spatialmath.NewPoseFromPoint(j.Axis.Mul(q))
	case Fixed:
	}
	return spatialmath.NewZeroPose()
}

// LinkFrames returns the world pose of every link frame, in joint index order, given the world
// pose of the root link frame and one position per joint. Positions of fixed joints are ignored.
func (m *Model) LinkFrames(root spatialmath.Pose, positions []float64) ([]spatialmath.Pose, error) {
	if len(positions) != len(m.joints) {
		return nil, errors.Errorf("expected %d joint positions, got %d", len(m.joints), len(positions))
	}
	frames := make([]spatialmath.Pose, len(m.joints))
	for i, j := range m.joints {
		parent := root
		if j.ParentIndex >= 0 {
			parent = frames[j.ParentIndex]
		}
		frames[i] = spatialmath.Compose(spatialmath.Compose(parent, j.Origin), j.JointMotion(positions[i]))
	}
	return frames, nil
}

// Scaled returns a copy of the model whose joint origins are scaled, matching a URDF loaded with
// a global scaling factor. Joint motion is not scaled.
func (m *Model) Scaled(scale float64) *Model {
	if scale == 1 || scale == 0 {
		return m
	}
	out := &Model{robot: m.robot, root: m.root, linkIndex: m.linkIndex, joints: make([]JointInfo, len(m.joints))}
	for i, j := range m.joints {
		j.Origin = j.Origin.WithPoint(j.Origin.Point().Mul(scale))
		out.joints[i] = j
	}
	return out
}
