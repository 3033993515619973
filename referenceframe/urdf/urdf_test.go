package urdf

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/bestman-robotics/bestman/spatialmath"
	"github.com/bestman-robotics/bestman/utils"
)

const twoLink = `<robot name="two">
  <link name="root">
    <inertial><origin xyz="0 0 0.1"/><mass value="1"/></inertial>
    <visual><geometry><box size="0.2 0.4 0.6"/></geometry></visual>
  </link>
  <link name="a"/>
  <link name="b"/>
  <joint name="j0" type="revolute">
    <parent link="root"/><child link="a"/>
    <origin xyz="0 0 1"/>
    <axis xyz="0 0 1"/>
    <limit lower="-1" upper="1" effort="5" velocity="2"/>
  </joint>
  <joint name="j1" type="prismatic">
    <parent link="a"/><child link="b"/>
    <origin xyz="1 0 0"/>
    <limit lower="0" upper="0.5" effort="5" velocity="0.1"/>
  </joint>
</robot>`

func TestParse(t *testing.T) {
	_, err := Parse(nil)
	test.That(t, err, test.ShouldBeError, ErrNoModelInformation)

	_, err = Parse([]byte("<robot"))
	test.That(t, err, test.ShouldNotBeNil)

	robot, err := Parse([]byte(twoLink))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, robot.Name, test.ShouldEqual, "two")
	test.That(t, len(robot.Links), test.ShouldEqual, 3)

	root, ok := robot.Link("root")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, root.InertialPose().Z(), test.ShouldAlmostEqual, 0.1)
	test.That(t, root.Visuals[0].Geometry.Type(), test.ShouldEqual, BoxType)
	test.That(t, root.Visuals[0].Geometry.HalfExtents(), test.ShouldResemble, r3.Vector{X: 0.1, Y: 0.2, Z: 0.3})
}

func TestModelOrdering(t *testing.T) {
	robot, err := Parse([]byte(twoLink))
	test.That(t, err, test.ShouldBeNil)
	m, err := NewModel(robot)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, m.RootLink(), test.ShouldEqual, "root")
	test.That(t, m.NumJoints(), test.ShouldEqual, 2)
	idx, ok := m.LinkIndex("root")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, idx, test.ShouldEqual, -1)
	idx, _ = m.LinkIndex("b")
	test.That(t, idx, test.ShouldEqual, 1)

	j, err := m.Joint(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, j.Type, test.ShouldEqual, Prismatic)
	test.That(t, j.ParentIndex, test.ShouldEqual, 0)
	test.That(t, j.Axis, test.ShouldResemble, r3.Vector{X: 1})
	test.That(t, j.MaxVelocity, test.ShouldEqual, 0.1)

	_, err = m.Joint(2)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLinkFrames(t *testing.T) {
	robot, err := Parse([]byte(twoLink))
	test.That(t, err, test.ShouldBeNil)
	m, err := NewModel(robot)
	test.That(t, err, test.ShouldBeNil)

	frames, err := m.LinkFrames(spatialmath.NewZeroPose(), []float64{math.Pi / 2, 0.25})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frames[0].Z(), test.ShouldAlmostEqual, 1)
	test.That(t, frames[0].Yaw(), test.ShouldAlmostEqual, math.Pi/2)
	// prismatic joint slides along its parent's rotated x axis
	test.That(t, frames[1].X(), test.ShouldAlmostEqual, 0)
	test.That(t, frames[1].Y(), test.ShouldAlmostEqual, 1.25)
	test.That(t, frames[1].Z(), test.ShouldAlmostEqual, 1)

	_, err = m.LinkFrames(spatialmath.NewZeroPose(), []float64{0})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestModelErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		xml  string
	}{
		{"unknown child", `<robot name="x"><link name="a"/><joint name="j" type="fixed"><parent link="a"/><child link="z"/></joint></robot>`},
		{"two roots", `<robot name="x"><link name="a"/><link name="b"/></robot>`},
		{"floating", `<robot name="x"><link name="a"/><link name="b"/><joint name="j" type="floating"><parent link="a"/><child link="b"/></joint></robot>`},
		{"missing limit", `<robot name="x"><link name="a"/><link name="b"/><joint name="j" type="revolute"><parent link="a"/><child link="b"/></joint></robot>`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			robot, err := Parse([]byte(tc.xml))
			test.That(t, err, test.ShouldBeNil)
			_, err = NewModel(robot)
			test.That(t, err, test.ShouldNotBeNil)
		})
	}
}

func TestLoadAssets(t *testing.T) {
	arm, err := LoadModel(utils.ResolveFile("assets/mobile_manipulator/ur5e/ur5e.urdf"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, arm.NumJoints(), test.ShouldEqual, 8)
	test.That(t, arm.MovableJoints(), test.ShouldResemble, []int{0, 1, 2, 3, 4, 5})

	kitchen, err := LoadModel(utils.ResolveFile("assets/kitchen/elementA.urdf"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kitchen.NumJoints(), test.ShouldEqual, 58)
	j, err := kitchen.Joint(36)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, j.Type, test.ShouldEqual, Prismatic)
	test.That(t, j.Upper, test.ShouldAlmostEqual, 0.4)
}

func TestResolveMeshPath(t *testing.T) {
	test.That(t, ResolveMeshPath("/a/b/robot.urdf", "meshes/x.stl"), test.ShouldEqual, "/a/b/meshes/x.stl")
	test.That(t, ResolveMeshPath("/a/b/robot.urdf", "package://pkg/meshes/x.stl"), test.ShouldEqual, "/a/b/meshes/x.stl")
	test.That(t, ResolveMeshPath("/a/b/robot.urdf", "/abs/x.stl"), test.ShouldEqual, "/abs/x.stl")
}

func TestMaterialRGBA(t *testing.T) {
	var m *Material
	test.That(t, m.RGBA(), test.ShouldResemble, [4]float64{1, 1, 1, 1})
	robot, err := ParseFile(utils.ResolveFile("assets/mobile_manipulator/segbot/segbot.urdf"))
	test.That(t, err, test.ShouldBeNil)
	grey, ok := robot.Material("grey")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, grey.RGBA(), test.ShouldResemble, [4]float64{0.6, 0.6, 0.6, 1})
}

func TestScaled(t *testing.T) {
	robot, err := Parse([]byte(twoLink))
	test.That(t, err, test.ShouldBeNil)
	m, err := NewModel(robot)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Scaled(1), test.ShouldEqual, m)

	scaled := m.Scaled(2)
	frames, err := scaled.LinkFrames(spatialmath.NewZeroPose(), []float64{0, 0.25})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frames[0].Z(), test.ShouldAlmostEqual, 2)
	test.That(t, frames[1].X(), test.ShouldAlmostEqual, 2.25)

	j, err := m.Joint(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, j.Origin.Z(), test.ShouldAlmostEqual, 1)
}
