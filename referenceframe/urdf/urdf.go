// Package urdf reads Unified Robot Description Format files into link/joint descriptions and
// kinematic models.
package urdf

import (
	"encoding/xml"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/bestman-robotics/bestman/spatialmath"
	"github.com/bestman-robotics/bestman/utils"
)

// Extension is the file extension associated with URDF files.
const Extension string = "urdf"

// ErrNoModelInformation is returned when URDF data is empty.
var ErrNoModelInformation = errors.New("no model information")

// Robot represents all supported fields in a Universal Robot Description Format (URDF) file.
type Robot struct {
	XMLName   xml.Name   `xml:"robot"`
	Name      string     `xml:"name,attr"`
	Links     []Link     `xml:"link"`
	Joints    []Joint    `xml:"joint"`
	Materials []Material `xml:"material"`
}

// Link is a struct which details the XML used in a URDF link element.
type Link struct {
	XMLName    xml.Name    `xml:"link"`
	Name       string      `xml:"name,attr"`
	Inertial   *Inertial   `xml:"inertial,omitempty"`
	Visuals    []Visual    `xml:"visual"`
	Collisions []Collision `xml:"collision"`
}

// Inertial holds the centre of mass frame and mass of a link.
type Inertial struct {
	Origin *Origin `xml:"origin,omitempty"`
	Mass   *struct {
		Value float64 `xml:"value,attr"`
	} `xml:"mass,omitempty"`
}

// Visual is a rendered geometry attached to a link.
type Visual struct {
	Name     string    `xml:"name,attr"`
	Origin   *Origin   `xml:"origin,omitempty"`
	Geometry Geometry  `xml:"geometry"`
	Material *Material `xml:"material,omitempty"`
}

// Collision is a collision geometry attached to a link.
type Collision struct {
	Origin   *Origin  `xml:"origin,omitempty"`
	Geometry Geometry `xml:"geometry"`
}

// Material is a named colour.
type Material struct {
	Name  string `xml:"name,attr"`
	Color *struct {
		RGBA string `xml:"rgba,attr"`
	} `xml:"color,omitempty"`
}

// Origin is an xyz translation and rpy rotation, in meters and radians.
type Origin struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

// Frame names a link.
type Frame struct {
	Link string `xml:"link,attr"`
}

// Axis is the joint axis expressed in the joint frame.
type Axis struct {
	XYZ string `xml:"xyz,attr"`
}

// Limit bounds a joint. Translation limits are in meters, revolute limits are in radians.
type Limit struct {
	Lower    float64 `xml:"lower,attr"`
	Upper    float64 `xml:"upper,attr"`
	Effort   float64 `xml:"effort,attr"`
	Velocity float64 `xml:"velocity,attr"`
}

// Dynamics holds the damping and friction of a joint.
type Dynamics struct {
	Damping  float64 `xml:"damping,attr"`
	Friction float64 `xml:"friction,attr"`
}

// Joint is a struct which details the XML used in a URDF joint element.
type Joint struct {
	XMLName  xml.Name  `xml:"joint"`
	Name     string    `xml:"name,attr"`
	Type     string    `xml:"type,attr"`
	Parent   Frame     `xml:"parent"`
	Child    Frame     `xml:"child"`
	Origin   *Origin   `xml:"origin,omitempty"`
	Axis     *Axis     `xml:"axis,omitempty"`
	Limit    *Limit    `xml:"limit,omitempty"`
	Dynamics *Dynamics `xml:"dynamics,omitempty"`
}

// Parse unmarshals URDF XML data.
func Parse(xmlData []byte) (*Robot, error) {
	// empty data probably means that the read URDF has no actionable information
	if len(xmlData) == 0 {
		return nil, ErrNoModelInformation
	}
	robot := &Robot{}
	if err := xml.Unmarshal(xmlData, robot); err != nil {
		return nil, errors.Wrap(err, "failed to convert URDF data to equivalent Robot struct")
	}
	if len(robot.Links) == 0 {
		return nil, errors.Errorf("URDF %q defines no links", robot.Name)
	}
	return robot, nil
}

// ParseFile reads and parses a URDF file.
func ParseFile(filename string) (*Robot, error) {
	//nolint:gosec
	xmlData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read URDF file")
	}
	return Parse(xmlData)
}

// Link returns the link with the given name.
func (r *Robot) Link(name string) (*Link, bool) {
	for i := range r.Links {
		if r.Links[i].Name == name {
			return &r.Links[i], true
		}
	}
	return nil, false
}

// Material returns the top level material with the given name.
func (r *Robot) Material(name string) (*Material, bool) {
	for i := range r.Materials {
		if r.Materials[i].Name == name {
			return &r.Materials[i], true
		}
	}
	return nil, false
}

// Pose converts the origin to a pose. A nil origin is the identity.
func (o *Origin) Pose() spatialmath.Pose {
	if o == nil {
		return spatialmath.NewZeroPose()
	}
	xyz := padTo3(utils.SpaceDelimitedStringToFloatSlice(o.XYZ))
	rpy := padTo3(utils.SpaceDelimitedStringToFloatSlice(o.RPY))
	return spatialmath.NewPoseFromEuler(
		r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]},
		spatialmath.EulerAngles{Roll: rpy[0], Pitch: rpy[1], Yaw: rpy[2]},
	)
}

// Vector returns the unit joint axis. URDF defaults the axis to +X when omitted.
func (a *Axis) Vector() r3.Vector {
	if a == nil {
		return r3.Vector{X: 1}
	}
	xyz := padTo3(utils.SpaceDelimitedStringToFloatSlice(a.XYZ))
	v := r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}
	if v.Norm() == 0 {
		return r3.Vector{X: 1}
	}
	return v.Normalize()
}

// InertialPose returns the centre of mass frame of the link relative to the link frame.
func (l *Link) InertialPose() spatialmath.Pose {
	if l.Inertial == nil {
		return spatialmath.NewZeroPose()
	}
	return l.Inertial.Origin.Pose()
}

// RGBA parses the material colour. Missing colours are opaque white.
func (m *Material) RGBA() [4]float64 {
	out := [4]float64{1, 1, 1, 1}
	if m == nil || m.Color == nil {
		return out
	}
	for i, v := range utils.SpaceDelimitedStringToFloatSlice(m.Color.RGBA) {
		if i < 4 {
			out[i] = v
		}
	}
	return out
}

func padTo3(in []float64) []float64 {
	out := make([]float64, 3)
	for i := 0; i < 3 && i < len(in); i++ {
		out[i] = in[i]
	}
	return out
}
