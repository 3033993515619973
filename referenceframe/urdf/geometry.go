package urdf

import (
	"path/filepath"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/bestman-robotics/bestman/utils"
)

// GeometryType names the shape of a visual or collision element.
type GeometryType string

// The supported URDF geometry types.
const (
	UnknownType  GeometryType = ""
	BoxType      GeometryType = "box"
	CylinderType GeometryType = "cylinder"
	SphereType   GeometryType = "sphere"
	MeshType     GeometryType = "mesh"
)

// Geometry is the shape of a visual or collision element. Exactly one field is expected to be set.
type Geometry struct {
	Box *struct {
		Size string `xml:"size,attr"` // "x y z" format, in meters
	} `xml:"box,omitempty"`
	Cylinder *struct {
		Radius float64 `xml:"radius,attr"`
		Length float64 `xml:"length,attr"`
	} `xml:"cylinder,omitempty"`
	Sphere *struct {
		Radius float64 `xml:"radius,attr"`
	} `xml:"sphere,omitempty"`
	Mesh *struct {
		Filename string `xml:"filename,attr"`
		Scale    string `xml:"scale,attr"`
	} `xml:"mesh,omitempty"`
}

// Type returns which shape is set.
func (g *Geometry) Type() GeometryType {
	switch {
	case g.Box != nil:
		return BoxType
	case g.Cylinder != nil:
		return CylinderType
	case g.Sphere != nil:
		return SphereType
	case g.Mesh != nil:
		return MeshType
	default:
		return UnknownType
	}
}

// BoxSize returns the full box extents in meters.
func (g *Geometry) BoxSize() r3.Vector {
	if g.Box == nil {
		return r3.Vector{}
	}
	dims := padTo3(utils.SpaceDelimitedStringToFloatSlice(g.Box.Size))
	return r3.Vector{X: dims[0], Y: dims[1], Z: dims[2]}
}

// MeshScale returns the per-axis mesh scale, or nil when the URDF leaves it unset.
func (g *Geometry) MeshScale() []float64 {
	if g.Mesh == nil || strings.TrimSpace(g.Mesh.Scale) == "" {
		return nil
	}
	return padTo3(utils.SpaceDelimitedStringToFloatSlice(g.Mesh.Scale))
}

// HalfExtents returns an axis aligned half size of the shape in its own frame. Meshes are not
// loaded, so they are approximated by a 10cm cube scaled by the mesh scale.
func (g *Geometry) HalfExtents() r3.Vector {
	switch g.Type() {
	case BoxType:
		return g.BoxSize().Mul(0.5)
	case CylinderType:
		return r3.Vector{X: g.Cylinder.Radius, Y: g.Cylinder.Radius, Z: g.Cylinder.Length / 2}
	case SphereType:
		return r3.Vector{X: g.Sphere.Radius, Y: g.Sphere.Radius, Z: g.Sphere.Radius}
	case MeshType:
		const meshHalfSize = 0.05
		scale := g.MeshScale()
		if scale == nil {
			scale = []float64{1, 1, 1}
		}
		return r3.Vector{X: meshHalfSize * scale[0], Y: meshHalfSize * scale[1], Z: meshHalfSize * scale[2]}
	case UnknownType:
	}
	return r3.Vector{}
}

// ResolveMeshPath returns the mesh filename resolved against the directory of the URDF file.
// package:// URIs have their package name stripped.
func ResolveMeshPath(urdfPath, filename string) string {
	basePath := filepath.Dir(urdfPath)
	meshPath := filename
	if strings.HasPrefix(meshPath, "package://") {
		// Strip "package://<package_name>/" and use the remaining path
		meshPath = strings.TrimPrefix(meshPath, "package://")
		if idx := strings.Index(meshPath, "/"); idx != -1 {
			meshPath = meshPath[idx+1:]
		}
	}
	if filepath.IsAbs(meshPath) {
		return meshPath
	}
	abs, err := filepath.Abs(filepath.Join(basePath, meshPath))
	if err != nil {
		return filepath.Join(basePath, meshPath)
	}
	return abs
}
