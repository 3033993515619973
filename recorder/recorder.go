// Package recorder captures the world poses of every visual of registered bodies, frame by frame,
// so a simulation can be replayed in an offline renderer.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/bestman-robotics/bestman/logging"
	"github.com/bestman-robotics/bestman/referenceframe/urdf"
	"github.com/bestman-robotics/bestman/sim"
	"github.com/bestman-robotics/bestman/spatialmath"
)

// The kinds of visuals a recording holds.
const (
	MeshType     = "mesh"
	BoxType      = "box"
	CylinderType = "cylinder"
)

// Keyframe is the world pose of one visual in one frame. Orientation is a quaternion in x, y, z, w
// order.
type Keyframe struct {
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
	Frame       int        `json:"frame"`
}

// LinkRecord is the recording of a single visual.
type LinkRecord struct {
	Type string `json:"type"`
	// MeshPath is empty for primitives.
	MeshPath string `json:"mesh_path,omitempty"`
	// MeshScale is the mesh scale, the box size, or the cylinder length and radius.
	MeshScale []float64  `json:"mesh_scale"`
	Frames    []Keyframe `json:"frames"`
}

type linkTracker struct {
	kind      string
	name      string
	body      sim.BodyID
	link      int
	origin    spatialmath.Pose
	meshPath  string
	meshScale []float64
}

// Recorder tracks the visuals of registered bodies.
type Recorder struct {
	mu       sync.Mutex
	engine   sim.Engine
	logger   logging.Logger
	links    []linkTracker
	states   []map[string]Keyframe
	frameCnt int
}

// New returns an empty recorder.
func New(engine sim.Engine, logger logging.Logger) *Recorder {
	return &Recorder{engine: engine, logger: logger}
}

// RegisterObject tracks every mesh, box and cylinder visual of a loaded body. Tracker names are
// <urdf file>_<body>_<link>_<visual index>.
func (r *Recorder) RegisterObject(body sim.BodyID, urdfPath string, scaling float64) error {
	if scaling == 0 {
		scaling = 1
	}
	model, err := urdf.LoadModel(urdfPath)
	if err != nil {
		return err
	}
	numJoints, err := r.engine.NumJoints(body)
	if err != nil {
		return err
	}
	if numJoints != model.NumJoints() {
		return errors.Errorf("body %d has %d links but %q describes %d", body, numJoints, urdfPath, model.NumJoints())
	}
	absPath, err := filepath.Abs(urdfPath)
	if err != nil {
		return err
	}
	fileName := strings.TrimSuffix(filepath.Base(urdfPath), filepath.Ext(urdfPath))

	var trackers []linkTracker
	for _, link := range model.Robot().Links {
		linkID, ok := model.LinkIndex(link.Name)
		if !ok {
			return errors.Errorf("link %q of %q is not part of the kinematic tree", link.Name, urdfPath)
		}
		// the engine reports the inertial frame for the base, undo it
		toLink := spatialmath.NewZeroPose()
		if linkID == sim.BaseLink {
			toLink = spatialmath.PoseInverse(link.InertialPose())
		}
		for i, visual := range link.Visuals {
			origin := spatialmath.Compose(toLink, visual.Origin.Pose())
			origin = origin.WithPoint(origin.Point().Mul(scaling))
			t := linkTracker{
				name:   fmt.Sprintf("%s_%d_%s_%d", fileName, body, link.Name, i),
				body:   body,
				link:   linkID,
				origin: origin,
			}
			geometry := visual.Geometry
			switch geometry.Type() {
			case urdf.MeshType:
				t.kind = MeshType
				t.meshPath = urdf.ResolveMeshPath(absPath, geometry.Mesh.Filename)
				t.meshScale = []float64{scaling, scaling, scaling}
				if scale := geometry.MeshScale(); scale != nil {
					t.meshScale = []float64{scale[0] * scaling, scale[1] * scaling, scale[2] * scaling}
				}
			case urdf.BoxType:
				size := geometry.BoxSize().Mul(scaling)
				t.kind = BoxType
				t.meshScale = []float64{size.X, size.Y, size.Z}
			case urdf.CylinderType:
				t.kind = CylinderType
				t.meshScale = []float64{geometry.Cylinder.Length * scaling, geometry.Cylinder.Radius * scaling}
			case urdf.SphereType, urdf.UnknownType:
				r.logger.Debugw("skipping visual", "name", t.name, "type", geometry.Type())
				continue
			}
			trackers = append(trackers, t)
		}
	}

	r.mu.Lock()
	r.links = append(r.links, trackers...)
	r.mu.Unlock()
	r.logger.Debugw("registered object", "body", body, "urdf", urdfPath, "visuals", len(trackers))
	return nil
}

// AddKeyframe records the current world pose of every tracked visual.
func (r *Recorder) AddKeyframe() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := make(map[string]Keyframe, len(r.links))
	for _, link := range r.links {
		pose, err := r.linkPose(link)
		if err != nil {
			return errors.Wrapf(err, "cannot record %s", link.name)
		}
		pose = spatialmath.Compose(pose, link.origin)
		pt := pose.Point()
		state[link.name] = Keyframe{
			Position:    [3]float64{pt.X, pt.Y, pt.Z},
			Orientation: pose.QuaternionXYZW(),
			Frame:       r.frameCnt,
		}
	}
	r.states = append(r.states, state)
	r.frameCnt++
	return nil
}

func (r *Recorder) linkPose(link linkTracker) (spatialmath.Pose, error) {
	if link.link == sim.BaseLink {
		return r.engine.BasePose(link.body)
	}
	state, err := r.engine.LinkState(link.body, link.link)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	return state.Frame, nil
}

// Reset drops the recorded frames. Tracked visuals and the frame counter are kept.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = nil
}

// NumFrames returns how many keyframes are held.
func (r *Recorder) NumFrames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// FormattedOutput groups the recorded frames by visual.
func (r *Recorder) FormattedOutput() map[string]LinkRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]LinkRecord, len(r.links))
	for _, link := range r.links {
		frames := make([]Keyframe, 0, len(r.states))
		for _, state := range r.states {
			if kf, ok := state[link.name]; ok {
				frames = append(frames, kf)
			}
		}
		out[link.name] = LinkRecord{
			Type:      link.kind,
			MeshPath:  link.meshPath,
			MeshScale: link.meshScale,
			Frames:    frames,
		}
	}
	r.logger.Infow("formatted recording", "frames", len(r.states))
	return out
}

// Save writes the formatted recording to path as JSON. An empty path only logs a warning.
func (r *Recorder) Save(path string) error {
	if path == "" {
		r.logger.Warn("recording path is empty, not saving")
		return nil
	}
	r.logger.Infow("saving recording", "path", path)
	data, err := json.Marshal(r.FormattedOutput())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Wrap(err, "cannot create recording directory")
	}
	//nolint:gosec
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "cannot write recording to %q", path)
}
