// Package visualization colours bodies, draws debug geometry and records simulations for offline
// rendering.
package visualization

import (
	"path/filepath"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/bestman-robotics/bestman/logging"
	"github.com/bestman-robotics/bestman/recorder"
	"github.com/bestman-robotics/bestman/sim"
	"github.com/bestman-robotics/bestman/utils"
)

// DefaultLineWidth is the width of debug lines drawn without an explicit width.
const DefaultLineWidth = 3

// Robot colours for the dark and light schemes.
var (
	baseColorDark  = [4]float64{0.2, 0.2, 0.2, 1}
	armColorDark   = [4]float64{0.7, 0.7, 0.7, 1}
	baseColorLight = [4]float64{0.75, 0.75, 0.75, 1}
	armColorLight  = [4]float64{1, 1, 1, 1}
)

// Config controls where recordings go.
type Config struct {
	OutputDir string `json:"output_dir" mapstructure:"output_dir"`
	// Record starts a recording as soon as a scene is set up.
	Record bool `json:"record" mapstructure:"record"`
}

// Visualizer decorates an engine scene.
type Visualizer struct {
	engine sim.Engine
	cfg    Config
	logger logging.Logger

	mu         sync.Mutex
	recorder   *recorder.Recorder
	recordName string
	removeHook func()
}

// New returns a visualizer for the engine scene.
func New(engine sim.Engine, cfg Config, logger logging.Logger) *Visualizer {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "records"
	}
	return &Visualizer{engine: engine, cfg: cfg, logger: logger}
}

// Config returns the visualizer configuration.
func (v *Visualizer) Config() Config {
	return v.cfg
}

// SetBodyColor colours every link of a body.
func (v *Visualizer) SetBodyColor(body sim.BodyID, rgba [4]float64) error {
	n, err := v.engine.NumJoints(body)
	if err != nil {
		return err
	}
	for link := sim.BaseLink; link < n; link++ {
		if err := v.engine.SetColor(body, link, rgba); err != nil {
			return err
		}
	}
	return nil
}

// ChangeRobotColor colours a mobile manipulator, with a darker base than arm. light selects the
// bright scheme.
func (v *Visualizer) ChangeRobotColor(base, arm sim.BodyID, light bool) error {
	baseColor, armColor := baseColorDark, armColorDark
	if light {
		baseColor, armColor = baseColorLight, armColorLight
	}
	if err := v.SetBodyColor(base, baseColor); err != nil {
		return errors.Wrap(err, "cannot colour base")
	}
	return errors.Wrap(v.SetBodyColor(arm, armColor), "cannot colour arm")
}

// SetFixtureColor colours a single link of a fixture.
func (v *Visualizer) SetFixtureColor(body sim.BodyID, link int, rgba [4]float64) error {
	return v.engine.SetColor(body, link, rgba)
}

// DrawLine adds a debug line and returns its id. A non positive width uses DefaultLineWidth.
func (v *Visualizer) DrawLine(from, to r3.Vector, color [3]float64, width float64) int {
	if width <= 0 {
		width = DefaultLineWidth
	}
	return v.engine.AddDebugLine(sim.Line{From: from, To: to, Color: color, Width: width})
}

// RemoveLines clears every debug line.
func (v *Visualizer) RemoveLines() {
	v.engine.RemoveDebugLines()
}

// Recording reports whether a recording is in progress.
func (v *Visualizer) Recording() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.recorder != nil
}

// StartRecord registers every body of the scene and records a keyframe after every engine tick.
func (v *Visualizer) StartRecord(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.recorder != nil {
		return errors.Errorf("already recording %q", v.recordName)
	}
	if name == "" {
		return errors.New("recording name must not be empty")
	}
	if _, err := utils.SafeJoinDir(v.cfg.OutputDir, name+".json"); err != nil {
		return err
	}
	rec := recorder.New(v.engine, v.logger.Sublogger("recorder"))
	for _, body := range v.engine.Bodies() {
		info, err := v.engine.BodyInfo(body)
		if err != nil {
			return err
		}
		if err := rec.RegisterObject(body, info.URDFPath, info.Scaling); err != nil {
			return errors.Wrapf(err, "cannot track body %q", info.Name)
		}
	}
	v.recorder = rec
	v.recordName = name
	v.removeHook = v.engine.AddStepHook(func(tick int64) {
		if err := rec.AddKeyframe(); err != nil {
			v.logger.Warnw("cannot record keyframe", "tick", tick, "error", err)
		}
	})
	v.logger.Infow("started recording", "name", name)
	return nil
}

// EndRecord stops recording and saves <output dir>/<name>.json. It returns the written path.
func (v *Visualizer) EndRecord() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.recorder == nil {
		return "", errors.New("not recording")
	}
	v.removeHook()
	rec, name := v.recorder, v.recordName
	v.recorder, v.recordName, v.removeHook = nil, "", nil

	path := filepath.Join(v.cfg.OutputDir, name+".json")
	if err := rec.Save(path); err != nil {
		return "", err
	}
	v.logger.Infow("finished recording", "name", name, "frames", rec.NumFrames(), "path", path)
	return path, nil
}
