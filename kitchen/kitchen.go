// Package kitchen loads the kitchen fixtures and operates their drawers and doors.
package kitchen

import (
	"context"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/bestman-robotics/bestman/logging"
	"github.com/bestman-robotics/bestman/sim"
	"github.com/bestman-robotics/bestman/spatialmath"
)

const (
	// DrawerMaxVelocity caps the drawer joint motors.
	DrawerMaxVelocity = 0.5
	// DrawerSettleTicks is how long a drawer motion runs.
	DrawerSettleTicks = 240 * 5
)

// ErrUnknownDrawer is returned for drawers a fixture does not have.
var ErrUnknownDrawer = errors.New("unknown drawer")

// FixtureKind identifies a kitchen fixture.
type FixtureKind int

// The kitchen fixtures.
const (
	// ElementA is the oven and its drawers.
	ElementA FixtureKind = iota
	// ElementB is the sink. It has no drawers.
	ElementB
	// ElementC is the dishwasher.
	ElementC
	// ElementD is the microwave.
	ElementD
	// ElementE is the refrigerator.
	ElementE
)

// FixtureKinds lists every fixture in load order.
var FixtureKinds = []FixtureKind{ElementA, ElementB, ElementC, ElementD, ElementE}

func (k FixtureKind) String() string {
	switch k {
	case ElementA:
		return "elementA"
	case ElementB:
		return "elementB"
	case ElementC:
		return "elementC"
	case ElementD:
		return "elementD"
	case ElementE:
		return "elementE"
	default:
		return "unknown"
	}
}

// ParseFixtureKind returns the fixture named s, e.g. "elementA" or "A".
func ParseFixtureKind(s string) (FixtureKind, error) {
	for _, k := range FixtureKinds {
		if strings.EqualFold(s, k.String()) || strings.EqualFold("element"+s, k.String()) {
			return k, nil
		}
	}
	return 0, errors.Errorf("unknown fixture %q", s)
}

// Drawer maps a drawer to the joint moving it and the joint positions when closed and open.
type Drawer struct {
	Joint  int
	Closed float64
	Open   float64
}

type fixture struct {
	file     string
	position r3.Vector
	yaw      float64
	color    [4]float64
	drawers  map[int]Drawer
}

var fixtures = map[FixtureKind]fixture{
	ElementA: {
		file:     "elementA.urdf",
		position: r3.Vector{X: 4, Y: 2, Z: 1.477},
		yaw:      math.Pi,
		color:    [4]float64{0.82, 0.71, 0.55, 1},
		drawers: map[int]Drawer{
			1:  {Joint: 17, Open: 1.5},
			2:  {Joint: 21, Open: -1.5},
			3:  {Joint: 26, Open: -1.5},
			4:  {Joint: 30, Open: 1.5},
			5:  {Joint: 36, Open: 0.4},
			6:  {Joint: 39, Open: 0.4},
			7:  {Joint: 47, Open: 1.5},
			8:  {Joint: 52, Open: -1.5},
			9:  {Joint: 55, Open: 0.4},
			10: {Joint: 57, Open: 0.4},
			11: {Joint: 13, Open: 1.5},
		},
	},
	ElementB: {
		file:     "elementB.urdf",
		position: r3.Vector{X: 4.3, Y: 5.95},
		yaw:      math.Pi,
		color:    [4]float64{0.82, 0.71, 0.55, 1},
		drawers:  map[int]Drawer{},
	},
	ElementC: {
		file:     "elementC.urdf",
		position: r3.Vector{X: 3.95, Y: 3.08, Z: 0.43},
		yaw:      -math.Pi / 2,
		color:    [4]float64{0.75, 0.75, 0.75, 1},
		drawers: map[int]Drawer{
			1: {Joint: 1, Open: 1.5},
			2: {Joint: 2, Open: -0.3},
			3: {Joint: 3, Open: -0.3},
		},
	},
	ElementD: {
		file:     "elementD.urdf",
		position: r3.Vector{X: 4.0, Y: 2.9, Z: 0.95},
		yaw:      math.Pi / 2,
		color:    [4]float64{0.3, 0.3, 0.3, 1},
		drawers: map[int]Drawer{
			1: {Joint: 1, Open: -1.5},
		},
	},
	ElementE: {
		file:     "elementE.urdf",
		position: r3.Vector{X: 4.1, Y: 6.42, Z: 0.05},
		yaw:      -math.Pi / 2,
		color:    [4]float64{0.9, 0.9, 0.9, 1},
		drawers: map[int]Drawer{
			1: {Joint: 1, Open: -1.5},
			2: {Joint: 2, Open: -1.5},
		},
	},
}

// Config locates the fixture models.
type Config struct {
	ModelDir string `json:"model_dir" mapstructure:"model_dir"`
}

// Validate ensures all parts of the config are valid.
func (cfg Config) Validate() error {
	if cfg.ModelDir == "" {
		return errors.New("kitchen model_dir must be set")
	}
	return nil
}

// Colorizer colours fixture links.
type Colorizer interface {
	SetFixtureColor(body sim.BodyID, link int, rgba [4]float64) error
}

// Kitchen is a set of loaded fixtures.
type Kitchen struct {
	engine sim.Engine
	bodies map[FixtureKind]sim.BodyID
	logger logging.Logger
}

// Load places every fixture into the engine and colours it.
func Load(ctx context.Context, engine sim.Engine, colorizer Colorizer, cfg Config, logger logging.Logger) (*Kitchen, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	k := &Kitchen{engine: engine, bodies: map[FixtureKind]sim.BodyID{}, logger: logger}
	for _, kind := range FixtureKinds {
		f := fixtures[kind]
		id, err := engine.LoadObject(ctx, filepath.Join(cfg.ModelDir, f.file), sim.LoadOptions{
			Name:      kind.String(),
			Pose:      spatialmath.NewPose(f.position, spatialmath.YawQuaternion(f.yaw)),
			FixedBase: true,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "cannot load %s", kind)
		}
		if err := colorizer.SetFixtureColor(id, sim.BaseLink, f.color); err != nil {
			return nil, err
		}
		k.bodies[kind] = id
		if len(f.drawers) > 0 {
			logger.Debugw("loaded fixture", "fixture", kind, "body", id,
				"drawer_joints", lo.MapValues(f.drawers, func(d Drawer, _ int) int { return d.Joint }))
		}
	}
	return k, nil
}

// Body returns the engine body of a fixture.
func (k *Kitchen) Body(kind FixtureKind) (sim.BodyID, error) {
	id, ok := k.bodies[kind]
	if !ok {
		return 0, errors.Errorf("fixture %s is not loaded", kind)
	}
	return id, nil
}

// Drawers returns the drawer numbers of a fixture in ascending order.
func (k *Kitchen) Drawers(kind FixtureKind) []int {
	drawers := lo.Keys(fixtures[kind].drawers)
	sort.Ints(drawers)
	return drawers
}

// Drawer returns the joint table entry of a drawer.
func (k *Kitchen) Drawer(kind FixtureKind, drawer int) (Drawer, error) {
	f, ok := fixtures[kind]
	if !ok {
		return Drawer{}, errors.Errorf("unknown fixture %d", kind)
	}
	d, ok := f.drawers[drawer]
	if !ok {
		return Drawer{}, errors.Wrapf(ErrUnknownDrawer, "%s has no drawer %d", kind, drawer)
	}
	return d, nil
}

// DrawerPosition returns the current joint position of a drawer.
func (k *Kitchen) DrawerPosition(kind FixtureKind, drawer int) (float64, error) {
	id, d, err := k.lookup(kind, drawer)
	if err != nil {
		return 0, err
	}
	state, err := k.engine.JointState(id, d.Joint)
	if err != nil {
		return 0, err
	}
	return state.Position, nil
}

// OpenDrawer drives a drawer to its open position.
func (k *Kitchen) OpenDrawer(ctx context.Context, kind FixtureKind, drawer int) error {
	return k.moveDrawer(ctx, kind, drawer, true)
}

// CloseDrawer drives a drawer to its closed position.
func (k *Kitchen) CloseDrawer(ctx context.Context, kind FixtureKind, drawer int) error {
	return k.moveDrawer(ctx, kind, drawer, false)
}

func (k *Kitchen) lookup(kind FixtureKind, drawer int) (sim.BodyID, Drawer, error) {
	d, err := k.Drawer(kind, drawer)
	if err != nil {
		return 0, Drawer{}, err
	}
	id, err := k.Body(kind)
	if err != nil {
		return 0, Drawer{}, err
	}
	return id, d, nil
}

func (k *Kitchen) moveDrawer(ctx context.Context, kind FixtureKind, drawer int, open bool) error {
	id, d, err := k.lookup(kind, drawer)
	if err != nil {
		return err
	}
	target := d.Closed
	if open {
		target = d.Open
	}
	k.logger.Infow("moving drawer", "fixture", kind, "drawer", drawer, "joint", d.Joint, "open", open, "target", target)
	if err := k.engine.SetJointPositionTarget(id, d.Joint, target, sim.MotorOptions{MaxVelocity: DrawerMaxVelocity}); err != nil {
		return err
	}
	return k.engine.Run(ctx, DrawerSettleTicks)
}
