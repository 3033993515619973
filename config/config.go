// Package config defines the structures to configure a simulated robot, its controllers and the
// scene around it.
package config

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/bestman-robotics/bestman/components/arm"
	"github.com/bestman-robotics/bestman/components/base"
	"github.com/bestman-robotics/bestman/components/camera"
	"github.com/bestman-robotics/bestman/control"
	"github.com/bestman-robotics/bestman/kitchen"
	"github.com/bestman-robotics/bestman/sim/kinematic"
	"github.com/bestman-robotics/bestman/spatialmath"
	"github.com/bestman-robotics/bestman/visualization"
)

// Config describes a full simulation setup.
type Config struct {
	// ConfigFilePath is the file the config was read from, if any.
	ConfigFilePath string `json:"-"`

	Client     kinematic.Config     `json:"Client"`
	Controller control.PIDConfig    `json:"Controller"`
	Navigation base.Config          `json:"Navigation"`
	Robot      RobotConfig          `json:"Robot"`
	Camera     camera.Config        `json:"Camera"`
	Visualizer visualization.Config `json:"Visualizer"`
	Kitchen    kitchen.Config       `json:"Kitchen"`
}

// RobotConfig describes a mobile manipulator built from a base and an arm model.
type RobotConfig struct {
	BaseURDFPath string `json:"base_urdf_path"`
	ArmURDFPath  string `json:"arm_urdf_path"`
	// InitPose is x, y, z followed by roll, pitch, yaw or by a quaternion in x, y, z, w order.
	InitPose []float64 `json:"init_pose"`
	// BaseHeight is the height of the top of the base; the arm is placed 2cm above it.
	BaseHeight         float64   `json:"base_height"`
	InitJointPositions []float64 `json:"arm_init_jointValues"`

	Arm arm.Config `json:",squash"`
}

// Pose returns the initial pose of the robot.
func (cfg RobotConfig) Pose() (spatialmath.Pose, error) {
	if len(cfg.InitPose) < 3 {
		return spatialmath.Pose{}, errors.Errorf("init_pose needs at least 3 values, got %d", len(cfg.InitPose))
	}
	return spatialmath.NewPoseFromSlices(cfg.InitPose[:3], cfg.InitPose[3:])
}

// Validate ensures all parts of the robot config are valid.
func (cfg RobotConfig) Validate() error {
	var errs error
	if cfg.BaseURDFPath == "" {
		errs = multierr.Append(errs, errors.New("base_urdf_path must be set"))
	}
	if cfg.ArmURDFPath == "" {
		errs = multierr.Append(errs, errors.New("arm_urdf_path must be set"))
	}
	if _, err := cfg.Pose(); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "invalid init_pose"))
	}
	if cfg.BaseHeight < 0 {
		errs = multierr.Append(errs, errors.Errorf("base_height must be >= 0, got %v", cfg.BaseHeight))
	}
	if err := cfg.Arm.Validate(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if len(cfg.InitJointPositions) != 0 && len(cfg.InitJointPositions) != len(cfg.Arm.JointIndices) {
		errs = multierr.Append(errs, errors.Errorf("arm_init_jointValues has %d values for %d joints",
			len(cfg.InitJointPositions), len(cfg.Arm.JointIndices)))
	}
	return errs
}

// Validate returns every problem found in the config.
func (cfg *Config) Validate() error {
	var errs error
	if cfg.Client.TimeStep < 0 {
		errs = errors.Errorf("Client: time_step must be >= 0, got %v", cfg.Client.TimeStep)
	}
	return multierr.Combine(
		errs,
		errors.Wrap(cfg.Controller.Validate(), "Controller"),
		errors.Wrap(cfg.Robot.Validate(), "Robot"),
		errors.Wrap(cfg.Camera.Validate(), "Camera"),
	)
}

func (cfg *Config) applyDefaults() {
	if cfg.Camera == (camera.Config{}) {
		cfg.Camera = camera.DefaultConfig()
	}
	defaults := camera.DefaultConfig()
	if cfg.Camera.Width == 0 && cfg.Camera.Height == 0 {
		cfg.Camera.Width, cfg.Camera.Height = defaults.Width, defaults.Height
	}
	if cfg.Camera.FOV == 0 {
		cfg.Camera.FOV = defaults.FOV
	}
	if cfg.Camera.Far == 0 {
		cfg.Camera.Far = defaults.Far
	}
	if cfg.Navigation.StepSize == 0 {
		cfg.Navigation.StepSize = base.DefaultStepSize
	}
	if cfg.Navigation.MaxIterations == 0 {
		cfg.Navigation.MaxIterations = base.DefaultMaxIterations
	}
	if cfg.Client.TimeStep == 0 {
		cfg.Client.TimeStep = kinematic.DefaultTimeStep
	}
	if cfg.Visualizer.OutputDir == "" {
		cfg.Visualizer.OutputDir = "records"
	}
}
