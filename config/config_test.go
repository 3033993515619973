package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/bestman-robotics/bestman/components/base"
	"github.com/bestman-robotics/bestman/components/camera"
	"github.com/bestman-robotics/bestman/logging"
	"github.com/bestman-robotics/bestman/sim/kinematic"
	"github.com/bestman-robotics/bestman/utils"
)

func TestReadSample(t *testing.T) {
	logger := logging.NewTestLogger(t)
	t.Setenv("BESTMAN_RECORD_DIR", "/tmp/bestman-records")

	path := utils.ResolveFile("etc/configs/bestman.yaml")
	cfg, err := Read(path, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)

	test.That(t, cfg.Client.TimeStep, test.ShouldEqual, 4166600*time.Nanosecond)
	test.That(t, cfg.Controller.Kp, test.ShouldEqual, 0.01)
	test.That(t, cfg.Navigation.StepSize, test.ShouldEqual, 0.02)

	test.That(t, cfg.Robot.BaseURDFPath, test.ShouldEqual,
		utils.ResolveFile("assets/mobile_manipulator/segbot/segbot.urdf"))
	test.That(t, cfg.Robot.Arm.JointIndices, test.ShouldResemble, []int{0, 1, 2, 3, 4, 5})
	test.That(t, cfg.Robot.Arm.EndEffectorLink, test.ShouldEqual, 6)
	test.That(t, cfg.Robot.Arm.TCPLink, test.ShouldEqual, 7)
	test.That(t, cfg.Robot.Arm.TCPHeight, test.ShouldEqual, 0.15)
	test.That(t, cfg.Robot.InitJointPositions, test.ShouldHaveLength, 6)

	pose, err := cfg.Robot.Pose()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Point().X, test.ShouldEqual, 1.)

	test.That(t, cfg.Camera.Pitch, test.ShouldEqual, 0.3)
	test.That(t, cfg.Kitchen.ModelDir, test.ShouldEqual, utils.ResolveFile("assets/kitchen"))
	test.That(t, cfg.Visualizer.OutputDir, test.ShouldEqual, "/tmp/bestman-records")
}

const minimalConfig = `
Robot:
  base_urdf_path: base.urdf
  arm_urdf_path: /models/arm.urdf
  init_pose: [0, 0, 0, 0, 0, 0, 1]
  base_height: 0.3
  arm_joints_idx: [0, 1]
  tcp_link: 2
`

func TestDefaults(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cfg, err := FromReader("/configs/robot.yaml", strings.NewReader(minimalConfig), logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, cfg.Client.TimeStep, test.ShouldEqual, kinematic.DefaultTimeStep)
	test.That(t, cfg.Navigation.StepSize, test.ShouldEqual, base.DefaultStepSize)
	test.That(t, cfg.Navigation.MaxIterations, test.ShouldEqual, base.DefaultMaxIterations)
	test.That(t, cfg.Camera, test.ShouldResemble, camera.DefaultConfig())
	test.That(t, cfg.Visualizer.OutputDir, test.ShouldEqual, filepath.Join("/configs", "records"))

	test.That(t, cfg.Robot.BaseURDFPath, test.ShouldEqual, filepath.Join("/configs", "base.urdf"))
	test.That(t, cfg.Robot.ArmURDFPath, test.ShouldEqual, "/models/arm.urdf")
}

func TestNoPathResolution(t *testing.T) {
	cfg, err := FromReader("", strings.NewReader(minimalConfig), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Robot.BaseURDFPath, test.ShouldEqual, "base.urdf")
}

func TestInvalid(t *testing.T) {
	logger := logging.NewTestLogger(t)

	_, err := FromReader("", strings.NewReader("Robot: [1, 2"), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot parse config")

	_, err = FromReader("", strings.NewReader("Client:\n  time_step: soon\n"), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot decode config")

	_, err = FromReader("", strings.NewReader(`
Robot:
  init_pose: [0, 0]
  base_height: -1
Camera:
  width: 320
  height: 240
  fov: 200
  far: 10
`), logger)
	test.That(t, err, test.ShouldNotBeNil)
	for _, msg := range []string{"base_urdf_path", "arm_urdf_path", "init_pose", "base_height", "fov"} {
		test.That(t, err.Error(), test.ShouldContainSubstring, msg)
	}

	_, err = Read(filepath.Join(t.TempDir(), "missing.yaml"), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestUnusedFields(t *testing.T) {
	logger, observed := logging.NewObservedTestLogger(t)
	_, err := FromReader("", strings.NewReader(minimalConfig+"Gripper:\n  force: 3\n"), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, observed.FilterMessage("config has unused fields").Len(), test.ShouldEqual, 1)
}
