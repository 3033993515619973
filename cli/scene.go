package cli

import (
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/bestman-robotics/bestman/config"
	"github.com/bestman-robotics/bestman/kitchen"
	"github.com/bestman-robotics/bestman/logging"
	"github.com/bestman-robotics/bestman/robot"
	"github.com/bestman-robotics/bestman/sim/kinematic"
	"github.com/bestman-robotics/bestman/visualization"
)

// scene is everything a command works on.
type scene struct {
	cfg        *config.Config
	engine     *kinematic.Engine
	visualizer *visualization.Visualizer
	robot      *robot.Robot
	kitchen    *kitchen.Kitchen
	logger     logging.Logger
}

func newLogger(c *cli.Context) (logging.Logger, error) {
	logger := logging.NewBlankLogger("bestman")
	if color.NoColor {
		logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	} else {
		logger.AddAppender(logging.NewColorAppender(c.App.ErrWriter))
	}
	if c.Bool(generalFlagDebug) {
		return logger, nil
	}
	level, err := logging.LevelFromString(c.String(generalFlagLogLevel))
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	return logger, nil
}

// newScene reads the config and loads the robot, plus the kitchen when withKitchen is set.
func newScene(c *cli.Context, withKitchen bool) (_ *scene, err error) {
	logger, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Read(c.Path(generalFlagConfig), logger)
	if err != nil {
		return nil, err
	}
	if c.Bool(generalFlagRecord) {
		cfg.Visualizer.Record = true
	}

	s := &scene{cfg: cfg, logger: logger}
	s.engine = kinematic.New(cfg.Client, logger.Sublogger("engine"))
	defer func() {
		if err != nil {
			err = multierr.Combine(err, s.engine.Disconnect())
		}
	}()
	s.visualizer = visualization.New(s.engine, cfg.Visualizer, logger.Sublogger("visualizer"))

	if withKitchen {
		s.kitchen, err = kitchen.Load(c.Context, s.engine, s.visualizer, cfg.Kitchen, logger.Sublogger("kitchen"))
		if err != nil {
			return nil, errors.Wrap(err, "cannot load kitchen")
		}
	}
	s.robot, err = robot.New(c.Context, s.engine, s.visualizer, cfg, logger.Sublogger("robot"))
	if err != nil {
		return nil, err
	}
	if cfg.Visualizer.Record {
		if err := s.visualizer.StartRecord(c.Command.Name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// close finishes a running recording and disconnects the engine.
func (s *scene) close(c *cli.Context) error {
	var errs error
	if s.visualizer.Recording() {
		path, err := s.visualizer.EndRecord()
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			printf(c.App.Writer, "recording saved to %s", path)
		}
	}
	return multierr.Combine(errs, s.engine.Disconnect())
}
