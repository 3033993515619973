package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/bestman-robotics/bestman/components/arm"
	"github.com/bestman-robotics/bestman/kitchen"
	"github.com/bestman-robotics/bestman/robot"
	"github.com/bestman-robotics/bestman/spatialmath"
	"github.com/bestman-robotics/bestman/utils"
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a bold yellow warning.
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.Bold, color.FgYellow).Fprint(w, "Warning: ")
	printf(w, format, a...)
}

// InfoAction prints the robot parameters and the arm joints.
func InfoAction(c *cli.Context) (err error) {
	s, err := newScene(c, false)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.close(c))
	}()

	size, err := s.robot.Size()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", robotTable(s.robot, size))
	printf(c.App.Writer, "%s", jointTable(s.robot.Arm()))
	return nil
}

// NavigateAction drives the base straight to the requested position and heading.
func NavigateAction(c *cli.Context) (err error) {
	s, err := newScene(c, false)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.close(c))
	}()

	target := r3.Vector{X: c.Float64(navigateFlagX), Y: c.Float64(navigateFlagY)}
	goal := spatialmath.NewPose(target, spatialmath.YawQuaternion(c.Float64(navigateFlagYaw)))
	res, err := s.robot.Navigator().Navigate(c.Context, goal, []r3.Vector{target}, c.Float64(navigateFlagThreshold))
	if err != nil {
		return err
	}
	pose, err := s.robot.Navigator().CurrentPose()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", resultTable(pose, res.Reached, res.Error))
	if !res.Reached {
		warningf(c.App.ErrWriter, "base stopped %.4f from the goal", res.Error)
	}
	return nil
}

// ArmAction moves the end effector to a world position, keeping its current orientation.
func ArmAction(c *cli.Context) (err error) {
	s, err := newScene(c, false)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.close(c))
	}()

	current, err := s.robot.Arm().EndEffectorPose()
	if err != nil {
		return err
	}
	goal := current.WithPoint(r3.Vector{X: c.Float64(armFlagX), Y: c.Float64(armFlagY), Z: c.Float64(armFlagZ)})
	res, err := s.robot.Arm().MoveToPose(c.Context, goal, c.Int(armFlagSteps), arm.DefaultIKThreshold)
	if err != nil {
		return err
	}
	pose, err := s.robot.Arm().EndEffectorPose()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", resultTable(pose, res.Reached, res.Error))
	if !res.Reached {
		warningf(c.App.ErrWriter, "end effector stopped %.4f from the goal", res.Error)
	}
	return nil
}

// KitchenAction opens or closes a drawer and prints the drawers of the fixture.
func KitchenAction(c *cli.Context) (err error) {
	kind, err := kitchen.ParseFixtureKind(c.String(kitchenFlagFixture))
	if err != nil {
		return err
	}
	s, err := newScene(c, true)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.close(c))
	}()

	drawer := c.Int(kitchenFlagDrawer)
	if c.Bool(kitchenFlagClose) {
		err = s.kitchen.CloseDrawer(c.Context, kind, drawer)
	} else {
		err = s.kitchen.OpenDrawer(c.Context, kind, drawer)
	}
	if err != nil {
		return err
	}
	t, err := drawerTable(s.kitchen, kind)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", t)
	return nil
}

// PlotAction writes a top down map of the robot and the kitchen.
func PlotAction(c *cli.Context) (err error) {
	s, err := newScene(c, true)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.close(c))
	}()

	path := c.Path(plotFlagOutput)
	if err := s.visualizer.PlotMap(path); err != nil {
		return errors.Wrap(err, "cannot plot map")
	}
	printf(c.App.Writer, "map saved to %s", path)
	return nil
}

func robotTable(r *robot.Robot, size float64) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Parameter", "Value"})
	t.AppendRows([]table.Row{
		{"base body", r.BaseID()},
		{"arm body", r.ArmID()},
		{"dof", r.DOF()},
		{"joint indices", fmt.Sprint(r.JointIndices())},
		{"end effector link", r.EndEffectorLink()},
		{"tcp link", r.TCPLink()},
		{"tcp height", r.TCPHeight()},
		{"arm place height", r.ArmPlaceHeight()},
		{"size", fmt.Sprintf("%.3f", size)},
	})
	return t.Render()
}

func jointTable(a *arm.Executor) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Joint", "Type", "Lower", "Upper", "Range"})
	ranges := a.JointRanges()
	for i, j := range a.JointInfo() {
		t.AppendRow(table.Row{j.Index, j.Name, j.Type, j.Lower, j.Upper, fmt.Sprintf("%.4f", ranges[i])})
	}
	return t.Render()
}

func resultTable(pose spatialmath.Pose, reached bool, posErr float64) string {
	p := pose.Point()
	t := table.NewWriter()
	t.AppendHeader(table.Row{"X", "Y", "Z", "Yaw", "Reached", "Error"})
	t.AppendRow(table.Row{
		fmt.Sprintf("%.3f", p.X),
		fmt.Sprintf("%.3f", p.Y),
		fmt.Sprintf("%.3f", p.Z),
		fmt.Sprintf("%.1f°", utils.RadToDeg(pose.Yaw())),
		reached,
		fmt.Sprintf("%.4f", posErr),
	})
	return t.Render()
}

func drawerTable(k *kitchen.Kitchen, kind kitchen.FixtureKind) (string, error) {
	t := table.NewWriter()
	t.SetTitle(kind.String())
	t.AppendHeader(table.Row{"Drawer", "Joint", "Closed", "Open", "Position"})
	for _, n := range k.Drawers(kind) {
		d, err := k.Drawer(kind, n)
		if err != nil {
			return "", err
		}
		pos, err := k.DrawerPosition(kind, n)
		if err != nil {
			return "", err
		}
		t.AppendRow(table.Row{n, d.Joint, d.Closed, d.Open, fmt.Sprintf("%.3f", pos)})
	}
	return t.Render(), nil
}
