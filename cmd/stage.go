/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/allbin/labctl"
	"github.com/allbin/labctl/internal/rig"
	"github.com/spf13/cobra"
)

var (
	stageName    string
	stageTimeout time.Duration
)

// stageCmd represents the stage command
var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Send commands to one ESP30x stage controller",
	Long: `Send single commands to a stage controller named in labctl.yaml.

Only the selected controller is opened. When the rig has a single stage
--stage can be left out.

Examples:
  labctl stage position --stage xy
  labctl stage move 2 12.5 --stage xy --wait
  labctl stage home all --stage z
  labctl stage abort --stage xy`,
}

// withStage opens the selected stage and runs fn under the command timeout
func withStage(fn func(ctx context.Context, m *labctl.MotionController) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name := stageName
	if name == "" {
		if len(cfg.Stages) != 1 {
			names := make([]string, len(cfg.Stages))
			for i, s := range cfg.Stages {
				names[i] = s.Name
			}
			return fmt.Errorf("--stage is required, configured stages: %s", strings.Join(names, ", "))
		}
		name = cfg.Stages[0].Name
	}

	sc, err := cfg.FindStage(name)
	if err != nil {
		return err
	}
	m, err := rig.OpenStage(sc, log)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()

	return fn(ctx, m)
}

func parseAxis(s string) (labctl.Axis, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("axis %q must be a positive integer", s)
	}
	return labctl.Axis(n), nil
}

// parseDirection accepts a single + or -
func parseDirection(s string) (labctl.Direction, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("direction %q must be + or -", s)
	}
	dir := labctl.Direction(s[0])
	if dir != labctl.Forward && dir != labctl.Backward {
		return 0, fmt.Errorf("direction %q must be + or -", s)
	}
	return dir, nil
}

func parseNumber(name, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number", name, s)
	}
	return f, nil
}

func done(format string, args ...any) {
	fmt.Printf("%s %s\n", successStyle.Render("✓"), fmt.Sprintf(format, args...))
}

var stageMoveCmd = &cobra.Command{
	Use:   "move <axis> <position>",
	Short: "Move an axis to an absolute position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		axis, err := parseAxis(args[0])
		if err != nil {
			return err
		}
		pos, err := parseNumber("position", args[1])
		if err != nil {
			return err
		}
		wait, _ := cmd.Flags().GetBool("wait")

		return withStage(func(ctx context.Context, m *labctl.MotionController) error {
			if wait {
				if err := m.MoveToAndWait(ctx, axis, pos); err != nil {
					return err
				}
				done("axis %d at %g", axis, pos)
				return nil
			}
			if err := m.MoveTo(ctx, axis, pos); err != nil {
				return err
			}
			done("axis %d moving to %g", axis, pos)
			return nil
		})
	},
}

var stageJogCmd = &cobra.Command{
	Use:   "jog <axis> <+|-> <velocity>",
	Short: "Start a continuous move at the given velocity",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		axis, err := parseAxis(args[0])
		if err != nil {
			return err
		}
		dir, err := parseDirection(args[1])
		if err != nil {
			return err
		}
		velocity, err := parseNumber("velocity", args[2])
		if err != nil {
			return err
		}

		return withStage(func(ctx context.Context, m *labctl.MotionController) error {
			if err := m.SetVelocity(ctx, axis, velocity); err != nil {
				return err
			}
			if err := m.MoveIndefinite(ctx, axis, dir); err != nil {
				return err
			}
			done("axis %d jogging %c at %g", axis, dir, velocity)
			return nil
		})
	},
}

var stageHomeCmd = &cobra.Command{
	Use:   "home <axis|all>",
	Short: "Start the origin search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "all" {
			return withStage(func(ctx context.Context, m *labctl.MotionController) error {
				if err := m.HomeAll(ctx); err != nil {
					return err
				}
				done("homing all axes")
				return nil
			})
		}

		axis, err := parseAxis(args[0])
		if err != nil {
			return err
		}
		return withStage(func(ctx context.Context, m *labctl.MotionController) error {
			if err := m.Home(ctx, axis); err != nil {
				return err
			}
			done("homing axis %d", axis)
			return nil
		})
	},
}

var stageStopCmd = &cobra.Command{
	Use:   "stop <axis>",
	Short: "Decelerate an axis to a stop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		axis, err := parseAxis(args[0])
		if err != nil {
			return err
		}
		return withStage(func(ctx context.Context, m *labctl.MotionController) error {
			if err := m.Stop(ctx, axis); err != nil {
				return err
			}
			done("axis %d stopped", axis)
			return nil
		})
	},
}

var stageAbortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Abort motion on every axis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStage(func(ctx context.Context, m *labctl.MotionController) error {
			if err := m.EmergencyStop(ctx); err != nil {
				return err
			}
			done("motion aborted")
			return nil
		})
	},
}

var stageEnableCmd = &cobra.Command{
	Use:   "enable <axis>",
	Short: "Power the motor of an axis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		axis, err := parseAxis(args[0])
		if err != nil {
			return err
		}
		return withStage(func(ctx context.Context, m *labctl.MotionController) error {
			if err := m.EnableAxis(ctx, axis); err != nil {
				return err
			}
			done("axis %d enabled", axis)
			return nil
		})
	},
}

var stageVelocityCmd = &cobra.Command{
	Use:   "velocity <axis> <velocity>",
	Short: "Set the velocity setpoint of an axis",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		axis, err := parseAxis(args[0])
		if err != nil {
			return err
		}
		velocity, err := parseNumber("velocity", args[1])
		if err != nil {
			return err
		}
		return withStage(func(ctx context.Context, m *labctl.MotionController) error {
			if err := m.SetVelocity(ctx, axis, velocity); err != nil {
				return err
			}
			done("axis %d velocity %g", axis, velocity)
			return nil
		})
	},
}

var stageResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the controller",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStage(func(ctx context.Context, m *labctl.MotionController) error {
			if err := m.Reset(ctx); err != nil {
				return err
			}
			done("controller reset")
			return nil
		})
	},
}

var stagePositionCmd = &cobra.Command{
	Use:   "position",
	Short: "Print the position of every axis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStage(func(ctx context.Context, m *labctl.MotionController) error {
			pos, err := m.Position(ctx)
			if err != nil {
				return err
			}
			for _, axis := range sortedAxes(pos) {
				fmt.Printf("  axis %d: %s\n", axis, infoStyle.Render(strconv.FormatFloat(pos[axis], 'f', 3, 64)))
			}
			return nil
		})
	},
}

var stageStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print positions and motion state of every axis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStage(func(ctx context.Context, m *labctl.MotionController) error {
			st, err := m.Status(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Stage %s\n\n", infoStyle.Render(m.Name()))
			for _, axis := range sortedAxes(st.Position) {
				state := faintStyle.Render("idle")
				if st.Moving[axis] {
					state = successStyle.Render("moving")
				}
				fmt.Printf("  axis %d: %10.3f  %s\n", axis, st.Position[axis], state)
			}
			return nil
		})
	},
}

var stageErrorCmd = &cobra.Command{
	Use:   "error",
	Short: "Read the oldest entry of the controller error buffer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStage(func(ctx context.Context, m *labctl.MotionController) error {
			msg, err := m.ReadError(ctx)
			if err != nil {
				return err
			}
			if strings.HasPrefix(msg, "0,") {
				fmt.Printf("%s\n", faintStyle.Render(msg))
				return nil
			}
			fmt.Printf("%s\n", errorStyle.Render(msg))
			return nil
		})
	},
}

func sortedAxes[T any](m map[labctl.Axis]T) []labctl.Axis {
	axes := make([]labctl.Axis, 0, len(m))
	for a := range m {
		axes = append(axes, a)
	}
	sort.Slice(axes, func(i, j int) bool { return axes[i] < axes[j] })
	return axes
}

func init() {
	rootCmd.AddCommand(stageCmd)

	stageCmd.PersistentFlags().StringVarP(&stageName, "stage", "s", "", "Stage name from labctl.yaml")
	stageCmd.PersistentFlags().DurationVarP(&stageTimeout, "timeout", "t", time.Minute, "Give up after this long")
	stageMoveCmd.Flags().BoolP("wait", "w", false, "Wait until the controller reports no motion")

	stageCmd.AddCommand(
		stageMoveCmd,
		stageJogCmd,
		stageHomeCmd,
		stageStopCmd,
		stageAbortCmd,
		stageEnableCmd,
		stageVelocityCmd,
		stageResetCmd,
		stagePositionCmd,
		stageStatusCmd,
		stageErrorCmd,
	)
}
