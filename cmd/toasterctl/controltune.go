package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lashbits/silicon-toaster/host/toaster"
)

var controlCmd = &cobra.Command{
	Use:   "control [on|off]",
	Short: "Show or set the closed-loop voltage control state",
	Args:  cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToaster(func(t *toaster.Toaster) error {
			if len(args) == 0 {
				on, err := t.ControlEnabled()
				if err != nil {
					return err
				}
				if on {
					fmt.Println("on")
				} else {
					fmt.Println("off")
				}
				return nil
			}
			on, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return t.SetControl(on)
		})
	},
}

var setpointRaw bool

var setpointCmd = &cobra.Command{
	Use:   "setpoint [value]",
	Short: "Show or set the control voltage setpoint",
	Long: `Show or set the voltage the closed-loop controller aims for.

The value is in volts and converted through the calibration curve; with
--raw it is the raw ADC value instead.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToaster(func(t *toaster.Toaster) error {
			if len(args) == 0 {
				if setpointRaw {
					raw, err := t.GetSetpointRaw()
					if err != nil {
						return err
					}
					fmt.Println(raw)
					return nil
				}
				v, err := t.GetSetpoint()
				if err != nil {
					return err
				}
				fmt.Printf("%.1f V\n", v)
				return nil
			}
			if setpointRaw {
				raw, err := parseU16(args[0])
				if err != nil {
					return err
				}
				return t.SetSetpointRaw(raw)
			}
			volts, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return err
			}
			return t.SetSetpoint(volts)
		})
	},
}

var (
	pidFlash bool
	pidTicks uint64
)

var pidCmd = &cobra.Command{
	Use:   "pid [kp ki kd]",
	Short: "Show or set the controller gains",
	Long: `Show or set the PID gains of the voltage controller.

Reading with --flash shows the gains persisted in non-volatile memory
instead of the live ones. Writing with --flash persists the new gains so
they survive a power cycle. --control-ticks sets the interval between
control steps, in device ticks (0 keeps the current interval).`,
	Args: cobra.RangeArgs(0, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToaster(func(t *toaster.Toaster) error {
			if len(args) == 0 {
				pid, err := t.GetPID(pidFlash)
				if err != nil {
					return err
				}
				fmt.Printf("kp=%g ki=%g kd=%g control-ticks=%d\n", pid.Kp, pid.Ki, pid.Kd, pid.ControlTicks)
				return nil
			}
			if len(args) != 3 {
				return fmt.Errorf("pid takes either no arguments or all of kp, ki and kd")
			}
			var gains [3]float64
			for i, arg := range args {
				v, err := strconv.ParseFloat(arg, 32)
				if err != nil {
					return err
				}
				gains[i] = v
			}
			ticks := pidTicks
			if ticks == 0 {
				current, err := t.GetPID(false)
				if err != nil {
					return err
				}
				ticks = current.ControlTicks
			}
			return t.SetPID(toaster.PID{
				Kp:           float32(gains[0]),
				Ki:           float32(gains[1]),
				Kd:           float32(gains[2]),
				ControlTicks: ticks,
			}, pidFlash)
		})
	},
}

var limitsCmd = &cobra.Command{
	Use:   "limits [p i d output]",
	Short: "Show or set the controller clamp limits",
	Long: `Show or set the per-term and output clamps of the voltage controller.

These are transient: the device resets them to their defaults on
power-up. Reading also reports the current setpoint and the timestamp of
the last control step.`,
	Args: cobra.RangeArgs(0, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToaster(func(t *toaster.Toaster) error {
			if len(args) == 0 {
				limits, err := t.GetLimits()
				if err != nil {
					return err
				}
				fmt.Printf("p=%g i=%g d=%g output=%g setpoint=%g last-control=%d\n",
					limits.PLimit, limits.ILimit, limits.DLimit, limits.OutputLimit,
					limits.Setpoint, limits.LastControl)
				return nil
			}
			if len(args) != 4 {
				return fmt.Errorf("limits takes either no arguments or all four clamps")
			}
			var clamps [4]float64
			for i, arg := range args {
				v, err := strconv.ParseFloat(arg, 32)
				if err != nil {
					return err
				}
				clamps[i] = v
			}
			return t.SetLimits(float32(clamps[0]), float32(clamps[1]), float32(clamps[2]), float32(clamps[3]))
		})
	},
}

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "Dump the device's recent control measurement history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToaster(func(t *toaster.Toaster) error {
			samples, err := t.Samples()
			if err != nil {
				return err
			}
			for _, s := range samples {
				fmt.Println(s)
			}
			return nil
		})
	},
}

func init() {
	setpointCmd.Flags().BoolVar(&setpointRaw, "raw", false, "Use raw ADC values instead of volts")
	pidCmd.Flags().BoolVar(&pidFlash, "flash", false, "Read from / persist to non-volatile memory")
	pidCmd.Flags().Uint64Var(&pidTicks, "control-ticks", 0, "Control step interval in device ticks (0 = keep current)")

	rootCmd.AddCommand(controlCmd, setpointCmd, pidCmd, limitsCmd, samplesCmd)
}
