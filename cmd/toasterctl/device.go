package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lashbits/silicon-toaster/host/serial"
	"github.com/lashbits/silicon-toaster/host/toaster"
)

var hvCmd = &cobra.Command{
	Use:   "hv {on|off}",
	Short: "Enable or disable high-voltage generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		on, err := parseOnOff(args[0])
		if err != nil {
			return err
		}
		return withToaster(func(t *toaster.Toaster) error {
			return t.SetHighVoltage(on)
		})
	},
}

var voltageRaw bool

var voltageCmd = &cobra.Command{
	Use:   "voltage",
	Short: "Read the capacitor voltage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToaster(func(t *toaster.Toaster) error {
			if voltageRaw {
				raw, err := t.ReadVoltageRaw()
				if err != nil {
					return err
				}
				fmt.Println(raw)
				return nil
			}
			v, err := t.ReadVoltage()
			if err != nil {
				return err
			}
			fmt.Printf("%.1f V\n", v)
			return nil
		})
	},
}

var pwmCmd = &cobra.Command{
	Use:   "pwm [period width]",
	Short: "Show or set the charge pump PWM parameters",
	Args:  cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToaster(func(t *toaster.Toaster) error {
			if len(args) == 0 {
				period, width, err := t.GetPWM()
				if err != nil {
					return err
				}
				fmt.Printf("period=%d width=%d\n", period, width)
				return nil
			}
			if len(args) != 2 {
				return fmt.Errorf("pwm takes either no arguments or both period and width")
			}
			period, err := parseU16(args[0])
			if err != nil {
				return fmt.Errorf("period: %w", err)
			}
			width, err := parseU16(args[1])
			if err != nil {
				return fmt.Errorf("width: %w", err)
			}
			return t.SetPWM(period, width)
		})
	},
}

var shootCmd = &cobra.Command{
	Use:   "shoot <duration>",
	Short: "Fire a discharge pulse of the given duration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		duration, err := parseU16(args[0])
		if err != nil {
			return err
		}
		return withToaster(func(t *toaster.Toaster) error {
			return t.Shoot(duration)
		})
	},
}

var ticksCmd = &cobra.Command{
	Use:   "ticks",
	Short: "Read the device tick counter since power-up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToaster(func(t *toaster.Toaster) error {
			ticks, err := t.Ticks()
			if err != nil {
				return err
			}
			fmt.Println(ticks)
			return nil
		})
	},
}

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Read and reset the device's recoverable error counter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToaster(func(t *toaster.Toaster) error {
			count, err := t.ErrorCount()
			if err != nil {
				return err
			}
			fmt.Println(count)
			return nil
		})
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find connected boards by their USB product string",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		device, err := serial.Discover(serialNumber)
		if err != nil {
			return err
		}
		fmt.Println(device)
		return nil
	},
}

func parseU16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func init() {
	voltageCmd.Flags().BoolVar(&voltageRaw, "raw", false, "Print the raw ADC value instead of volts")

	rootCmd.AddCommand(hvCmd, voltageCmd, pwmCmd, shootCmd, ticksCmd, errorsCmd, discoverCmd)
}
