package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lashbits/silicon-toaster/host/calibration"
	"github.com/lashbits/silicon-toaster/host/toaster"
)

var (
	calPeriod   uint16
	calMaxWidth uint16
	calAverage  int
	calOutput   string
	calFit      bool
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Capture a calibration curve against an external voltmeter",
	Long: `Sweep the PWM width at a fixed period, and for each step average the
raw ADC readings and prompt for the voltage measured externally. Samples
are appended to a JSON-lines capture file; with --fit the polynomial
curves are re-derived from the full capture at the end.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := calibration.OpenLog(calOutput)
		if err != nil {
			return err
		}
		defer log.Close()

		stdin := bufio.NewReader(os.Stdin)

		err = withToaster(func(t *toaster.Toaster) error {
			if err := t.SetControl(false); err != nil {
				return err
			}
			if err := t.SetHighVoltage(true); err != nil {
				return err
			}
			defer t.SetHighVoltage(false)

			for width := uint16(1); width <= calMaxWidth; width++ {
				if err := t.SetPWM(calPeriod, width); err != nil {
					return err
				}

				fmt.Printf("period=%d width=%d, press enter when the voltage settles... ", calPeriod, width)
				if _, err := stdin.ReadString('\n'); err != nil {
					return err
				}

				fmt.Println("measuring...")
				var acc float64
				for i := 0; i < calAverage; i++ {
					raw, err := t.ReadVoltageRaw()
					if err != nil {
						return err
					}
					acc += float64(raw)
					time.Sleep(50 * time.Millisecond)
				}
				avg := acc / float64(calAverage)

				fmt.Print("voltmeter reading (V): ")
				line, err := stdin.ReadString('\n')
				if err != nil {
					return err
				}
				volts, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
				if err != nil {
					return err
				}

				if err := log.Append(calibration.Sample{
					Period:  calPeriod,
					Width:   width,
					Value:   avg,
					Voltage: volts,
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		if !calFit {
			return nil
		}
		return fitCapture(calOutput)
	},
}

// fitCapture re-derives both conversion polynomials from a capture file.
func fitCapture(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	samples, err := calibration.ReadLog(f)
	if err != nil {
		return err
	}

	raws := make([]float64, len(samples))
	volts := make([]float64, len(samples))
	for i, s := range samples {
		raws[i] = s.Value
		volts[i] = s.Voltage
	}

	rawToVolts, err := calibration.Fit(raws, volts, 4)
	if err != nil {
		return err
	}
	voltsToRaw, err := calibration.Fit(volts, raws, 4)
	if err != nil {
		return err
	}

	fmt.Println("raw -> volts:", rawToVolts)
	fmt.Println("volts -> raw:", voltsToRaw)
	return nil
}

func init() {
	calibrateCmd.Flags().Uint16Var(&calPeriod, "period", 1600, "PWM period during the sweep")
	calibrateCmd.Flags().Uint16Var(&calMaxWidth, "max-width", 40, "Last PWM width of the sweep")
	calibrateCmd.Flags().IntVar(&calAverage, "average", 100, "Readings averaged per step")
	calibrateCmd.Flags().StringVar(&calOutput, "output", "calibration.log", "Capture file (JSON lines, appended)")
	calibrateCmd.Flags().BoolVar(&calFit, "fit", false, "Fit polynomial curves from the capture when done")

	rootCmd.AddCommand(calibrateCmd)
}
