// Toasterctl drives a silicon toaster high-voltage pulse generator from
// the command line: power control, PWM and PID configuration, discharge
// pulses, calibration capture and a live monitoring TUI.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
