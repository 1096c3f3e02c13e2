package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lashbits/silicon-toaster/host/serial"
	"github.com/lashbits/silicon-toaster/host/toaster"
)

var (
	// Serial connection flags
	portName     string
	serialNumber string

	// WebSocket connection flags
	wsURL string
)

var rootCmd = &cobra.Command{
	Use:   "toasterctl",
	Short: "Control a silicon toaster pulse generator",
	Long: `Toasterctl - CLI for the silicon toaster high-voltage pulse generator.

Controls high-voltage generation, the charge pump PWM, the closed-loop
voltage controller and its persisted gains, and fires discharge pulses.

Connection modes:
  Serial:    --port /dev/ttyUSB0 (or autodiscovered by USB product string)
  WebSocket: --url ws://host/path (device behind a network bridge, or the
             simulator)

With no connection flags the device is discovered by its USB product
string; --serial-number disambiguates when several boards are plugged in.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().StringVar(&serialNumber, "serial-number", "", "USB serial number to select among multiple boards")
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
}

// openToaster connects according to the connection flags.
func openToaster() (*toaster.Toaster, error) {
	if wsURL != "" {
		port, err := serial.OpenWebSocket(wsURL)
		if err != nil {
			return nil, err
		}
		return toaster.New(port), nil
	}
	if portName != "" {
		return toaster.Connect(portName)
	}
	return toaster.Discover(serialNumber)
}

// withToaster runs f against a connected device and closes it after.
func withToaster(f func(*toaster.Toaster) error) error {
	t, err := openToaster()
	if err != nil {
		return err
	}
	defer t.Close()
	return f(t)
}

func parseOnOff(arg string) (bool, error) {
	switch arg {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected \"on\" or \"off\", got %q", arg)
	}
}
