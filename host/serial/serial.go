// Package serial opens the byte link to a silicon toaster board. The
// device side speaks plain bytes over a 9600 baud UART; this package
// abstracts whether those bytes travel over a local serial port or a
// WebSocket bridge.
package serial

import (
	"io"
)

// Port is the byte link to the device. Implementations:
//   - native serial (github.com/tarm/serial)
//   - WebSocket bridge (github.com/gorilla/websocket)
//   - in-memory loopbacks in tests
type Port interface {
	io.ReadWriteCloser
}

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g. "/dev/ttyUSB0", "COM3").
	Device string

	// Baud rate. The board's UART runs at 9600.
	Baud int

	// Read timeout in milliseconds (0 = blocking).
	ReadTimeout int
}

// DefaultConfig returns the configuration matching the board firmware.
func DefaultConfig(device string) *Config {
	return &Config{
		Device: device,
		Baud:   9600,
	}
}
