// Package core runs the firmware main loop: command dispatch, closed-loop
// regulation and the safety supervisor. All hardware access goes through
// the interfaces in this file; register-level bring-up lives in the target
// packages and is never assumed here.
package core

// Indicator selects one of the two status indicators.
type Indicator uint8

const (
	// IndicatorHazard is lit whenever the system is in a dangerous
	// state, and blinks forever once the loop has faulted.
	IndicatorHazard Indicator = iota
	// IndicatorSafe is lit when the output is at a safe level and high
	// voltage is off.
	IndicatorSafe
)

// Sensor returns the latest raw conversion of the feedback signal. The
// conversion runs continuously; reads never block.
type Sensor interface {
	ReadMeasurement() uint16
}

// IndicatorDriver drives the status indicators.
type IndicatorDriver interface {
	SetIndicator(which Indicator, on bool)
}

// Clock is the free-running system timer.
type Clock interface {
	// Ticks returns the tick counter since power-up.
	Ticks() uint64
	// DelayTicks busy-waits for approximately n ticks.
	DelayTicks(n uint64)
}
