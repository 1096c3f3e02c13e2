package control

import (
	"math"
	"testing"
)

func TestPIDProportionalOnly(t *testing.T) {
	pid := PID{Kp: 2, PLimit: 100, ILimit: 100, DLimit: 100, OutputLimit: 100, Setpoint: 10}
	got := pid.NextControlOutput(4)
	if got != 12 {
		t.Errorf("output = %v, want 12 (kp * error)", got)
	}
}

func TestPIDTermClamps(t *testing.T) {
	pid := PID{Kp: 1000, PLimit: 5, ILimit: 5, DLimit: 5, OutputLimit: 100, Setpoint: 100}
	if got := pid.NextControlOutput(0); got > 10 {
		t.Errorf("output = %v, want p and i terms clamped to 5 each", got)
	}
}

func TestPIDOutputClamp(t *testing.T) {
	pid := PID{Kp: 1000, PLimit: 200, ILimit: 200, DLimit: 200, OutputLimit: 50, Setpoint: 100}
	if got := pid.NextControlOutput(0); got != 50 {
		t.Errorf("output = %v, want 50", got)
	}
	if got := pid.NextControlOutput(200); got != -50 {
		t.Errorf("output = %v, want -50", got)
	}
}

func TestPIDIntegralAccumulatesScaledError(t *testing.T) {
	pid := PID{Ki: 0.5, PLimit: 100, ILimit: 100, DLimit: 100, OutputLimit: 100, Setpoint: 10}
	pid.NextControlOutput(0) // integral = 5
	pid.NextControlOutput(0) // integral = 10
	if got := pid.IntegralTerm(); got != 10 {
		t.Errorf("integral = %v, want 10", got)
	}
	pid.ResetIntegralTerm()
	if got := pid.IntegralTerm(); got != 0 {
		t.Errorf("integral after reset = %v, want 0", got)
	}
}

func TestPIDDerivativeOnMeasurement(t *testing.T) {
	pid := PID{Kd: 1, PLimit: 100, ILimit: 100, DLimit: 100, OutputLimit: 100}
	pid.NextControlOutput(10) // first step: no previous measurement, no d term
	got := pid.NextControlOutput(14)
	if got != -4 {
		t.Errorf("output = %v, want -4 (derivative opposes rising measurement)", got)
	}
}

func TestPIDNoDerivativeKickOnFirstStep(t *testing.T) {
	pid := PID{Kd: 50, PLimit: 100, ILimit: 100, DLimit: 100, OutputLimit: 100}
	if got := pid.NextControlOutput(40); got != 0 {
		t.Errorf("first step output = %v, want 0", got)
	}
}

func TestClampSymNaNPassesThrough(t *testing.T) {
	// The law itself does not repair NaN; the controller's defensive
	// clamp is responsible for keeping the final output bounded.
	nan := float32(math.NaN())
	if got := clampSym(nan, 10); !math.IsNaN(float64(got)) {
		t.Errorf("clampSym(NaN) = %v, want NaN", got)
	}
}
