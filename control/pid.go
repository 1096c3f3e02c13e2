// Package control implements the closed-loop regulation of the measured
// high-voltage feedback signal.
package control

// PID is a proportional-integral-derivative control law with a symmetric
// clamp on each term and on the summed output. The derivative acts on the
// measurement rather than the error so a setpoint jump does not produce a
// derivative kick.
type PID struct {
	Kp, Ki, Kd float32

	// Per-term clamps and the final output clamp, all symmetric: a limit
	// L bounds the value to [-L, L].
	PLimit, ILimit, DLimit, OutputLimit float32

	Setpoint float32

	// integral accumulates the Ki-scaled error, clamped to ILimit, so
	// retuning Ki does not rescale history.
	integral        float32
	prevMeasurement float32
	hasPrev         bool
}

func clampSym(v, limit float32) float32 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// NextControlOutput advances the law by one step for the given measurement
// and returns the summed, clamped control value.
func (p *PID) NextControlOutput(measurement float32) float32 {
	err := p.Setpoint - measurement

	pTerm := clampSym(p.Kp*err, p.PLimit)

	p.integral = clampSym(p.integral+p.Ki*err, p.ILimit)

	var dTerm float32
	if p.hasPrev {
		dTerm = clampSym(-p.Kd*(measurement-p.prevMeasurement), p.DLimit)
	}
	p.prevMeasurement = measurement
	p.hasPrev = true

	return clampSym(pTerm+p.integral+dTerm, p.OutputLimit)
}

// ResetIntegralTerm clears the accumulated integral contribution. Called on
// every setpoint change to avoid windup from stale error history.
func (p *PID) ResetIntegralTerm() {
	p.integral = 0
}

// IntegralTerm returns the current accumulated integral contribution.
func (p *PID) IntegralTerm() float32 {
	return p.integral
}
