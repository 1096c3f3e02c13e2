package control

import "github.com/lashbits/silicon-toaster/flash"

// Default tuning, used whenever no valid record is found in flash.
const (
	DefaultKp          float32 = 100.0
	DefaultKi          float32 = 0.0
	DefaultKd          float32 = 0.0
	DefaultLimit       float32 = 200.0
	DefaultSetpoint    float32 = 0.0
	controlDeltaMicros         = 1000 // one control update per ~1ms
)

// SampleLogSize is the number of recent measurements the controller keeps
// for the sample-history command.
const SampleLogSize = 32

// Controller owns the PID law, its timing and its persistence.
// The measured quantity is the raw unsigned feedback sample; the output is
// remapped to an unsigned range so it can be written to a PWM comparator.
type Controller struct {
	pid PID

	// Enabled gates NeedsControl; the protocol toggles it at runtime.
	Enabled bool

	// ControlTicks is the minimum tick distance between control updates.
	ControlTicks uint64

	lastControl uint64

	samples    [SampleLogSize]uint16
	sampleHead int
	sampleLen  int
}

// NewController builds a controller with default tuning for a timer running
// at tickFreq ticks per second, then overrides gains and interval from the
// store if it holds a valid record.
func NewController(tickFreq uint64, store flash.SectorDriver) *Controller {
	c := &Controller{
		pid: PID{
			Kp:          DefaultKp,
			Ki:          DefaultKi,
			Kd:          DefaultKd,
			PLimit:      DefaultLimit,
			ILimit:      DefaultLimit,
			DLimit:      DefaultLimit,
			OutputLimit: DefaultLimit,
			Setpoint:    DefaultSetpoint,
		},
		Enabled:      true,
		ControlTicks: tickFreq / controlDeltaMicros,
	}
	if store != nil {
		c.Restore(store)
	}
	return c
}

// Step runs one control update for the given raw measurement, records now
// as the last update time and returns the output remapped to
// [0, 2*OutputLimit].
func (c *Controller) Step(measurement uint16, now uint64) uint16 {
	c.lastControl = now
	c.recordSample(measurement)

	out := c.pid.NextControlOutput(float32(measurement))

	// The law already clamps to OutputLimit, but the bound has been seen
	// to be exceeded in the field, so re-clamp by sign and magnitude
	// before remapping.
	var sign float32 = 1
	if out < 0 {
		sign = -1
	}
	mag := out * sign
	if !(mag < c.pid.OutputLimit) {
		mag = c.pid.OutputLimit
	}
	out = mag * sign

	return uint16(out + c.pid.OutputLimit)
}

// NeedsControl reports whether a control update is due: control is enabled
// and at least ControlTicks have elapsed since the last update.
func (c *Controller) NeedsControl(now uint64) bool {
	return c.Enabled && absDiff(now, c.lastControl) > c.ControlTicks
}

// LastControl returns the timestamp of the last control update, in ticks.
func (c *Controller) LastControl() uint64 {
	return c.lastControl
}

// Setpoint returns the current setpoint as a raw measurement value.
func (c *Controller) Setpoint() uint16 {
	return uint16(c.pid.Setpoint)
}

// SetSetpoint stores a new setpoint and resets the accumulated integral
// term: stale accumulation from the previous setpoint would otherwise bleed
// into the first updates after the jump.
func (c *Controller) SetSetpoint(setpoint uint16) {
	c.pid.Setpoint = float32(setpoint)
	c.pid.ResetIntegralTerm()
}

// Gains returns the current gains and control interval.
func (c *Controller) Gains() (kp, ki, kd float32, controlTicks uint64) {
	return c.pid.Kp, c.pid.Ki, c.pid.Kd, c.ControlTicks
}

// SetGains replaces the gains and the control interval.
func (c *Controller) SetGains(kp, ki, kd float32, controlTicks uint64) {
	c.pid.Kp, c.pid.Ki, c.pid.Kd = kp, ki, kd
	c.ControlTicks = controlTicks
}

// Limits returns the per-term limits, the output limit and the setpoint as
// the law sees them.
func (c *Controller) Limits() (pLimit, iLimit, dLimit, outputLimit, setpoint float32) {
	return c.pid.PLimit, c.pid.ILimit, c.pid.DLimit, c.pid.OutputLimit, c.pid.Setpoint
}

// SetLimits replaces the per-term and output limits. These are transient:
// they are not persisted and reset to defaults at boot.
func (c *Controller) SetLimits(pLimit, iLimit, dLimit, outputLimit float32) {
	c.pid.PLimit, c.pid.ILimit, c.pid.DLimit, c.pid.OutputLimit = pLimit, iLimit, dLimit, outputLimit
}

// IntegralTerm exposes the accumulated integral contribution.
func (c *Controller) IntegralTerm() float32 {
	return c.pid.IntegralTerm()
}

// Persist serializes the gains and control interval to the store.
func (c *Controller) Persist(store flash.SectorDriver) error {
	return flash.WriteRecord(store, flash.Record{
		Kp:           c.pid.Kp,
		Ki:           c.pid.Ki,
		Kd:           c.pid.Kd,
		ControlTicks: c.ControlTicks,
	})
}

// Restore overwrites gains and control interval from the store. A missing
// or invalid record is not an error: defaults are kept.
func (c *Controller) Restore(store flash.SectorDriver) {
	rec, ok := flash.ReadRecord(store)
	if !ok {
		return
	}
	c.pid.Kp, c.pid.Ki, c.pid.Kd = rec.Kp, rec.Ki, rec.Kd
	c.ControlTicks = rec.ControlTicks
}

// Samples returns the logged measurements, oldest first.
func (c *Controller) Samples() []uint16 {
	out := make([]uint16, c.sampleLen)
	start := c.sampleHead - c.sampleLen
	for i := range out {
		out[i] = c.samples[(start+i+SampleLogSize)%SampleLogSize]
	}
	return out
}

func (c *Controller) recordSample(m uint16) {
	c.samples[c.sampleHead] = m
	c.sampleHead = (c.sampleHead + 1) % SampleLogSize
	if c.sampleLen < SampleLogSize {
		c.sampleLen++
	}
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
