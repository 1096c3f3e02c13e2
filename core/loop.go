package core

import (
	"github.com/lashbits/silicon-toaster/control"
	"github.com/lashbits/silicon-toaster/flash"
	"github.com/lashbits/silicon-toaster/protocol"
)

// blinkHalfPeriodTicks paces the fault blink pattern, roughly 250 ms at
// the 64 MHz reference tick rate.
const blinkHalfPeriodTicks = 16_000_000

// Config wires a Loop to its hardware collaborators.
type Config struct {
	// TickFreq is the system timer frequency in ticks per second; it
	// sizes the default control interval.
	TickFreq    uint64
	Sensor      Sensor
	Clock       Clock
	Actuator    protocol.Actuator
	Transmitter protocol.Transmitter
	Indicators  IndicatorDriver
	// Store is the sector holding persisted tuning; may be nil when the
	// target has no non-volatile storage.
	Store flash.SectorDriver

	// ReadDeadlineTicks, when non-zero, bounds payload reads. The
	// reference behavior is 0: a stalled host blocks the loop, safety
	// supervisor included.
	ReadDeadlineTicks uint64
}

// Loop is the firmware main loop, a state machine with two states: running
// and faulted. Faulted is terminal; its exit action is an indefinite
// hazard-indicator blink.
type Loop struct {
	cfg        Config
	queue      *protocol.ByteQueue
	dispatcher *protocol.Dispatcher
	controller *control.Controller
	supervisor *Supervisor

	faulted bool
	err     error
}

// NewLoop builds the control nucleus: receive queue, controller (restored
// from the store when it holds a valid record), dispatcher and supervisor.
func NewLoop(cfg Config) *Loop {
	l := &Loop{
		cfg:        cfg,
		queue:      protocol.NewByteQueue(),
		controller: control.NewController(cfg.TickFreq, cfg.Store),
		supervisor: NewSupervisor(cfg.Indicators),
	}
	l.dispatcher = protocol.NewDispatcher(l.queue, cfg.Transmitter, cfg.Actuator, l.controller, cfg.Store, cfg.Clock)
	l.dispatcher.ReadDeadlineTicks = cfg.ReadDeadlineTicks
	return l
}

// Queue exposes the receive queue so the target's receive path (interrupt
// handler or reader goroutine) can push bytes into the loop.
func (l *Loop) Queue() *protocol.ByteQueue {
	return l.queue
}

// Controller exposes the controller, mainly to simulators and tests.
func (l *Loop) Controller() *control.Controller {
	return l.controller
}

// Step runs one loop iteration. A non-nil error is fatal: Run transitions
// to the faulted state and never steps again.
func (l *Loop) Step() error {
	measurement := l.cfg.Sensor.ReadMeasurement()

	if l.queue.Overflowed() {
		// The consumer fell behind the producer; framing integrity
		// is gone.
		return protocol.ErrQueueOverflow
	}

	if l.queue.HasData() {
		if err := l.dispatcher.Dispatch(measurement); err != nil {
			return err
		}
	}

	now := l.cfg.Clock.Ticks()
	if l.controller.NeedsControl(now) {
		width := l.controller.Step(measurement, now)
		period, _ := l.dispatcher.PWM()
		if width > period {
			width = period
		}
		// Width is clamped to the period above, so this cannot fail.
		_ = l.cfg.Actuator.ConfigurePWM(period, width)
	}

	l.supervisor.Update(measurement, l.dispatcher.HighVoltageOn())
	return nil
}

// Run steps the loop until a fatal condition, then blinks the hazard
// indicator forever. It never returns.
func (l *Loop) Run() {
	for {
		if err := l.Step(); err != nil {
			l.fault(err)
			l.blink(-1)
			return
		}
	}
}

// Faulted reports whether the loop reached its terminal state.
func (l *Loop) Faulted() bool {
	return l.faulted
}

// Err returns the fatal condition that faulted the loop, if any.
func (l *Loop) Err() error {
	return l.err
}

// fault records the fatal condition and enters the terminal state. There
// is no transition out; Run blinks the hazard indicator forever after.
func (l *Loop) fault(err error) {
	l.faulted = true
	l.err = err
	l.cfg.Indicators.SetIndicator(IndicatorSafe, false)
}

// blink flashes the hazard indicator for the given number of cycles, or
// forever when cycles is negative.
func (l *Loop) blink(cycles int) {
	for i := 0; cycles < 0 || i < cycles; i++ {
		l.cfg.Indicators.SetIndicator(IndicatorHazard, true)
		l.cfg.Clock.DelayTicks(blinkHalfPeriodTicks)
		l.cfg.Indicators.SetIndicator(IndicatorHazard, false)
		l.cfg.Clock.DelayTicks(blinkHalfPeriodTicks)
	}
}
