package core

import (
	"errors"
	"testing"

	"github.com/lashbits/silicon-toaster/protocol"
)

type fakeSensor struct {
	value uint16
}

func (f *fakeSensor) ReadMeasurement() uint16 { return f.value }

type fakeClock struct {
	now    uint64
	delays []uint64
}

func (f *fakeClock) Ticks() uint64      { return f.now }
func (f *fakeClock) DelayTicks(n uint64) { f.delays = append(f.delays, n) }

type fakeActuator struct {
	hv     []bool
	pwm    [][2]uint16
	pulses []uint16
}

func (a *fakeActuator) SetHighVoltage(on bool) { a.hv = append(a.hv, on) }

func (a *fakeActuator) ConfigurePWM(period, width uint16) error {
	if period == 0 || width > period {
		return errors.New("invalid pwm parameters")
	}
	a.pwm = append(a.pwm, [2]uint16{period, width})
	return nil
}

func (a *fakeActuator) FirePulse(duration uint16) { a.pulses = append(a.pulses, duration) }

type sinkTransmitter struct {
	bytes []byte
}

func (s *sinkTransmitter) TransmitByte(b byte) { s.bytes = append(s.bytes, b) }

type loopEnv struct {
	sensor *fakeSensor
	clock  *fakeClock
	act    *fakeActuator
	tx     *sinkTransmitter
	ind    *recordingIndicators
	loop   *Loop
}

const testTickFreq = 64_000_000

func newLoopEnv() *loopEnv {
	env := &loopEnv{
		sensor: &fakeSensor{},
		clock:  &fakeClock{now: 1},
		act:    &fakeActuator{},
		tx:     &sinkTransmitter{},
		ind:    &recordingIndicators{},
	}
	env.loop = NewLoop(Config{
		TickFreq:    testTickFreq,
		Sensor:      env.sensor,
		Clock:       env.clock,
		Actuator:    env.act,
		Transmitter: env.tx,
		Indicators:  env.ind,
	})
	// The controller starts enabled with lastControl at zero; park the
	// clock inside the control interval so tests opt in to control
	// updates explicitly.
	env.loop.Controller().Enabled = false
	return env
}

func TestStepIdleUpdatesSupervisor(t *testing.T) {
	env := newLoopEnv()
	env.sensor.value = 66
	if err := env.loop.Step(); err != nil {
		t.Fatal(err)
	}
	if env.ind.hazard || !env.ind.safe {
		t.Error("66 counts with hv off should be safe")
	}
	env.sensor.value = 67
	if err := env.loop.Step(); err != nil {
		t.Fatal(err)
	}
	if !env.ind.hazard || env.ind.safe {
		t.Error("67 counts should be flagged dangerous")
	}
}

func TestStepDispatchesQueuedCommand(t *testing.T) {
	env := newLoopEnv()
	env.sensor.value = 0x0123
	for _, b := range []byte{protocol.OpReadVoltage} {
		if err := env.loop.Queue().TryPush(b); err != nil {
			t.Fatal(err)
		}
	}
	if err := env.loop.Step(); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x23}
	if string(env.tx.bytes) != string(want) {
		t.Errorf("response = %#v, want %#v", env.tx.bytes, want)
	}
}

func TestStepSupervisorSeesDispatchedEnable(t *testing.T) {
	env := newLoopEnv()
	for _, b := range []byte{protocol.OpSetHighVoltage, 1} {
		if err := env.loop.Queue().TryPush(b); err != nil {
			t.Fatal(err)
		}
	}
	if err := env.loop.Step(); err != nil {
		t.Fatal(err)
	}
	if !env.ind.hazard {
		t.Error("hazard indicator must light the same iteration high voltage is enabled")
	}
}

func TestStepQueueOverflowIsFatal(t *testing.T) {
	env := newLoopEnv()
	for i := 0; i <= protocol.QueueCap; i++ {
		_ = env.loop.Queue().TryPush(0x02)
	}
	err := env.loop.Step()
	if !errors.Is(err, protocol.ErrQueueOverflow) {
		t.Fatalf("err = %v, want ErrQueueOverflow", err)
	}
}

func TestStepProtocolViolationIsFatal(t *testing.T) {
	env := newLoopEnv()
	if err := env.loop.Queue().TryPush(0x99); err != nil {
		t.Fatal(err)
	}
	err := env.loop.Step()
	if !errors.Is(err, protocol.ErrUnknownOpcode) {
		t.Fatalf("err = %v, want ErrUnknownOpcode", err)
	}
}

func TestStepRunsControlWhenDue(t *testing.T) {
	env := newLoopEnv()
	ctrl := env.loop.Controller()
	ctrl.Enabled = true
	ctrl.SetSetpoint(100)
	env.sensor.value = 40
	env.clock.now = ctrl.ControlTicks + 2 // past the interval since lastControl=0

	if err := env.loop.Step(); err != nil {
		t.Fatal(err)
	}
	if len(env.act.pwm) != 1 {
		t.Fatalf("pwm writes = %d, want 1", len(env.act.pwm))
	}
	if got := env.act.pwm[0][0]; got != protocol.DefaultPWMPeriod {
		t.Errorf("control wrote period %d, want %d", got, protocol.DefaultPWMPeriod)
	}
	if width := env.act.pwm[0][1]; width > protocol.DefaultPWMPeriod {
		t.Errorf("control width %d exceeds period", width)
	}
	if ctrl.LastControl() != env.clock.now {
		t.Error("control update must record its timestamp")
	}

	// Immediately after, no further update is due.
	if err := env.loop.Step(); err != nil {
		t.Fatal(err)
	}
	if len(env.act.pwm) != 1 {
		t.Error("control ran again inside the interval")
	}
}

func TestFaultEntersTerminalState(t *testing.T) {
	env := newLoopEnv()
	cause := errors.New("boom")
	env.loop.fault(cause)
	if !env.loop.Faulted() {
		t.Error("loop should report faulted")
	}
	if !errors.Is(env.loop.Err(), cause) {
		t.Errorf("Err() = %v, want %v", env.loop.Err(), cause)
	}
	if env.ind.safe {
		t.Error("safe indicator must be off in the faulted state")
	}
}

func TestBlinkPattern(t *testing.T) {
	env := newLoopEnv()
	env.loop.blink(3)
	if got := len(env.clock.delays); got != 6 {
		t.Fatalf("delays = %d, want 6 (two per cycle)", got)
	}
	if env.ind.hazard {
		t.Error("hazard indicator should end a full cycle off")
	}
}
