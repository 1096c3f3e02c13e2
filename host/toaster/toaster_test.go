package toaster

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lashbits/silicon-toaster/control"
	"github.com/lashbits/silicon-toaster/flash"
	"github.com/lashbits/silicon-toaster/protocol"
)

// devicePort is a loopback serial.Port that runs the real device
// dispatcher: bytes written by the client are fed through the firmware
// protocol stack and the device's response bytes come back on Read.
type devicePort struct {
	t           *testing.T
	q           *protocol.ByteQueue
	d           *protocol.Dispatcher
	act         *fakeActuator
	ctrl        *control.Controller
	out         bytes.Buffer
	measurement uint16
	ticks       uint64
}

type fakeActuator struct {
	hvOn    bool
	period  uint16
	width   uint16
	fired   []uint16
	confErr error
}

func (a *fakeActuator) SetHighVoltage(on bool) { a.hvOn = on }

func (a *fakeActuator) ConfigurePWM(period, width uint16) error {
	if period == 0 || width > period {
		return a.confErr
	}
	a.period, a.width = period, width
	return nil
}

func (a *fakeActuator) FirePulse(duration uint16) { a.fired = append(a.fired, duration) }

type memSector struct {
	words  [flash.RecordWords]uint32
	erased bool
}

func (s *memSector) ReadWord(index int) uint32 { return s.words[index] }

func (s *memSector) Erase() error {
	s.words = [flash.RecordWords]uint32{}
	s.erased = true
	return nil
}

func (s *memSector) Program(words []uint32) error {
	copy(s.words[:], words)
	return nil
}

func (p *devicePort) Ticks() uint64 { return p.ticks }

func (p *devicePort) TransmitByte(b byte) { p.out.WriteByte(b) }

func (p *devicePort) Write(b []byte) (int, error) {
	for _, c := range b {
		if err := p.q.TryPush(c); err != nil {
			p.t.Fatalf("queue overflow: %v", err)
		}
	}
	for p.q.HasData() {
		if err := p.d.Dispatch(p.measurement); err != nil {
			p.t.Fatalf("device faulted: %v", err)
		}
	}
	return len(b), nil
}

func (p *devicePort) Read(b []byte) (int, error) {
	return p.out.Read(b)
}

func (p *devicePort) Close() error { return nil }

func newDevice(t *testing.T) (*Toaster, *devicePort) {
	p := &devicePort{
		t:   t,
		q:   protocol.NewByteQueue(),
		act: &fakeActuator{confErr: assert.AnError},
	}
	p.ctrl = control.NewController(64_000_000, &memSector{})
	p.d = protocol.NewDispatcher(p.q, p, p.act, p.ctrl, &memSector{}, p)
	return New(p), p
}

func TestHighVoltageOnOff(t *testing.T) {
	client, dev := newDevice(t)

	require.NoError(t, client.SetHighVoltage(true))
	assert.True(t, dev.act.hvOn)

	require.NoError(t, client.SetHighVoltage(false))
	assert.False(t, dev.act.hvOn)
}

func TestReadVoltageRaw(t *testing.T) {
	client, dev := newDevice(t)
	dev.measurement = 0x0BEE

	raw, err := client.ReadVoltageRaw()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0BEE), raw)
}

func TestReadVoltageAppliesCalibration(t *testing.T) {
	client, dev := newDevice(t)
	dev.measurement = 1000

	v, err := client.ReadVoltage()
	require.NoError(t, err)
	// The shipped curve maps 1000 raw to just under 608 V.
	assert.InDelta(t, 607.9, v, 0.1)
}

func TestSetPWMAndReadback(t *testing.T) {
	client, dev := newDevice(t)

	require.NoError(t, client.SetPWM(1600, 20))
	assert.Equal(t, uint16(1600), dev.act.period)
	assert.Equal(t, uint16(20), dev.act.width)

	period, width, err := client.GetPWM()
	require.NoError(t, err)
	assert.Equal(t, uint16(1600), period)
	assert.Equal(t, uint16(20), width)
}

func TestSetPWMRefused(t *testing.T) {
	client, _ := newDevice(t)

	err := client.SetPWM(5, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")

	// The link stays usable after a refusal.
	require.NoError(t, client.SetPWM(100, 5))

	count, err := client.ErrorCount()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), count)
}

func TestShoot(t *testing.T) {
	client, dev := newDevice(t)

	require.NoError(t, client.Shoot(1234))
	assert.Equal(t, []uint16{1234}, dev.act.fired)
}

func TestTicks(t *testing.T) {
	client, dev := newDevice(t)
	dev.ticks = 0x1122334455667788

	ticks, err := client.Ticks()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), ticks)
}

func TestSetpointRoundTrip(t *testing.T) {
	client, _ := newDevice(t)

	require.NoError(t, client.SetSetpointRaw(321))
	raw, err := client.GetSetpointRaw()
	require.NoError(t, err)
	assert.Equal(t, uint16(321), raw)
}

func TestSetpointVolts(t *testing.T) {
	client, _ := newDevice(t)

	require.NoError(t, client.SetSetpoint(500))
	v, err := client.GetSetpoint()
	require.NoError(t, err)
	// Round trip through both curves: they are inverses only
	// approximately, fitted from the same capture.
	assert.InDelta(t, 500, v, 2)
}

func TestPIDRoundTrip(t *testing.T) {
	client, _ := newDevice(t)

	want := PID{Kp: 42.5, Ki: 0.25, Kd: 1.5, ControlTicks: 128_000}
	require.NoError(t, client.SetPID(want, false))

	got, err := client.GetPID(false)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPIDPersisted(t *testing.T) {
	client, _ := newDevice(t)

	want := PID{Kp: 7, Ki: 8, Kd: 9, ControlTicks: 1000}
	require.NoError(t, client.SetPID(want, true))

	got, err := client.GetPID(true)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLimits(t *testing.T) {
	client, _ := newDevice(t)

	require.NoError(t, client.SetLimits(10, 20, 30, 40))

	got, err := client.GetLimits()
	require.NoError(t, err)
	assert.Equal(t, float32(10), got.PLimit)
	assert.Equal(t, float32(20), got.ILimit)
	assert.Equal(t, float32(30), got.DLimit)
	assert.Equal(t, float32(40), got.OutputLimit)
}

func TestControlOnOff(t *testing.T) {
	client, _ := newDevice(t)

	// The controller starts enabled.
	on, err := client.ControlEnabled()
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, client.SetControl(false))
	on, err = client.ControlEnabled()
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, client.SetControl(true))
	on, err = client.ControlEnabled()
	require.NoError(t, err)
	assert.True(t, on)
}

func TestSamples(t *testing.T) {
	client, dev := newDevice(t)

	samples, err := client.Samples()
	require.NoError(t, err)
	assert.Empty(t, samples)

	dev.ctrl.Enabled = true
	dev.ctrl.Step(100, 1_000_000)
	dev.ctrl.Step(200, 2_000_000)

	samples, err = client.Samples()
	require.NoError(t, err)
	assert.Equal(t, []uint16{100, 200}, samples)
}

func TestErrorCountResets(t *testing.T) {
	client, _ := newDevice(t)

	_ = client.SetPWM(5, 100) // refused, counted
	_ = client.SetPWM(5, 100)

	count, err := client.ErrorCount()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), count)

	count, err = client.ErrorCount()
	require.NoError(t, err)
	assert.Equal(t, uint16(0), count)
}
