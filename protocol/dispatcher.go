package protocol

import (
	"fmt"
	"math"

	"github.com/lashbits/silicon-toaster/control"
	"github.com/lashbits/silicon-toaster/flash"
)

// Boot-time PWM parameters, also reported by OpGetPWM until the host
// reconfigures them.
const (
	DefaultPWMPeriod uint16 = 800
	DefaultPWMWidth  uint16 = 0
)

// Actuator is the power-stage surface the dispatcher drives. Hardware
// bring-up and register access live behind it in the target packages.
type Actuator interface {
	// SetHighVoltage enables or disables high-voltage generation.
	SetHighVoltage(on bool)
	// ConfigurePWM reconfigures the PWM period and positive pulse width.
	// It fails, with no state change, when width > period or period == 0.
	ConfigurePWM(period, width uint16) error
	// FirePulse fires a timed pulse and busy-waits for its duration.
	FirePulse(duration uint16)
}

// Transmitter sends response bytes back over the serial link.
type Transmitter interface {
	TransmitByte(b byte)
}

// Ticker reads the free-running system tick counter.
type Ticker interface {
	Ticks() uint64
}

// Dispatcher interprets the received byte stream one transaction at a
// time: opcode, fixed payload, action, fixed response. Once an opcode is
// consumed the full payload is read even if its bytes have not arrived
// yet, so a response is never produced from a partial frame.
type Dispatcher struct {
	rx    *ByteQueue
	tx    Transmitter
	act   Actuator
	ctrl  *control.Controller
	store flash.SectorDriver
	clock Ticker

	// ReadDeadlineTicks bounds how long a transaction may wait for its
	// payload. The reference behavior is 0: block forever, stalling the
	// whole loop on a silent peer.
	ReadDeadlineTicks uint64

	deadline  uint64
	hvEnabled bool
	pwmPeriod uint16
	pwmWidth  uint16
	errCount  uint16
}

// NewDispatcher wires a dispatcher to its collaborators.
func NewDispatcher(rx *ByteQueue, tx Transmitter, act Actuator, ctrl *control.Controller, store flash.SectorDriver, clock Ticker) *Dispatcher {
	return &Dispatcher{
		rx:        rx,
		tx:        tx,
		act:       act,
		ctrl:      ctrl,
		store:     store,
		clock:     clock,
		pwmPeriod: DefaultPWMPeriod,
		pwmWidth:  DefaultPWMWidth,
	}
}

// HighVoltageOn reports the last commanded high-voltage enable state. The
// safety supervisor reads it every loop iteration.
func (d *Dispatcher) HighVoltageOn() bool {
	return d.hvEnabled
}

// PWM returns the last explicitly configured PWM parameters. The width the
// control loop writes on its own is deliberately not reflected here.
func (d *Dispatcher) PWM() (period, width uint16) {
	return d.pwmPeriod, d.pwmWidth
}

// Dispatch runs one protocol transaction. Callers gate it on
// ByteQueue.HasData so the opcode read does not spin on an idle link. A
// non-nil error is a protocol violation and must fault the loop.
func (d *Dispatcher) Dispatch(measurement uint16) error {
	op := d.rx.PopBlocking()
	if d.ReadDeadlineTicks > 0 {
		d.deadline = d.clock.Ticks() + d.ReadDeadlineTicks
	} else {
		d.deadline = 0
	}

	switch op {
	case OpSetHighVoltage:
		on, err := d.readBool()
		if err != nil {
			return err
		}
		d.hvEnabled = on
		d.act.SetHighVoltage(on)
		d.tx.TransmitByte(op)

	case OpReadVoltage:
		d.writeU16(measurement)

	case OpSetPWM:
		period, err := d.readU16()
		if err != nil {
			return err
		}
		width, err := d.readU16()
		if err != nil {
			return err
		}
		if err := d.act.ConfigurePWM(period, width); err != nil {
			d.errCount++
			d.tx.TransmitByte(Nack(op))
		} else {
			d.pwmPeriod, d.pwmWidth = period, width
			d.tx.TransmitByte(op)
		}

	case OpShoot:
		duration, err := d.readU16()
		if err != nil {
			return err
		}
		d.act.FirePulse(duration)
		d.tx.TransmitByte(op)

	case OpGetTicks:
		d.tx.TransmitByte(op)
		d.writeU64(d.clock.Ticks())

	case OpGetSetpoint:
		d.tx.TransmitByte(op)
		d.writeU16(d.ctrl.Setpoint())

	case OpSetSetpoint:
		setpoint, err := d.readU16()
		if err != nil {
			return err
		}
		d.ctrl.SetSetpoint(setpoint)
		d.tx.TransmitByte(op)

	case OpGetPWM:
		d.tx.TransmitByte(op)
		d.writeU16(d.pwmPeriod)
		d.writeU16(d.pwmWidth)

	case OpGetPID:
		fromFlash, err := d.readBool()
		if err != nil {
			return err
		}
		kp, ki, kd, ticks := d.ctrl.Gains()
		if fromFlash {
			if rec, ok := flash.ReadRecord(d.store); ok {
				kp, ki, kd, ticks = rec.Kp, rec.Ki, rec.Kd, rec.ControlTicks
			}
		}
		d.tx.TransmitByte(op)
		d.writeF32(kp)
		d.writeF32(ki)
		d.writeF32(kd)
		d.writeU64(ticks)

	case OpSetPID:
		toFlash, err := d.readBool()
		if err != nil {
			return err
		}
		kp, err := d.readF32()
		if err != nil {
			return err
		}
		ki, err := d.readF32()
		if err != nil {
			return err
		}
		kd, err := d.readF32()
		if err != nil {
			return err
		}
		ticks, err := d.readU64()
		if err != nil {
			return err
		}
		d.ctrl.SetGains(kp, ki, kd, ticks)
		if toFlash {
			// Persistence failures are not signaled on the wire; a
			// torn write is detected as "no record" at next boot.
			_ = d.ctrl.Persist(d.store)
		}
		d.tx.TransmitByte(op)

	case OpSetPIDLimits:
		var limits [4]float32
		for i := range limits {
			v, err := d.readF32()
			if err != nil {
				return err
			}
			limits[i] = v
		}
		d.ctrl.SetLimits(limits[0], limits[1], limits[2], limits[3])
		d.tx.TransmitByte(op)

	case OpGetPIDLimits:
		pLimit, iLimit, dLimit, outputLimit, setpoint := d.ctrl.Limits()
		d.tx.TransmitByte(op)
		d.writeF32(pLimit)
		d.writeF32(iLimit)
		d.writeF32(dLimit)
		d.writeF32(outputLimit)
		d.writeF32(setpoint)
		d.writeU64(d.ctrl.LastControl())

	case OpSetControl:
		on, err := d.readBool()
		if err != nil {
			return err
		}
		d.ctrl.Enabled = on
		d.tx.TransmitByte(op)

	case OpGetControl:
		d.tx.TransmitByte(op)
		if d.ctrl.Enabled {
			d.tx.TransmitByte(1)
		} else {
			d.tx.TransmitByte(0)
		}

	case OpGetSamples:
		samples := d.ctrl.Samples()
		d.tx.TransmitByte(op)
		d.writeU32(uint32(len(samples)))
		for _, s := range samples {
			d.writeU16(s)
		}

	case OpGetErrorCounter:
		d.tx.TransmitByte(op)
		d.writeU16(d.errCount)
		d.errCount = 0

	default:
		return fmt.Errorf("%w: %#02x", ErrUnknownOpcode, op)
	}
	return nil
}

// ErrorCount returns the recoverable error counter without resetting it.
func (d *Dispatcher) ErrorCount() uint16 {
	return d.errCount
}

func (d *Dispatcher) readByte() (byte, error) {
	if d.deadline == 0 {
		return d.rx.PopBlocking(), nil
	}
	return d.rx.PopDeadline(d.clock.Ticks, d.deadline)
}

// readBool reads a strict boolean payload byte. Anything outside {0,1} is
// a protocol violation: accepting an undefined enable state for a
// high-voltage output is unsafe.
func (d *Dispatcher) readBool() (bool, error) {
	b, err := d.readByte()
	if err != nil {
		return false, err
	}
	if b > 1 {
		return false, fmt.Errorf("%w: %#02x", ErrBadBool, b)
	}
	return b == 1, nil
}

func (d *Dispatcher) readU16() (uint16, error) {
	h, err := d.readByte()
	if err != nil {
		return 0, err
	}
	l, err := d.readByte()
	if err != nil {
		return 0, err
	}
	return uint16(h)<<8 | uint16(l), nil
}

func (d *Dispatcher) readU32() (uint32, error) {
	h, err := d.readU16()
	if err != nil {
		return 0, err
	}
	l, err := d.readU16()
	if err != nil {
		return 0, err
	}
	return uint32(h)<<16 | uint32(l), nil
}

func (d *Dispatcher) readU64() (uint64, error) {
	h, err := d.readU32()
	if err != nil {
		return 0, err
	}
	l, err := d.readU32()
	if err != nil {
		return 0, err
	}
	return uint64(h)<<32 | uint64(l), nil
}

func (d *Dispatcher) readF32() (float32, error) {
	bits, err := d.readU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func (d *Dispatcher) writeU16(v uint16) {
	d.tx.TransmitByte(byte(v >> 8))
	d.tx.TransmitByte(byte(v))
}

func (d *Dispatcher) writeU32(v uint32) {
	d.writeU16(uint16(v >> 16))
	d.writeU16(uint16(v))
}

func (d *Dispatcher) writeU64(v uint64) {
	d.writeU32(uint32(v >> 32))
	d.writeU32(uint32(v))
}

func (d *Dispatcher) writeF32(v float32) {
	d.writeU32(math.Float32bits(v))
}
