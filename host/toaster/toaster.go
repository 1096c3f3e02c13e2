// Package toaster is the host-side client for a silicon toaster board.
// It speaks the device's byte protocol over any serial.Port and exposes
// one typed method per device command.
package toaster

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/lashbits/silicon-toaster/host/calibration"
	"github.com/lashbits/silicon-toaster/host/serial"
	"github.com/lashbits/silicon-toaster/protocol"
)

// PID mirrors the device's persistable controller configuration.
type PID struct {
	Kp           float32
	Ki           float32
	Kd           float32
	ControlTicks uint64
}

// Limits mirrors the device's transient clamp configuration. Setpoint and
// LastControl are reported alongside the limits but are not settable here;
// the setpoint has its own command.
type Limits struct {
	PLimit      float32
	ILimit      float32
	DLimit      float32
	OutputLimit float32
	Setpoint    float32
	LastControl uint64
}

// Toaster is a connected board.
type Toaster struct {
	port serial.Port
}

// Connect opens the given device path with the board's serial settings.
func Connect(device string) (*Toaster, error) {
	port, err := serial.Open(serial.DefaultConfig(device))
	if err != nil {
		return nil, err
	}
	// Give the board time to finish boot if it was just plugged in.
	time.Sleep(100 * time.Millisecond)
	return New(port), nil
}

// Discover finds a board by its USB product string and connects to it.
func Discover(serialNumber string) (*Toaster, error) {
	device, err := serial.Discover(serialNumber)
	if err != nil {
		return nil, err
	}
	return Connect(device)
}

// New wraps an already-open port.
func New(port serial.Port) *Toaster {
	return &Toaster{port: port}
}

// Close closes the underlying port.
func (t *Toaster) Close() error {
	return t.port.Close()
}

// SetHighVoltage turns high-voltage generation on or off.
func (t *Toaster) SetHighVoltage(on bool) error {
	return t.command(protocol.OpSetHighVoltage, boolByte(on))
}

// ReadVoltageRaw reads the latest raw ADC measurement.
func (t *Toaster) ReadVoltageRaw() (uint16, error) {
	// The measurement reply carries no echo, just the two value bytes.
	if err := t.send(protocol.OpReadVoltage); err != nil {
		return 0, err
	}
	return t.readU16()
}

// ReadVoltage reads the capacitor voltage through the calibration curve.
func (t *Toaster) ReadVoltage() (float64, error) {
	raw, err := t.ReadVoltageRaw()
	if err != nil {
		return 0, err
	}
	return calibration.ToVolts(raw), nil
}

// SetPWM reconfigures the charge pump PWM. The device refuses width >
// period or period == 0 and the refusal surfaces as an error here.
func (t *Toaster) SetPWM(period, width uint16) error {
	var payload [4]byte
	binary.BigEndian.PutUint16(payload[0:], period)
	binary.BigEndian.PutUint16(payload[2:], width)
	return t.command(protocol.OpSetPWM, payload[:]...)
}

// GetPWM reads back the last explicitly configured PWM parameters.
func (t *Toaster) GetPWM() (period, width uint16, err error) {
	if err = t.command(protocol.OpGetPWM); err != nil {
		return 0, 0, err
	}
	if period, err = t.readU16(); err != nil {
		return 0, 0, err
	}
	width, err = t.readU16()
	return period, width, err
}

// Shoot fires a discharge pulse of the given duration.
func (t *Toaster) Shoot(duration uint16) error {
	var payload [2]byte
	binary.BigEndian.PutUint16(payload[:], duration)
	return t.command(protocol.OpShoot, payload[:]...)
}

// Ticks reads the device's tick counter since power-up.
func (t *Toaster) Ticks() (uint64, error) {
	if err := t.command(protocol.OpGetTicks); err != nil {
		return 0, err
	}
	return t.readU64()
}

// GetSetpointRaw reads the control setpoint as a raw ADC value.
func (t *Toaster) GetSetpointRaw() (uint16, error) {
	if err := t.command(protocol.OpGetSetpoint); err != nil {
		return 0, err
	}
	return t.readU16()
}

// GetSetpoint reads the control setpoint in volts.
func (t *Toaster) GetSetpoint() (float64, error) {
	raw, err := t.GetSetpointRaw()
	if err != nil {
		return 0, err
	}
	return calibration.ToVolts(raw), nil
}

// SetSetpointRaw sets the control setpoint to a raw ADC value.
func (t *Toaster) SetSetpointRaw(raw uint16) error {
	var payload [2]byte
	binary.BigEndian.PutUint16(payload[:], raw)
	return t.command(protocol.OpSetSetpoint, payload[:]...)
}

// SetSetpoint sets the control setpoint to the given voltage.
func (t *Toaster) SetSetpoint(volts float64) error {
	return t.SetSetpointRaw(calibration.ToRaw(volts))
}

// GetPID reads the controller gains, either the live values or the
// persisted record.
func (t *Toaster) GetPID(fromFlash bool) (PID, error) {
	if err := t.command(protocol.OpGetPID, boolByte(fromFlash)); err != nil {
		return PID{}, err
	}
	var buf [20]byte
	if _, err := io.ReadFull(t.port, buf[:]); err != nil {
		return PID{}, err
	}
	return PID{
		Kp:           math.Float32frombits(binary.BigEndian.Uint32(buf[0:])),
		Ki:           math.Float32frombits(binary.BigEndian.Uint32(buf[4:])),
		Kd:           math.Float32frombits(binary.BigEndian.Uint32(buf[8:])),
		ControlTicks: binary.BigEndian.Uint64(buf[12:]),
	}, nil
}

// SetPID sets the controller gains, optionally persisting them so they
// survive a power cycle.
func (t *Toaster) SetPID(pid PID, toFlash bool) error {
	var payload [21]byte
	payload[0] = boolByte(toFlash)
	binary.BigEndian.PutUint32(payload[1:], math.Float32bits(pid.Kp))
	binary.BigEndian.PutUint32(payload[5:], math.Float32bits(pid.Ki))
	binary.BigEndian.PutUint32(payload[9:], math.Float32bits(pid.Kd))
	binary.BigEndian.PutUint64(payload[13:], pid.ControlTicks)
	return t.command(protocol.OpSetPID, payload[:]...)
}

// GetLimits reads the transient clamp configuration plus the current
// setpoint and the timestamp of the last control step.
func (t *Toaster) GetLimits() (Limits, error) {
	if err := t.command(protocol.OpGetPIDLimits); err != nil {
		return Limits{}, err
	}
	var buf [28]byte
	if _, err := io.ReadFull(t.port, buf[:]); err != nil {
		return Limits{}, err
	}
	return Limits{
		PLimit:      math.Float32frombits(binary.BigEndian.Uint32(buf[0:])),
		ILimit:      math.Float32frombits(binary.BigEndian.Uint32(buf[4:])),
		DLimit:      math.Float32frombits(binary.BigEndian.Uint32(buf[8:])),
		OutputLimit: math.Float32frombits(binary.BigEndian.Uint32(buf[12:])),
		Setpoint:    math.Float32frombits(binary.BigEndian.Uint32(buf[16:])),
		LastControl: binary.BigEndian.Uint64(buf[20:]),
	}, nil
}

// SetLimits sets the transient clamp configuration. These reset to their
// defaults on device power-up.
func (t *Toaster) SetLimits(pLimit, iLimit, dLimit, outputLimit float32) error {
	var payload [16]byte
	binary.BigEndian.PutUint32(payload[0:], math.Float32bits(pLimit))
	binary.BigEndian.PutUint32(payload[4:], math.Float32bits(iLimit))
	binary.BigEndian.PutUint32(payload[8:], math.Float32bits(dLimit))
	binary.BigEndian.PutUint32(payload[12:], math.Float32bits(outputLimit))
	return t.command(protocol.OpSetPIDLimits, payload[:]...)
}

// SetControl turns the closed-loop voltage control on or off.
func (t *Toaster) SetControl(on bool) error {
	return t.command(protocol.OpSetControl, boolByte(on))
}

// ControlEnabled reports whether the closed-loop control is running.
func (t *Toaster) ControlEnabled() (bool, error) {
	if err := t.command(protocol.OpGetControl); err != nil {
		return false, err
	}
	var buf [1]byte
	if _, err := io.ReadFull(t.port, buf[:]); err != nil {
		return false, err
	}
	return buf[0] == 1, nil
}

// Samples reads the device's recent control measurement history, oldest
// first.
func (t *Toaster) Samples() ([]uint16, error) {
	if err := t.command(protocol.OpGetSamples); err != nil {
		return nil, err
	}
	var head [4]byte
	if _, err := io.ReadFull(t.port, head[:]); err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint32(head[:])
	if count > 4096 {
		return nil, fmt.Errorf("implausible sample count %d", count)
	}
	buf := make([]byte, count*2)
	if _, err := io.ReadFull(t.port, buf); err != nil {
		return nil, err
	}
	samples := make([]uint16, count)
	for i := range samples {
		samples[i] = binary.BigEndian.Uint16(buf[i*2:])
	}
	return samples, nil
}

// ErrorCount reads and resets the device's recoverable error counter.
func (t *Toaster) ErrorCount() (uint16, error) {
	if err := t.command(protocol.OpGetErrorCounter); err != nil {
		return 0, err
	}
	return t.readU16()
}

// send writes an opcode and payload in one write.
func (t *Toaster) send(op byte, payload ...byte) error {
	frame := append([]byte{op}, payload...)
	if _, err := t.port.Write(frame); err != nil {
		return fmt.Errorf("sending command %#02x: %w", op, err)
	}
	return nil
}

// command sends a frame and checks the echoed opcode. A complemented echo
// is the device refusing the command.
func (t *Toaster) command(op byte, payload ...byte) error {
	if err := t.send(op, payload...); err != nil {
		return err
	}
	var echo [1]byte
	if _, err := io.ReadFull(t.port, echo[:]); err != nil {
		return fmt.Errorf("reading reply to command %#02x: %w", op, err)
	}
	switch echo[0] {
	case op:
		return nil
	case protocol.Nack(op):
		return fmt.Errorf("device refused command %#02x", op)
	default:
		return fmt.Errorf("command %#02x echoed %#02x, link out of sync", op, echo[0])
	}
}

func (t *Toaster) readU16() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(t.port, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func (t *Toaster) readU64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(t.port, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
