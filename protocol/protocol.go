// Package protocol implements the SiliconToaster serial command protocol.
package protocol

import "errors"

// Version of the command protocol implemented by this tree.
const Version = "1.1.0"

// Command opcodes. Each opcode has a fixed payload and a fixed response;
// framing is implicit in this table, there is no length field and no CRC.
// All multi-byte fields are big-endian.
const (
	OpSetHighVoltage  = 0x01 // payload: 1 byte in {0,1}
	OpReadVoltage     = 0x02 // response: u16 raw measurement, no echo
	OpSetPWM          = 0x03 // payload: u16 period, u16 width
	OpShoot           = 0x04 // payload: u16 duration
	OpGetTicks        = 0x05 // response: u64 tick counter
	OpGetSetpoint     = 0x06 // response: u16 setpoint
	OpSetSetpoint     = 0x07 // payload: u16 setpoint
	OpGetPWM          = 0x08 // response: u16 period, u16 width
	OpGetPID          = 0x0A // payload: 1 byte fromFlash; response: 3*f32, u64
	OpSetPID          = 0x0B // payload: 1 byte toFlash, 3*f32, u64
	OpSetPIDLimits    = 0x0C // payload: 4*f32 p/i/d/output limits
	OpGetPIDLimits    = 0x0D // response: 5*f32 limits+setpoint, u64 last control
	OpSetControl      = 0xAA // payload: 1 byte in {0,1}
	OpGetControl      = 0xAB // response: 1 byte enabled
	OpGetSamples      = 0xAC // response: u32 count, count*u16 samples
	OpGetErrorCounter = 0xEE // response: u16 counter, reset on read
)

// Protocol violations are unrecoverable: once framing can no longer be
// trusted, continuing to interpret the stream could drive the high-voltage
// output unpredictably. The loop reacts by entering its faulted state.
var (
	// ErrUnknownOpcode reports an opcode outside the command table.
	ErrUnknownOpcode = errors.New("protocol: unknown opcode")
	// ErrBadBool reports a boolean payload byte outside {0,1}.
	ErrBadBool = errors.New("protocol: boolean payload byte not 0 or 1")
	// ErrQueueOverflow reports a push onto a full receive queue.
	ErrQueueOverflow = errors.New("protocol: receive queue overflow")
	// ErrReadDeadline reports an expired payload read deadline. Only
	// possible when Dispatcher.ReadDeadlineTicks is configured.
	ErrReadDeadline = errors.New("protocol: payload read deadline exceeded")
)

// Nack returns the negative acknowledge byte for an opcode: its bitwise
// complement, keeping the reply the same width as an ACK.
func Nack(op byte) byte {
	return ^op
}
