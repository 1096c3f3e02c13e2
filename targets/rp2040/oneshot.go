//go:build rp2040

package main

import (
	"machine"

	pio "github.com/tinygo-org/pio/rp2-pio"
)

// One-shot pulse program. Each queued word produces a single high pulse
// whose width is the word's value in state machine cycles, plus the three
// cycles of fixed overhead around the countdown.
//
//	.wrap_target
//	    pull block      ; wait for a pulse width
//	    mov  x, osr
//	    set  pins, 1
//	loop:
//	    jmp  x--, loop
//	    set  pins, 0
//	.wrap
const (
	oneShotWrapTarget = 0
	oneShotWrap       = 4
	oneShotOrigin     = -1
)

var oneShotInstructions = []uint16{
	0x80a0, //  0: pull   block
	0xa027, //  1: mov    x, osr
	0xe001, //  2: set    pins, 1
	0x0043, //  3: jmp    x--, 3
	0xe000, //  4: set    pins, 0
}

func oneShotProgramDefaultConfig(offset uint8) pio.StateMachineConfig {
	cfg := pio.DefaultStateMachineConfig()
	cfg.SetWrap(offset+oneShotWrapTarget, offset+oneShotWrap)
	return cfg
}

// oneShot drives the discharge gate from a PIO state machine so the pulse
// width is exact regardless of what the CPU is doing.
type oneShot struct {
	sm pio.StateMachine
}

func newOneShot(sm pio.StateMachine, pin machine.Pin) (*oneShot, error) {
	Pio := sm.PIO()

	offset, err := Pio.AddProgram(oneShotInstructions, oneShotOrigin)
	if err != nil {
		return nil, err
	}
	pin.Configure(machine.PinConfig{Mode: Pio.PinMode()})
	sm.SetPindirsConsecutive(pin, 1, true)
	cfg := oneShotProgramDefaultConfig(offset)
	cfg.SetSetPins(pin, 1)
	sm.Init(offset, cfg)
	sm.SetEnabled(true)
	return &oneShot{sm: sm}, nil
}

// Fire queues one pulse of the given width in cycles and does not block.
func (o *oneShot) Fire(cycles uint32) {
	if cycles == 0 {
		return
	}
	o.sm.TxPut(cycles - 1)
}
