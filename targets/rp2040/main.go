//go:build rp2040

// Firmware entry point for the RP2040 port of the board. The discharge
// pulse is generated by a PIO state machine instead of a busy loop, so
// its width does not depend on compiler output or interrupt timing.
package main

import (
	"github.com/lashbits/silicon-toaster/core"
)

func main() {
	board := newBoard()
	if err := board.init(); err != nil {
		board.panicBlink()
	}

	loop := core.NewLoop(core.Config{
		TickFreq:    tickFreq,
		Sensor:      board,
		Clock:       board,
		Actuator:    board,
		Transmitter: board,
		Indicators:  board,
		Store:       board.store,
	})

	go func() {
		q := loop.Queue()
		for {
			b, err := board.uart.ReadByte()
			if err != nil {
				continue
			}
			if q.TryPush(b) != nil {
				return
			}
		}
	}()

	board.SetIndicator(core.IndicatorHazard, true)
	board.DelayTicks(tickFreq / 2)

	loop.Run()
}
