//go:build stm32f2

// Firmware entry point for the STM32F215 board. Everything here is
// hardware bring-up; the control logic lives in core and is shared with
// the simulator and the tests.
package main

import (
	"github.com/lashbits/silicon-toaster/core"
)

func main() {
	board := newBoard()
	board.init()

	loop := core.NewLoop(core.Config{
		TickFreq:    tickFreq,
		Sensor:      board,
		Clock:       board,
		Actuator:    board,
		Transmitter: board,
		Indicators:  board,
		Store:       board.store,
	})

	// Receive path: bytes drain from the UART ring into the loop's
	// queue. The UART receive interrupt fills the machine-level ring;
	// this goroutine is the producer side of the SPSC queue.
	go func() {
		q := loop.Queue()
		for {
			b, err := board.uart.ReadByte()
			if err != nil {
				continue
			}
			if q.TryPush(b) != nil {
				// Overflow is latched in the queue; the loop
				// faults on its next iteration. Nothing more
				// to do from the receive path.
				return
			}
		}
	}()

	// Give the USB-serial bridge time to enumerate before talking.
	board.SetIndicator(core.IndicatorHazard, true)
	board.DelayTicks(tickFreq / 2)

	loop.Run()
}
