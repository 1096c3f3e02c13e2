//go:build stm32f2

package main

import (
	"device/arm"
	"errors"
	"machine"
	"time"

	"github.com/lashbits/silicon-toaster/core"
)

// tickFreq is the system timer frequency after PLL bring-up.
const tickFreq = 64_000_000

// Pin assignment for the rev2 board.
const (
	pinFeedback  = machine.PA0  // ADC input from the divider
	pinPWM       = machine.PA8  // TIM1 CH1, charge pump drive
	pinShoot     = machine.PA2  // pulse transistor gate
	pinRegulator = machine.PB11 // on-board 15 V regulator enable
	pinLEDRed    = machine.PC13
	pinLEDGreen  = machine.PC14
)

var errInvalidPWM = errors.New("stm32f2: invalid pwm parameters")

// board implements every core interface against the on-chip peripherals.
type board struct {
	uart  *machine.UART
	adc   machine.ADC
	pwm   *machine.TIM
	pwmCh uint8
	boot  time.Time
	store *flashSector

	period uint16
	width  uint16
}

func newBoard() *board {
	return &board{
		uart:  machine.UART1,
		adc:   machine.ADC{Pin: pinFeedback},
		pwm:   &machine.TIM1,
		store: newFlashSector(),
	}
}

func (b *board) init() {
	b.boot = time.Now()

	for _, pin := range []machine.Pin{pinShoot, pinRegulator, pinLEDRed, pinLEDGreen} {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.Low()
	}
	pinRegulator.High()

	b.uart.Configure(machine.UARTConfig{BaudRate: 9600, TX: machine.PA9, RX: machine.PA10})

	machine.InitADC()
	b.adc.Configure(machine.ADCConfig{})

	b.pwm.Configure(machine.PWMConfig{})
	ch, err := b.pwm.Channel(pinPWM)
	if err == nil {
		b.pwmCh = ch
	}
	_ = b.ConfigurePWM(800, 0)
	// High voltage starts disabled: the PWM pin is parked low so charge
	// cannot accumulate on the pump transistor gate.
	b.SetHighVoltage(false)
}

// ReadMeasurement implements core.Sensor. The ADC free-runs; this is the
// latest completed conversion, scaled back to the 12-bit hardware range.
func (b *board) ReadMeasurement() uint16 {
	return b.adc.Get() >> 4
}

// Ticks implements core.Clock.
func (b *board) Ticks() uint64 {
	elapsed := time.Since(b.boot)
	return uint64(elapsed.Nanoseconds()) * (tickFreq / 1_000_000) / 1000
}

// DelayTicks implements core.Clock.
func (b *board) DelayTicks(n uint64) {
	time.Sleep(time.Duration(n*1000/(tickFreq/1_000_000)) * time.Nanosecond)
}

// SetHighVoltage implements protocol.Actuator. When generation is off the
// drive pin is forced low instead of left floating.
func (b *board) SetHighVoltage(on bool) {
	if on {
		// Channel re-binds the pin to the timer after it was parked low.
		if ch, err := b.pwm.Channel(pinPWM); err == nil {
			b.pwmCh = ch
		}
		_ = b.ConfigurePWM(b.period, b.width)
		return
	}
	pinPWM.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinPWM.Low()
}

// ConfigurePWM implements protocol.Actuator.
func (b *board) ConfigurePWM(period, width uint16) error {
	if period == 0 || width > period {
		return errInvalidPWM
	}
	b.period, b.width = period, width
	top := b.pwm.Top()
	b.pwm.Set(b.pwmCh, uint32(uint64(top)*uint64(width)/uint64(period)))
	return nil
}

// FirePulse implements protocol.Actuator: a busy-timed pulse on the shoot
// pin, duration counted in loop iterations as the host calibrated it.
func (b *board) FirePulse(duration uint16) {
	pinShoot.High()
	for i := uint16(0); i < duration; i++ {
		arm.Asm("nop")
	}
	pinShoot.Low()
}

// SetIndicator implements core.IndicatorDriver.
func (b *board) SetIndicator(which core.Indicator, on bool) {
	switch which {
	case core.IndicatorHazard:
		pinLEDRed.Set(on)
	case core.IndicatorSafe:
		pinLEDGreen.Set(on)
	}
}

// TransmitByte implements protocol.Transmitter, spinning until the byte is
// handed to the shift register.
func (b *board) TransmitByte(v byte) {
	for b.uart.WriteByte(v) != nil {
	}
}
