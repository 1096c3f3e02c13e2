//go:build rp2040

package main

import (
	"encoding/binary"
	"errors"
	"machine"
	"time"

	pio "github.com/tinygo-org/pio/rp2-pio"

	"github.com/lashbits/silicon-toaster/core"
	"github.com/lashbits/silicon-toaster/flash"
)

const tickFreq = 125_000_000

const (
	pinFeedback = machine.GPIO26 // ADC0, divider feedback
	pinPWM      = machine.GPIO15 // charge pump drive
	pinShoot    = machine.GPIO16 // PIO-driven pulse gate
	pinLEDRed   = machine.GPIO24
	pinLEDGreen = machine.GPIO25
)

var errInvalidPWM = errors.New("rp2040: invalid pwm parameters")

type board struct {
	uart  *machine.UART
	adc   machine.ADC
	pulse *oneShot
	boot  time.Time
	store *flashSector

	period uint16
	width  uint16
	hvOn   bool
}

func newBoard() *board {
	return &board{
		uart:  machine.UART0,
		adc:   machine.ADC{Pin: pinFeedback},
		store: newFlashSector(),
	}
}

func (b *board) init() error {
	b.boot = time.Now()

	for _, pin := range []machine.Pin{pinLEDRed, pinLEDGreen} {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.Low()
	}

	if err := b.uart.Configure(machine.UARTConfig{BaudRate: 9600, TX: machine.GPIO0, RX: machine.GPIO1}); err != nil {
		return err
	}

	machine.InitADC()
	b.adc.Configure(machine.ADCConfig{})

	sm := pio.PIO0.StateMachine(0)
	pulse, err := newOneShot(sm, pinShoot)
	if err != nil {
		return err
	}
	b.pulse = pulse

	pinPWM.Configure(machine.PinConfig{Mode: machine.PinPWM})
	if err := b.ConfigurePWM(800, 0); err != nil {
		return err
	}
	b.SetHighVoltage(false)
	return nil
}

// panicBlink signals failed bring-up before the protocol is available.
func (b *board) panicBlink() {
	pinLEDRed.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		pinLEDRed.High()
		time.Sleep(100 * time.Millisecond)
		pinLEDRed.Low()
		time.Sleep(100 * time.Millisecond)
	}
}

func (b *board) ReadMeasurement() uint16 {
	return b.adc.Get() >> 4
}

func (b *board) Ticks() uint64 {
	elapsed := time.Since(b.boot)
	return uint64(elapsed.Nanoseconds()) * (tickFreq / 1_000_000) / 1000
}

func (b *board) DelayTicks(n uint64) {
	time.Sleep(time.Duration(n*1000/(tickFreq/1_000_000)) * time.Nanosecond)
}

func (b *board) SetHighVoltage(on bool) {
	b.hvOn = on
	if on {
		_ = b.ConfigurePWM(b.period, b.width)
		return
	}
	pinPWM.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinPWM.Low()
}

func (b *board) ConfigurePWM(period, width uint16) error {
	if period == 0 || width > period {
		return errInvalidPWM
	}
	b.period, b.width = period, width
	if !b.hvOn {
		return nil
	}
	slice, err := machine.PWMPeripheral(pinPWM)
	if err != nil {
		return err
	}
	p := pwmSlices[slice]
	pinPWM.Configure(machine.PinConfig{Mode: machine.PinPWM})
	if err := p.Configure(machine.PWMConfig{Period: uint64(period) * 1_000_000_000 / tickFreq}); err != nil {
		return err
	}
	ch, err := p.Channel(pinPWM)
	if err != nil {
		return err
	}
	p.Set(ch, uint32(uint64(p.Top())*uint64(width)/uint64(period)))
	return nil
}

func (b *board) FirePulse(duration uint16) {
	b.pulse.Fire(uint32(duration))
}

func (b *board) SetIndicator(which core.Indicator, on bool) {
	switch which {
	case core.IndicatorHazard:
		pinLEDRed.Set(on)
	case core.IndicatorSafe:
		pinLEDGreen.Set(on)
	}
}

func (b *board) TransmitByte(v byte) {
	for b.uart.WriteByte(v) != nil {
	}
}

// pwmSlices maps the RP2040's eight PWM slices for lookup by index.
var pwmSlices = []interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}{
	machine.PWM0, machine.PWM1, machine.PWM2, machine.PWM3,
	machine.PWM4, machine.PWM5, machine.PWM6, machine.PWM7,
}

// flashSector persists the configuration record in the last erase block
// of the external QSPI flash.
type flashSector struct {
	offset int64
}

var _ flash.SectorDriver = (*flashSector)(nil)

func newFlashSector() *flashSector {
	size := machine.Flash.Size()
	block := machine.Flash.EraseBlockSize()
	return &flashSector{offset: size - block}
}

func (s *flashSector) ReadWord(index int) uint32 {
	var buf [4]byte
	if _, err := machine.Flash.ReadAt(buf[:], s.offset+int64(index)*4); err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(buf[:])
}

func (s *flashSector) Erase() error {
	block := machine.Flash.EraseBlockSize()
	return machine.Flash.EraseBlocks(s.offset/block, 1)
}

func (s *flashSector) Program(words []uint32) error {
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.BigEndian.PutUint32(buf[i*4:], w)
	}
	_, err := machine.Flash.WriteAt(buf, s.offset)
	return err
}
