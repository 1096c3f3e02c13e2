package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChargePumpRaisesVoltage(t *testing.T) {
	b := newSimBoard()
	b.SetHighVoltage(true)
	require.NoError(t, b.ConfigurePWM(800, 400))

	before := b.ReadMeasurement()
	time.Sleep(50 * time.Millisecond)
	after := b.ReadMeasurement()

	assert.Greater(t, after, before)
}

func TestVoltageDecaysWhenOff(t *testing.T) {
	b := newSimBoard()
	b.volts = 500
	b.SetHighVoltage(false)

	before := b.ReadMeasurement()
	time.Sleep(50 * time.Millisecond)
	after := b.ReadMeasurement()

	assert.Less(t, after, before)
}

func TestFirePulseDrainsCharge(t *testing.T) {
	b := newSimBoard()
	b.volts = 500

	b.FirePulse(60000)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Less(t, b.volts, 250.0)
	assert.GreaterOrEqual(t, b.volts, 0.0)
}

func TestConfigurePWMRejectsInvalid(t *testing.T) {
	b := newSimBoard()
	assert.Error(t, b.ConfigurePWM(0, 0))
	assert.Error(t, b.ConfigurePWM(5, 100))
	assert.NoError(t, b.ConfigurePWM(100, 5))
}

func TestVoltageClampedToModelRange(t *testing.T) {
	b := newSimBoard()
	b.volts = 5000
	b.ReadMeasurement()

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.LessOrEqual(t, b.volts, 1000.0)
}

func TestTransmitDropsWithoutClient(t *testing.T) {
	b := newSimBoard()
	for i := 0; i < cap(b.txChan)+100; i++ {
		b.TransmitByte(0x42) // must not block
	}
	assert.Equal(t, cap(b.txChan), len(b.txChan))
}
