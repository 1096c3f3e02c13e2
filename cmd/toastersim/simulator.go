package main

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/lashbits/silicon-toaster/core"
	"github.com/lashbits/silicon-toaster/flash"
	"github.com/lashbits/silicon-toaster/host/calibration"
)

const simTickFreq = 64_000_000

var errInvalidPWM = errors.New("sim: invalid pwm parameters")

// simulator runs the real firmware loop against a simulated power stage
// and bridges its serial bytes to one WebSocket client at a time.
type simulator struct {
	loop  *core.Loop
	board *simBoard
}

func newSimulator() *simulator {
	board := newSimBoard()
	loop := core.NewLoop(core.Config{
		TickFreq:    simTickFreq,
		Sensor:      board,
		Clock:       board,
		Actuator:    board,
		Transmitter: board,
		Indicators:  board,
		Store:       &memSector{},
	})
	return &simulator{loop: loop, board: board}
}

func (s *simulator) run() {
	s.loop.Run()
	// The loop only returns by faulting; a real board would be stuck
	// blinking its hazard LED at this point.
	glog.Errorf("firmware loop faulted: %v", s.loop.Err())
}

// serve bridges one WebSocket connection to the running loop. It returns
// when the client goes away.
func (s *simulator) serve(conn *websocket.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }
	defer stop()

	// Device-to-host: batch response bytes into binary messages.
	go func() {
		defer stop()
		for {
			var msg []byte
			select {
			case <-done:
				return
			case b := <-s.board.txChan:
				msg = append(msg, b)
			}
			// Drain whatever else is already queued.
			for {
				select {
				case b := <-s.board.txChan:
					msg = append(msg, b)
					continue
				default:
				}
				break
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		}
	}()

	// Host-to-device: push received bytes into the firmware queue.
	q := s.loop.Queue()
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		for _, b := range data {
			if err := q.TryPush(b); err != nil {
				glog.Errorf("receive queue overflow, firmware will fault")
				return
			}
		}
	}
}

// simBoard simulates the analog side: a charge pump raising the capacitor
// voltage proportionally to PWM duty, ohmic leakage pulling it down, and
// discharge pulses knocking it out.
type simBoard struct {
	mu         sync.Mutex
	hvOn       bool
	period     uint16
	width      uint16
	volts      float64
	lastUpdate time.Time

	boot   time.Time
	txChan chan byte

	hazard bool
	safe   bool
}

// Tuning constants for the simulated analog stage.
const (
	chargeVoltsPerSec = 4000.0 // at 100% duty
	leakPerSec        = 0.05   // fraction of voltage lost per second
	shootDrainVolts   = 300.0  // worst-case drop of a long pulse
)

func newSimBoard() *simBoard {
	now := time.Now()
	return &simBoard{
		period:     800,
		boot:       now,
		lastUpdate: now,
		txChan:     make(chan byte, 4096),
	}
}

// settle advances the analog model to the present. Callers hold mu.
func (b *simBoard) settle() {
	now := time.Now()
	dt := now.Sub(b.lastUpdate).Seconds()
	b.lastUpdate = now

	if b.hvOn && b.period > 0 {
		duty := float64(b.width) / float64(b.period)
		b.volts += chargeVoltsPerSec * duty * dt
	}
	b.volts -= b.volts * leakPerSec * dt
	if b.volts < 0 {
		b.volts = 0
	}
	if b.volts > 1000 {
		b.volts = 1000
	}
}

func (b *simBoard) ReadMeasurement() uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settle()
	return calibration.ToRaw(b.volts)
}

func (b *simBoard) Ticks() uint64 {
	return uint64(time.Since(b.boot).Nanoseconds()) * (simTickFreq / 1_000_000) / 1000
}

func (b *simBoard) DelayTicks(n uint64) {
	time.Sleep(time.Duration(n*1000/(simTickFreq/1_000_000)) * time.Nanosecond)
}

func (b *simBoard) SetHighVoltage(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settle()
	b.hvOn = on
	glog.V(1).Infof("high voltage %v", on)
}

func (b *simBoard) ConfigurePWM(period, width uint16) error {
	if period == 0 || width > period {
		return errInvalidPWM
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settle()
	b.period, b.width = period, width
	glog.V(2).Infof("pwm period=%d width=%d", period, width)
	return nil
}

func (b *simBoard) FirePulse(duration uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settle()
	// Longer pulses drain more charge, saturating at a full dump.
	frac := 1 - math.Exp(-float64(duration)/10_000)
	b.volts -= shootDrainVolts * frac
	if b.volts < 0 {
		b.volts = 0
	}
	glog.Infof("pulse fired, duration=%d, %0.1f V left", duration, b.volts)
}

func (b *simBoard) TransmitByte(v byte) {
	select {
	case b.txChan <- v:
	default:
		// No client draining responses; drop the byte like an
		// unconnected UART would.
	}
}

func (b *simBoard) SetIndicator(which core.Indicator, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch which {
	case core.IndicatorHazard:
		if b.hazard != on {
			glog.V(1).Infof("hazard indicator %v", on)
		}
		b.hazard = on
	case core.IndicatorSafe:
		b.safe = on
	}
}

// memSector keeps the persisted record for the lifetime of the process.
type memSector struct {
	words [flash.RecordWords]uint32
}

func (s *memSector) ReadWord(index int) uint32 { return s.words[index] }

func (s *memSector) Erase() error {
	s.words = [flash.RecordWords]uint32{}
	return nil
}

func (s *memSector) Program(words []uint32) error {
	copy(s.words[:], words)
	return nil
}
