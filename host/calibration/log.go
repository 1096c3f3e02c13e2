package calibration

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
)

var (
	errSampleMismatch = errors.New("calibration: sample slices differ in length")
	errTooFewSamples  = errors.New("calibration: not enough samples for degree")
	errSingular       = errors.New("calibration: singular system, samples too degenerate")
)

// Sample is one captured calibration point: the averaged raw ADC reading
// at a PWM setting, paired with the voltage measured externally.
type Sample struct {
	Period  uint16  `json:"period"`
	Width   uint16  `json:"width"`
	Value   float64 `json:"value"`
	Voltage float64 `json:"voltage"`
}

// Log appends samples to a JSON-lines capture file.
type Log struct {
	f *os.File
	w *bufio.Writer
}

// OpenLog opens (or creates) a capture file for appending.
func OpenLog(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Log{f: f, w: bufio.NewWriter(f)}, nil
}

// Append writes one sample as a JSON line.
func (l *Log) Append(s Sample) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(data); err != nil {
		return err
	}
	return l.w.WriteByte('\n')
}

func (l *Log) Close() error {
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// ReadLog parses every sample from a capture file, skipping blank lines.
func ReadLog(r io.Reader) ([]Sample, error) {
	var samples []Sample
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var s Sample
		if err := json.Unmarshal(line, &s); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, sc.Err()
}
