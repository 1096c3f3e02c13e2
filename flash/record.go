// Package flash defines the on-device layout of persisted controller
// tuning and the sector access interface it is stored through.
//
// A record occupies one erasable sector and is trusted only when its first
// word equals Magic. Writing is erase-then-program with no atomicity across
// the two steps: power loss in between leaves the sector erased, which the
// next boot detects as "no record" and falls back to compiled-in defaults.
package flash

import "math"

// Magic marks a sector that holds a valid record.
const Magic = 0x444E4A4E

// RecordWords is the record size in 32-bit words.
const RecordWords = 6

// SectorDriver gives access to one fixed-size erasable unit of
// non-volatile storage. Sector identity and base address resolution belong
// to the hardware target; this package only defines the byte layout.
type SectorDriver interface {
	// ReadWord returns the 32-bit word at the given index from the
	// sector base.
	ReadWord(index int) uint32
	// Erase erases the whole sector.
	Erase() error
	// Program writes the given words starting at the sector base. The
	// sector must have been erased first.
	Program(words []uint32) error
}

// Record is the persisted controller tuning.
type Record struct {
	Kp, Ki, Kd   float32
	ControlTicks uint64
}

// Words encodes the record into its sector layout:
//
//	word 0: Magic
//	word 1-3: kp, ki, kd IEEE-754 bit patterns
//	word 4-5: control interval ticks, high then low
func (r Record) Words() [RecordWords]uint32 {
	return [RecordWords]uint32{
		Magic,
		math.Float32bits(r.Kp),
		math.Float32bits(r.Ki),
		math.Float32bits(r.Kd),
		uint32(r.ControlTicks >> 32),
		uint32(r.ControlTicks),
	}
}

// ReadRecord reads a record from the sector. It returns ok=false when the
// magic word does not match, leaving the zero Record untouched so callers
// keep their defaults.
func ReadRecord(d SectorDriver) (Record, bool) {
	if d.ReadWord(0) != Magic {
		return Record{}, false
	}
	h := uint64(d.ReadWord(4))
	l := uint64(d.ReadWord(5))
	return Record{
		Kp:           math.Float32frombits(d.ReadWord(1)),
		Ki:           math.Float32frombits(d.ReadWord(2)),
		Kd:           math.Float32frombits(d.ReadWord(3)),
		ControlTicks: h<<32 | l,
	}, true
}

// WriteRecord erases the sector and programs the full record in one pass.
// Partial updates are not supported.
func WriteRecord(d SectorDriver, r Record) error {
	if err := d.Erase(); err != nil {
		return err
	}
	words := r.Words()
	return d.Program(words[:])
}
