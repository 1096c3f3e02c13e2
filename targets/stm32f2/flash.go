//go:build stm32f2

package main

import (
	"encoding/binary"
	"machine"

	"github.com/lashbits/silicon-toaster/flash"
)

// flashSector persists the configuration record in the last erase block of
// on-chip flash, behind the flash.SectorDriver word interface.
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
