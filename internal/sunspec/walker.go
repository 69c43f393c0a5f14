// internal/sunspec/walker.go
package sunspec

import (
	"encoding/binary"
	"fmt"
)

const (
	// BaseAddress is the primary well-known register holding the
	// "SunS" marker.
	BaseAddress uint16 = 40000

	// DefaultChainStart is where the first model header lives. Devices
	// that omit the marker are still walked from here; several vendors
	// ship the chain without the marker words.
	DefaultChainStart uint16 = 40002

	// EndBlockID terminates the model chain.
	EndBlockID uint16 = 0xFFFF

	// DefaultMaxHops bounds a chain walk. Real chains are a handful of
	// models; anything past this is a device looping on itself.
	DefaultMaxHops = 64

	markerWord1 uint16 = 0x5375 // "Su"
	markerWord2 uint16 = 0x6E53 // "nS"
)

// RegisterReader is the slice of a transport session the walker and
// decoder need.
type RegisterReader interface {
	ReadRegisters(addr, quantity uint16) ([]byte, error)
}

// Block is one resolved chain entry. Start addresses the header's ID
// register; model data begins at Start+2.
type Block struct {
	ID     uint16
	Start  uint16
	Length uint16
}

// DataStart returns the address of the model's first data register.
func (b Block) DataStart() uint16 {
	return b.Start + 2
}

// HasMarker reports whether the SunS marker sits at the primary base
// address. A read failure counts as no marker.
func HasMarker(r RegisterReader) bool {
	buf, err := r.ReadRegisters(BaseAddress, 2)
	if err != nil || len(buf) < 4 {
		return false
	}
	return binary.BigEndian.Uint16(buf[0:2]) == markerWord1 &&
		binary.BigEndian.Uint16(buf[2:4]) == markerWord2
}

// ChainStart resolves where the header chain begins. With the marker
// present the chain follows it directly; without it the default start
// is probed anyway.
func ChainStart(r RegisterReader) uint16 {
	if HasMarker(r) {
		return BaseAddress + 2
	}
	return DefaultChainStart
}

func readHeader(r RegisterReader, addr uint16) (id, length uint16, err error) {
	buf, err := r.ReadRegisters(addr, 2)
	if err != nil {
		return 0, 0, fmt.Errorf("read model header at %d: %w", addr, err)
	}
	if len(buf) < 4 {
		return 0, 0, fmt.Errorf("short model header at %d: %d bytes", addr, len(buf))
	}
	return binary.BigEndian.Uint16(buf[0:2]), binary.BigEndian.Uint16(buf[2:4]), nil
}

// FindBlock walks the chain until the target model, the end marker, or
// the hop limit.
func FindBlock(r RegisterReader, target uint16, maxHops int) (Block, error) {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}

	addr := ChainStart(r)
	for hop := 0; hop < maxHops; hop++ {
		id, length, err := readHeader(r, addr)
		if err != nil {
			return Block{}, err
		}
		if id == EndBlockID {
			return Block{}, fmt.Errorf("%w: model %d", ErrBlockNotFound, target)
		}
		if id == target {
			return Block{ID: id, Start: addr, Length: length}, nil
		}
		addr += 2 + length
	}
	return Block{}, fmt.Errorf("%w: gave up after %d hops", ErrChainTooLong, maxHops)
}

// WalkAll enumerates every block in the chain.
func WalkAll(r RegisterReader, maxHops int) ([]Block, error) {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}

	var blocks []Block
	addr := ChainStart(r)
	for hop := 0; hop < maxHops; hop++ {
		id, length, err := readHeader(r, addr)
		if err != nil {
			return blocks, err
		}
		if id == EndBlockID {
			return blocks, nil
		}
		blocks = append(blocks, Block{ID: id, Start: addr, Length: length})
		addr += 2 + length
	}
	return blocks, fmt.Errorf("%w: gave up after %d hops", ErrChainTooLong, maxHops)
}
