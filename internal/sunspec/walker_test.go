// internal/sunspec/walker_test.go
package sunspec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"
)

// fakeReader serves registers from a sparse map; anything else is an
// illegal data address, like a real device.
type fakeReader struct {
	regs map[uint16]uint16
}

func (f *fakeReader) ReadRegisters(addr, quantity uint16) ([]byte, error) {
	buf := make([]byte, 2*quantity)
	for i := uint16(0); i < quantity; i++ {
		v, ok := f.regs[addr+i]
		if !ok {
			return nil, fmt.Errorf("modbus: exception '2' (illegal data address) at %d", addr+i)
		}
		binary.BigEndian.PutUint16(buf[2*i:], v)
	}
	return buf, nil
}

// chainDevice builds a SunS device with headers (103,50), (1,66) and
// the end marker, payloads zero-filled.
func chainDevice(withMarker bool) *fakeReader {
	regs := make(map[uint16]uint16)
	if withMarker {
		regs[40000] = 0x5375
		regs[40001] = 0x6E53
	}
	addr := uint16(40002)
	for _, hdr := range [][2]uint16{{103, 50}, {1, 66}} {
		regs[addr] = hdr[0]
		regs[addr+1] = hdr[1]
		for i := uint16(0); i < hdr[1]; i++ {
			regs[addr+2+i] = 0
		}
		addr += 2 + hdr[1]
	}
	regs[addr] = EndBlockID
	regs[addr+1] = 0
	return &fakeReader{regs: regs}
}

func TestFindBlock_FirstInChain(t *testing.T) {
	blk, err := FindBlock(chainDevice(true), 103, 0)
	if err != nil {
		t.Fatalf("FindBlock err=%v", err)
	}
	if blk.Start != 40002 || blk.Length != 50 {
		t.Fatalf("got start=%d length=%d, want 40002/50", blk.Start, blk.Length)
	}
	if blk.DataStart() != 40004 {
		t.Fatalf("DataStart=%d, want 40004", blk.DataStart())
	}
}

func TestFindBlock_SecondInChain(t *testing.T) {
	blk, err := FindBlock(chainDevice(true), 1, 0)
	if err != nil {
		t.Fatalf("FindBlock err=%v", err)
	}
	if blk.Start != 40054 || blk.Length != 66 {
		t.Fatalf("got start=%d length=%d, want 40054/66", blk.Start, blk.Length)
	}
}

func TestFindBlock_NotFoundAtEndMarker(t *testing.T) {
	_, err := FindBlock(chainDevice(true), 999, 0)
	if !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("got %v, want ErrBlockNotFound", err)
	}
}

func TestFindBlock_NoMarkerStillWalksDefaultStart(t *testing.T) {
	blk, err := FindBlock(chainDevice(false), 103, 0)
	if err != nil {
		t.Fatalf("FindBlock err=%v", err)
	}
	if blk.Start != DefaultChainStart {
		t.Fatalf("got start=%d, want %d", blk.Start, DefaultChainStart)
	}
}

// loopReader answers every header read with the same non-terminal
// block, a malformed device that would otherwise walk forever.
type loopReader struct{}

func (loopReader) ReadRegisters(addr, quantity uint16) ([]byte, error) {
	buf := make([]byte, 2*quantity)
	binary.BigEndian.PutUint16(buf, 5)
	return buf, nil
}

func TestFindBlock_MalformedChainHitsHopLimit(t *testing.T) {
	_, err := FindBlock(loopReader{}, 103, 0)
	if !errors.Is(err, ErrChainTooLong) {
		t.Fatalf("got %v, want ErrChainTooLong", err)
	}
}

func TestWalkAll(t *testing.T) {
	blocks, err := WalkAll(chainDevice(true), 0)
	if err != nil {
		t.Fatalf("WalkAll err=%v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].ID != 103 || blocks[1].ID != 1 {
		t.Fatalf("got IDs %d,%d, want 103,1", blocks[0].ID, blocks[1].ID)
	}
}

func TestHasMarker(t *testing.T) {
	if !HasMarker(chainDevice(true)) {
		t.Fatal("marker device not detected")
	}
	if HasMarker(chainDevice(false)) {
		t.Fatal("markerless device detected as marked")
	}
}
