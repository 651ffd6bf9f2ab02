package arch

import "encoding/binary"

// RegPattern is the fill value for register slots a frame does not need:
// the register number in decimal digits, repeated in every byte (r4 is
// 0x04040404, r12 is 0x12121212).
func RegPattern(n int) Word {
	b := Word(n/10%10)<<4 | Word(n%10)
	return b * 0x01010101
}

// FrameWriter stores little-endian words into a stack slice.
type FrameWriter struct {
	Stack []byte
	Base  int
}

// Put writes w at word slot i above Base.
func (f FrameWriter) Put(i int, w Word) {
	binary.LittleEndian.PutUint32(f.Stack[f.Base+i*4:], w)
}

// ReadWord reads word slot i above base.
func ReadWord(stack []byte, base, i int) Word {
	return binary.LittleEndian.Uint32(stack[base+i*4:])
}

// AlignDown rounds n down to a multiple of align (a power of two).
func AlignDown(n, align int) int {
	return n &^ (align - 1)
}
