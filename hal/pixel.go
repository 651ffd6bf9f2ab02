package hal

// rgb565 packs an 8-bit-per-channel color into 5-6-5 bits.
func rgb565(r, g, b uint8) uint16 {
	return uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3
}

// expand565 widens a 5-6-5 pixel to 8 bits per channel. The high bits are
// replicated into the low ones so that full scale maps to 0xFF.
func expand565(p uint16) (r, g, b uint8) {
	r5 := uint8(p>>11) & 0x1F
	g6 := uint8(p>>5) & 0x3F
	b5 := uint8(p) & 0x1F
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}
