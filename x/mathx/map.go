package mathx

// Scale maps pct in [0..100] onto [0..top], clamping pct first.
func Scale(pct, top uint16) uint16 {
	pct = Min(pct, 100)
	return uint16(uint32(pct) * uint32(top) / 100)
}
