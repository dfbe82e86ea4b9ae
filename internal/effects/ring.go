package effects

// ring is a stereo delay line. read(n) returns the frame written n writes
// ago, for 1 <= n <= size.
type ring struct {
	l, r []float32
	pos  int
}

func newRing(size int) ring {
	if size < 2 {
		size = 2
	}
	return ring{l: make([]float32, size), r: make([]float32, size)}
}

func (b *ring) size() int { return len(b.l) }

func (b *ring) write(l, r float32) {
	b.l[b.pos] = l
	b.r[b.pos] = r
	b.pos++
	if b.pos == len(b.l) {
		b.pos = 0
	}
}

func (b *ring) read(n int) (float32, float32) {
	i := b.pos - n
	for i < 0 {
		i += len(b.l)
	}
	return b.l[i], b.r[i]
}

// readFrac interpolates between whole-frame taps.
func (b *ring) readFrac(n float32) (float32, float32) {
	if n < 1 {
		n = 1
	}
	if limit := float32(len(b.l) - 1); n > limit {
		n = limit
	}
	i := int(n)
	frac := n - float32(i)
	l0, r0 := b.read(i)
	l1, r1 := b.read(i + 1)
	return l0 + (l1-l0)*frac, r0 + (r1-r0)*frac
}

func (b *ring) clear() {
	clear(b.l)
	clear(b.r)
	b.pos = 0
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
