package engine

import "github.com/cbegin/loopcode/internal/samples"

// samplePlayer streams one sample. Players are long-lived and bound to a
// voice only while it sounds; each event still gets its own effect chain.
type samplePlayer struct {
	id     int
	sample *samples.Sample
	pos    float64
	rate   float64
	busy   bool
	owner  *voice
}

func (p *samplePlayer) load(s *samples.Sample, outputRate int) {
	p.sample = s
	p.pos = 0
	p.rate = playbackRate(s, outputRate)
	p.busy = true
}

func (p *samplePlayer) stop() {
	p.busy = false
	p.sample = nil
	p.owner = nil
}

// Next reads the next frame with linear interpolation.
func (p *samplePlayer) Next() (float32, float32, bool) {
	if !p.busy || p.sample == nil {
		return 0, 0, false
	}
	frames := p.sample.Frames()
	i := int(p.pos)
	if i >= frames {
		return 0, 0, false
	}
	frac := float32(p.pos - float64(i))
	d := p.sample.Data
	l, r := d[i*2], d[i*2+1]
	if i+1 < frames {
		l += (d[(i+1)*2] - l) * frac
		r += (d[(i+1)*2+1] - r) * frac
	}
	p.pos += p.rate
	return l, r, true
}

func playbackRate(s *samples.Sample, outputRate int) float64 {
	if s.SampleRate > 0 && outputRate > 0 {
		return float64(s.SampleRate) / float64(outputRate)
	}
	return 1
}

// sampleFrames is the playback length of s at the output rate.
func sampleFrames(s *samples.Sample, outputRate int) int64 {
	if s == nil {
		return 0
	}
	return int64(float64(s.Frames()) / playbackRate(s, outputRate))
}

// sampleSource is the chain source of a sample voice. It stays silent until
// a player is bound and hands the player back once the sample ends.
type sampleSource struct {
	p *samplePlayer
}

func (s *sampleSource) bind(p *samplePlayer) { s.p = p }

func (s *sampleSource) Next() (float32, float32, bool) {
	if s.p == nil {
		return 0, 0, false
	}
	l, r, ok := s.p.Next()
	if !ok {
		s.p.stop()
		s.p = nil
	}
	return l, r, ok
}

type playerPool struct {
	players []*samplePlayer
	next    int
}

func newPlayerPool(size int) *playerPool {
	pool := &playerPool{players: make([]*samplePlayer, size)}
	for i := range pool.players {
		pool.players[i] = &samplePlayer{id: i}
	}
	return pool
}

// acquire returns the next idle player, or steals the one bound to the
// oldest sounding voice when all are busy. stolen is the voice that lost
// its player.
func (pool *playerPool) acquire() (p *samplePlayer, stolen *voice) {
	n := len(pool.players)
	for k := 0; k < n; k++ {
		cand := pool.players[(pool.next+k)%n]
		if !cand.busy {
			pool.next = (cand.id + 1) % n
			return cand, nil
		}
	}
	p = pool.players[0]
	for _, cand := range pool.players[1:] {
		if cand.owner != nil && (p.owner == nil || cand.owner.seq < p.owner.seq) {
			p = cand
		}
	}
	pool.next = (p.id + 1) % n
	return p, p.owner
}

func (pool *playerPool) busy() int {
	n := 0
	for _, p := range pool.players {
		if p.busy {
			n++
		}
	}
	return n
}
