package synth

// Room is a small Schroeder reverb: four parallel combs into two allpasses.
type Room struct {
	combs   [4]delayLine
	allpass [2]delayLine
	wet     float32
}

type delayLine struct {
	buf []float32
	pos int
	fb  float32
}

// NewRoom builds a room of size 0..1 with the given decay feedback and
// wet/dry mix.
func NewRoom(sampleRate int, size, feedback, wet float32) *Room {
	base := int(float32(sampleRate) * size * 0.05)
	if base < 10 {
		base = 10
	}
	fb := clamp32(feedback, 0, 0.95)
	r := &Room{wet: clamp32(wet, 0, 1)}
	combLens := [4]int{base, base * 1117 / 1000, base * 1271 / 1000, base * 1437 / 1000}
	for i := range r.combs {
		r.combs[i] = delayLine{buf: make([]float32, combLens[i]), fb: fb}
	}
	apLens := [2]int{base * 347 / 1000, base * 213 / 1000}
	for i := range r.allpass {
		r.allpass[i] = delayLine{buf: make([]float32, max(apLens[i], 1)), fb: 0.5}
	}
	return r
}

func (r *Room) Process(l, rr float32) (float32, float32) {
	if r.wet == 0 {
		return l, rr
	}
	mono := (l + rr) * 0.5
	var out float32
	for i := range r.combs {
		out += r.combs[i].comb(mono)
	}
	out *= 0.25
	for i := range r.allpass {
		out = r.allpass[i].pass(out)
	}
	return l*(1-r.wet) + out*r.wet, rr*(1-r.wet) + out*r.wet
}

func (r *Room) Reset() {
	for i := range r.combs {
		clear(r.combs[i].buf)
		r.combs[i].pos = 0
	}
	for i := range r.allpass {
		clear(r.allpass[i].buf)
		r.allpass[i].pos = 0
	}
}

func (d *delayLine) comb(in float32) float32 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in + out*d.fb
	d.step()
	return out
}

func (d *delayLine) pass(in float32) float32 {
	held := d.buf[d.pos]
	d.buf[d.pos] = in + held*d.fb
	d.step()
	return held - in
}

func (d *delayLine) step() {
	d.pos++
	if d.pos >= len(d.buf) {
		d.pos = 0
	}
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
