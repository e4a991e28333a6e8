package synth

import "math"

// Limiter holds the summed piano and room output under a ceiling. The
// envelope is linked across channels so chords do not shift the image.
type Limiter struct {
	ceiling float32
	attack  float32
	release float32
	env     float32
}

// NewLimiter builds a limiter with ceilingDB (e.g. -1) and release time in
// milliseconds. Attack is fixed at one millisecond.
func NewLimiter(sampleRate int, ceilingDB, releaseMs float32) *Limiter {
	sr := float64(sampleRate)
	coef := func(ms float32) float32 {
		if ms <= 0 {
			return 1
		}
		return float32(1 - math.Exp(-1/(float64(ms)*sr/1000)))
	}
	return &Limiter{
		ceiling: float32(math.Pow(10, float64(ceilingDB)/20)),
		attack:  coef(1),
		release: coef(releaseMs),
	}
}

func (lm *Limiter) Process(l, r float32) (float32, float32) {
	peak := max(abs32(l), abs32(r))
	if peak > lm.env {
		lm.env += lm.attack * (peak - lm.env)
	} else {
		lm.env += lm.release * (peak - lm.env)
	}
	g := lm.Gain()
	l, r = l*g, r*g
	return clamp32(l, -lm.ceiling, lm.ceiling), clamp32(r, -lm.ceiling, lm.ceiling)
}

// Gain is the current gain reduction factor, 1 when idle.
func (lm *Limiter) Gain() float32 {
	if lm.env <= lm.ceiling {
		return 1
	}
	return lm.ceiling / lm.env
}

func (lm *Limiter) Reset() { lm.env = 0 }

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
