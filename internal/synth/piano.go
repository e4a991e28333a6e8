package synth

import "math"

const twoPi = math.Pi * 2

type Params struct {
	Polyphony   int
	CarrierMul  float64
	ModMul      float64
	ModIndex    float64
	AttackSec   float64
	DecaySec    float64 // carrier time constant while held
	BrightSec   float64 // modulator time constant; shorter is a duller tail
	ReleaseSec  float64
	MasterGain  float64
	VelocityAmp float64
	LPFCutoff   float64 // lowpass filter cutoff in Hz (0 = disabled)
	StereoWidth float64 // 0 = mono, 1 = lowest key hard left, highest hard right
}

func DefaultParams() Params {
	return Params{
		Polyphony:   48,
		CarrierMul:  1.0,
		ModMul:      1.0,
		ModIndex:    1.8,
		AttackSec:   0.002,
		DecaySec:    1.6,
		BrightSec:   0.35,
		ReleaseSec:  0.25,
		MasterGain:  0.35,
		VelocityAmp: 0.8,
		LPFCutoff:   9000,
		StereoWidth: 0.6,
	}
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envRelease
	envOff
)

type voice struct {
	active   bool
	id       int
	pitch    int
	velocity float64
	freq     float64
	pan      float64 // -1..1
	state    envState
	env      float64
	modEnv   float64
	carPhase float64
	modPhase float64
}

// Piano is a polyphonic two-operator FM voice with a struck envelope: a short
// attack followed by exponential decay, so held notes fade the way a piano
// string does.
type Piano struct {
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	masterGain float64
	lpfAlpha   float64
	lpfL       float64
	lpfR       float64
	decayMul   float64
	brightMul  float64
	releaseMul float64
}

func NewPiano(sampleRate int, params Params) *Piano {
	if params.Polyphony <= 0 {
		params.Polyphony = DefaultParams().Polyphony
	}
	sr := float64(sampleRate)
	p := &Piano{
		sampleRate: sr,
		params:     params,
		voices:     make([]voice, params.Polyphony),
		masterGain: max(params.MasterGain, 0),
		decayMul:   decayFactor(params.DecaySec, sr),
		brightMul:  decayFactor(params.BrightSec, sr),
		releaseMul: decayFactor(params.ReleaseSec, sr),
	}
	if params.LPFCutoff > 0 && params.LPFCutoff < sr/2 {
		rc := 1.0 / (twoPi * params.LPFCutoff)
		dt := 1.0 / sr
		p.lpfAlpha = dt / (rc + dt)
	}
	return p
}

// decayFactor is the per-sample multiplier that reaches 1/e after sec.
func decayFactor(sec, sampleRate float64) float64 {
	if sec <= 0 {
		return 0
	}
	return math.Exp(-1 / (sec * sampleRate))
}

// NoteOn strikes pitch at velocity 0..1 and returns a voice id for NoteOff.
// Restriking a sounding pitch releases the previous voice.
func (p *Piano) NoteOn(pitch int, velocity float64) int {
	for i := range p.voices {
		v := &p.voices[i]
		if v.active && v.pitch == pitch && v.state != envRelease {
			v.state = envRelease
		}
	}
	slot := p.stealVoice()
	id := p.nextID
	p.nextID++
	vel := clamp(velocity, 0, 1)
	p.voices[slot] = voice{
		active:   true,
		id:       id,
		pitch:    pitch,
		velocity: vel,
		freq:     midiToFreq(pitch),
		pan:      clamp(float64(pitch-64)/44, -1, 1) * p.params.StereoWidth,
		state:    envAttack,
		modEnv:   0.5 + 0.5*vel,
	}
	return id
}

func (p *Piano) NoteOff(id int) {
	for i := range p.voices {
		v := &p.voices[i]
		if v.active && v.id == id && v.state != envOff {
			v.state = envRelease
		}
	}
}

// AllNotesOff releases every sounding voice.
func (p *Piano) AllNotesOff() {
	for i := range p.voices {
		if p.voices[i].active {
			p.voices[i].state = envRelease
		}
	}
}

func (p *Piano) RenderFrame() (float32, float32) {
	gain := p.masterGain
	var l, r float64
	for i := range p.voices {
		v := &p.voices[i]
		if !v.active {
			continue
		}
		p.advanceEnv(v)
		if v.state == envOff {
			v.active = false
			continue
		}
		mod := math.Sin(v.modPhase) * v.modEnv * p.params.ModIndex
		sig := math.Sin(v.carPhase+mod) * v.env
		sig *= gain * (0.2 + v.velocity*p.params.VelocityAmp)

		angle := (v.pan + 1) * math.Pi / 4
		l += sig * math.Cos(angle)
		r += sig * math.Sin(angle)

		v.carPhase += twoPi * v.freq * p.params.CarrierMul / p.sampleRate
		if v.carPhase > twoPi {
			v.carPhase -= twoPi
		}
		v.modPhase += twoPi * v.freq * p.params.ModMul / p.sampleRate
		if v.modPhase > twoPi {
			v.modPhase -= twoPi
		}
	}
	if p.lpfAlpha > 0 {
		p.lpfL += p.lpfAlpha * (l - p.lpfL)
		p.lpfR += p.lpfAlpha * (r - p.lpfR)
		l, r = p.lpfL, p.lpfR
	}
	return float32(clamp(l, -1, 1)), float32(clamp(r, -1, 1))
}

func (p *Piano) advanceEnv(v *voice) {
	v.modEnv *= p.brightMul
	switch v.state {
	case envAttack:
		step := 1.0
		if p.params.AttackSec > 0 {
			step = 1.0 / (p.params.AttackSec * p.sampleRate)
		}
		v.env += step
		if v.env >= 1 {
			v.env = 1
			v.state = envDecay
		}
	case envDecay:
		v.env *= p.decayMul
		if v.env <= 0.0001 {
			v.env = 0
			v.state = envOff
		}
	case envRelease:
		v.env *= p.releaseMul
		if v.env <= 0.0001 {
			v.env = 0
			v.state = envOff
		}
	}
}

func (p *Piano) stealVoice() int {
	for i := range p.voices {
		if !p.voices[i].active {
			return i
		}
	}
	quiet := 0
	minEnv := p.voices[0].env
	for i := 1; i < len(p.voices); i++ {
		if p.voices[i].env < minEnv {
			minEnv = p.voices[i].env
			quiet = i
		}
	}
	return quiet
}

func (p *Piano) ActiveVoiceCount() int {
	n := 0
	for i := range p.voices {
		if p.voices[i].active {
			n++
		}
	}
	return n
}

func midiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
