package synth

import (
	"math"
	"testing"
)

func peak(p *Piano, frames int) float64 {
	var m float64
	for i := 0; i < frames; i++ {
		l, r := p.RenderFrame()
		m = math.Max(m, math.Max(math.Abs(float64(l)), math.Abs(float64(r))))
	}
	return m
}

func TestPianoGeneratesSignal(t *testing.T) {
	p := NewPiano(48000, DefaultParams())
	id := p.NoteOn(60, 0.9)
	if id < 0 {
		t.Fatalf("invalid voice id")
	}
	if peak(p, 5000) < 0.001 {
		t.Fatalf("expected non-zero output")
	}
}

func TestPianoDecaysWhileHeld(t *testing.T) {
	params := DefaultParams()
	params.DecaySec = 0.05
	p := NewPiano(48000, params)
	p.NoteOn(60, 1)
	early := peak(p, 2400)
	peak(p, 24000)
	late := peak(p, 2400)
	if late >= early/10 {
		t.Fatalf("expected struck decay, early=%f late=%f", early, late)
	}
}

func TestPianoNoteOffFreesVoice(t *testing.T) {
	p := NewPiano(48000, DefaultParams())
	id := p.NoteOn(60, 0.9)
	peak(p, 100)
	p.NoteOff(id)
	peak(p, 3*48000)
	if n := p.ActiveVoiceCount(); n != 0 {
		t.Fatalf("expected voice to finish after release, %d active", n)
	}
}

func TestPianoRestrikeReleasesPreviousVoice(t *testing.T) {
	p := NewPiano(48000, DefaultParams())
	p.NoteOn(60, 0.9)
	p.NoteOn(60, 0.9)
	peak(p, 3*48000)
	if n := p.ActiveVoiceCount(); n > 1 {
		t.Fatalf("restruck pitch left %d voices", n)
	}
}

func TestPianoStealsWhenFull(t *testing.T) {
	params := DefaultParams()
	params.Polyphony = 2
	p := NewPiano(48000, params)
	for n := 60; n < 66; n++ {
		p.NoteOn(n, 0.9)
	}
	if got := p.ActiveVoiceCount(); got != 2 {
		t.Fatalf("expected polyphony cap of 2, got %d", got)
	}
}

func TestPianoStereoFollowsKeyboard(t *testing.T) {
	energy := func(pitch int) (float64, float64) {
		p := NewPiano(48000, DefaultParams())
		p.NoteOn(pitch, 1)
		var le, re float64
		for i := 0; i < 4096; i++ {
			l, r := p.RenderFrame()
			le += math.Abs(float64(l))
			re += math.Abs(float64(r))
		}
		return le, re
	}
	if l, r := energy(28); l <= r {
		t.Fatalf("low note should lean left, left=%f right=%f", l, r)
	}
	if l, r := energy(100); l >= r {
		t.Fatalf("high note should lean right, left=%f right=%f", l, r)
	}
}

func TestRoomProducesTail(t *testing.T) {
	r := NewRoom(44100, 0.5, 0.7, 0.5)
	r.Process(1, 1)
	var maxOut float32
	for i := 0; i < 10000; i++ {
		l, _ := r.Process(0, 0)
		if l > maxOut {
			maxOut = l
		}
	}
	if maxOut < 0.001 {
		t.Error("expected reverb tail")
	}
	r.Reset()
	if l, _ := r.Process(0, 0); l != 0 {
		t.Errorf("expected silence after reset, got %f", l)
	}
}

func TestSinkReleasesAfterDuration(t *testing.T) {
	var started []int
	opts := DefaultSinkOptions()
	opts.OnTone = func(pitch int, _ float64) { started = append(started, pitch) }
	s := NewSink(1000, opts)
	s.PlayTone(60, 0.1, 0.9)
	if s.ActiveVoiceCount() != 1 || len(started) != 1 || s.TonesPlayed() != 1 {
		t.Fatalf("tone did not start")
	}

	buf := make([]float32, 2*99)
	s.Process(buf)
	if len(s.releases) != 1 {
		t.Fatalf("released too early")
	}
	s.Process(make([]float32, 2*2))
	if len(s.releases) != 0 {
		t.Fatalf("expected release after 100 frames")
	}
}

func TestSinkReadiness(t *testing.T) {
	s := NewSink(48000, DefaultSinkOptions())
	if !s.Ready() {
		t.Fatal("sink without gate should be ready")
	}
	ready := false
	s.SetReadyFunc(func() bool { return ready })
	if s.Ready() {
		t.Fatal("gated sink reported ready")
	}
	ready = true
	if !s.Ready() {
		t.Fatal("gate not consulted")
	}
}

func TestSinkSilence(t *testing.T) {
	s := NewSink(48000, DefaultSinkOptions())
	s.PlayTone(60, 10, 0.9)
	s.PlayTone(64, 10, 0.9)
	s.Silence()
	s.Process(make([]float32, 2*3*48000))
	if n := s.ActiveVoiceCount(); n != 0 {
		t.Fatalf("expected silence, %d voices active", n)
	}
}

func TestLimiterHoldsCeiling(t *testing.T) {
	lm := NewLimiter(48000, -6, 50)
	ceiling := float32(math.Pow(10, -6.0/20))
	for i := 0; i < 4800; i++ {
		l, r := lm.Process(1.5, -1.5)
		if l > ceiling+1e-6 || r < -ceiling-1e-6 {
			t.Fatalf("frame %d exceeded ceiling: %v %v", i, l, r)
		}
	}
	if lm.Gain() >= 1 {
		t.Fatalf("expected gain reduction, got %v", lm.Gain())
	}

	lm.Reset()
	if l, r := lm.Process(0.1, 0.1); l != 0.1 || r != 0.1 {
		t.Fatalf("quiet signal should pass untouched, got %v %v", l, r)
	}
}
