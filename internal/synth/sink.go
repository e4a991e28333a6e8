package synth

import (
	"math"
	"sync"
	"sync/atomic"
)

type release struct {
	id int
	at int64 // output frame
}

type SinkOptions struct {
	Params   Params
	RoomSize float32
	RoomWet  float32
	// OnTone is called for every tone started, outside the audio thread.
	OnTone func(pitch int, velocity float64)
}

func DefaultSinkOptions() SinkOptions {
	return SinkOptions{Params: DefaultParams(), RoomSize: 0.6, RoomWet: 0.18}
}

// Sink turns tone requests into audio. PlayTone may be called from any
// goroutine; Process runs on the audio thread. Each tone is released after
// its duration measured in rendered frames.
type Sink struct {
	mu         sync.Mutex
	sampleRate int
	piano      *Piano
	room       *Room
	limiter    *Limiter
	frame      int64
	releases   []release
	onTone     func(int, float64)
	readyFn    atomic.Pointer[func() bool]
	tones      atomic.Int64
}

func NewSink(sampleRate int, opts SinkOptions) *Sink {
	return &Sink{
		sampleRate: sampleRate,
		piano:      NewPiano(sampleRate, opts.Params),
		room:       NewRoom(sampleRate, opts.RoomSize, 0.7, opts.RoomWet),
		limiter:    NewLimiter(sampleRate, -1, 80),
		onTone:     opts.OnTone,
	}
}

// SetReadyFunc gates Ready on an external condition such as the audio
// device having started. A sink without one is always ready.
func (s *Sink) SetReadyFunc(fn func() bool) {
	s.readyFn.Store(&fn)
}

func (s *Sink) Ready() bool {
	fn := s.readyFn.Load()
	if fn == nil || *fn == nil {
		return true
	}
	return (*fn)()
}

func (s *Sink) PlayTone(pitch int, duration, velocity float64) {
	if duration < 0 {
		duration = 0
	}
	s.mu.Lock()
	id := s.piano.NoteOn(pitch, velocity)
	at := s.frame + int64(math.Round(duration*float64(s.sampleRate)))
	s.releases = append(s.releases, release{id: id, at: at})
	s.mu.Unlock()
	s.tones.Add(1)
	if s.onTone != nil {
		s.onTone(pitch, velocity)
	}
}

// Silence releases every sounding tone.
func (s *Sink) Silence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.piano.AllNotesOff()
	s.releases = s.releases[:0]
}

// TonesPlayed returns the number of tones started since creation.
func (s *Sink) TonesPlayed() int64 { return s.tones.Load() }

func (s *Sink) ActiveVoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.piano.ActiveVoiceCount()
}

// Process renders interleaved stereo float32 samples into dst.
func (s *Sink) Process(dst []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i+1 < len(dst); i += 2 {
		s.releaseDue()
		l, r := s.piano.RenderFrame()
		dst[i], dst[i+1] = s.limiter.Process(s.room.Process(l, r))
		s.frame++
	}
}

func (s *Sink) releaseDue() {
	if len(s.releases) == 0 {
		return
	}
	kept := s.releases[:0]
	for _, rel := range s.releases {
		if rel.at <= s.frame {
			s.piano.NoteOff(rel.id)
			continue
		}
		kept = append(kept, rel)
	}
	s.releases = kept
}
