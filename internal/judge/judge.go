package judge

import (
	"math"

	"github.com/cbegin/pianofall-go/internal/score"
)

// sectionEpsilon absorbs float drift between note starts and measure boundaries.
const sectionEpsilon = 1e-4

// ToneSink produces the sampled sound for a note. The engine only calls it
// while Ready reports true.
type ToneSink interface {
	Ready() bool
	PlayTone(pitch int, duration float64, velocity float64)
}

// HandConfig selects which hands are being practised.
type HandConfig struct {
	Left  bool
	Right bool
}

func BothHands() HandConfig { return HandConfig{Left: true, Right: true} }

func (h HandConfig) Enabled(hand score.Hand) bool {
	if hand == score.HandLeft {
		return h.Left
	}
	return h.Right
}

type Config struct {
	Tolerance float64 // symmetric match window in seconds
	Grace     float64 // cursor force-advance margin after a note ends
	Velocity  float64 // tone velocity 0..1
}

func DefaultConfig() Config {
	return Config{Tolerance: 0.2, Grace: 0.5, Velocity: 0.9}
}

// Tally counts judged notes. Ignored notes are never counted.
type Tally struct {
	Correct int
	Missed  int
	Total   int // correct plus missed
}

// Accuracy returns correct / (correct + missed), or 0 before any judgment.
func (t Tally) Accuracy() float64 {
	if t.Correct+t.Missed == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Correct+t.Missed)
}

type Outcome int

const (
	NoMatch Outcome = iota
	Match
	Mismatch
)

func (o Outcome) String() string {
	switch o {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "no_match"
	}
}

// PressResult describes what a key press did to the expected note stream.
type PressResult struct {
	Outcome Outcome
	Index   int     // affected note, -1 for NoMatch
	Offset  float64 // press time minus note start
}

// Judgement is reported for every terminal transition.
type Judgement struct {
	Index  int
	Pitch  int
	Hand   score.Hand
	State  score.Judgment
	Offset float64 // press (or resolution) time minus note start
}

type Options struct {
	Hands    HandConfig
	Sink     ToneSink
	OnJudged func(Judgement)
}

// Engine judges live input against the expected note stream. It mutates the
// judgment fields of the notes it was given but never reorders them. All
// methods must be called from one logical thread.
type Engine struct {
	notes       []score.Note
	cfg         Config
	hands       HandConfig
	sink        ToneSink
	onJudged    func(Judgement)
	cursor      int // lowest index that may still be pending
	audioCursor int
	limit       int // first index at or past the section end
	sectionEnd  float64
	tally       Tally
	held        map[int]string
	stalled     bool // sink was not ready on the previous tick
}

func New(notes []score.Note, cfg Config, opts Options) *Engine {
	def := DefaultConfig()
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.Grace < 0 {
		cfg.Grace = def.Grace
	}
	if cfg.Velocity <= 0 || cfg.Velocity > 1 {
		cfg.Velocity = def.Velocity
	}
	e := &Engine{
		notes:      notes,
		cfg:        cfg,
		hands:      opts.Hands,
		sink:       opts.Sink,
		onJudged:   opts.OnJudged,
		limit:      len(notes),
		sectionEnd: math.Inf(1),
		held:       map[int]string{},
	}
	return e
}

func (e *Engine) Config() Config        { return e.cfg }
func (e *Engine) Hands() HandConfig     { return e.hands }
func (e *Engine) SetHands(h HandConfig) { e.hands = h }
func (e *Engine) Tally() Tally          { return e.tally }
func (e *Engine) Cursor() int           { return e.cursor }
func (e *Engine) Notes() []score.Note   { return e.notes }
func (e *Engine) SectionEnd() float64   { return e.sectionEnd }
func (e *Engine) ResetTally()           { e.tally = Tally{} }

// Reset prepares a pass over [start, end): every note returns to pending,
// notes outside the range are marked consumed so they neither sound nor get
// judged, and both cursors move to the first note of the range. The tally is
// kept so repeats accumulate.
func (e *Engine) Reset(start, end float64) {
	e.sectionEnd = end
	e.cursor = len(e.notes)
	e.limit = len(e.notes)
	for i := range e.notes {
		n := &e.notes[i]
		n.Reset()
		switch {
		case n.Start < start-sectionEpsilon:
			n.Consumed = true
		case n.Start >= end-sectionEpsilon:
			n.Consumed = true
			if i < e.limit {
				e.limit = i
			}
		default:
			if i < e.cursor {
				e.cursor = i
			}
		}
	}
	if e.cursor > e.limit {
		e.cursor = e.limit
	}
	e.audioCursor = e.cursor
	e.stalled = false
	clear(e.held)
}

// Press applies a key press at musical time at. A note of the pressed pitch
// anywhere in the tolerance window matches; otherwise the earliest pending
// note in the window is marked missed.
func (e *Engine) Press(pitch int, at float64) PressResult {
	e.held[pitch] = score.ColorKeyPressed
	tol := e.cfg.Tolerance
	candidate := -1
	for i := e.cursor; i < e.limit; i++ {
		n := &e.notes[i]
		if n.Start-at > tol {
			break
		}
		if n.State != score.Pending || !e.hands.Enabled(n.Hand) {
			continue
		}
		if math.Abs(n.Start-at) > tol {
			continue
		}
		if n.Pitch == pitch {
			e.resolve(i, score.Correct, at-n.Start)
			e.advance(at)
			return PressResult{Outcome: Match, Index: i, Offset: at - n.Start}
		}
		if candidate < 0 {
			candidate = i
		}
	}
	if candidate < 0 {
		return PressResult{Outcome: NoMatch, Index: -1}
	}
	offset := at - e.notes[candidate].Start
	e.resolve(candidate, score.Missed, offset)
	e.held[pitch] = score.ColorMiss
	return PressResult{Outcome: Mismatch, Index: candidate, Offset: offset}
}

// Hold marks pitch as pressed without judging it, for presses while the
// clock is not running.
func (e *Engine) Hold(pitch int) {
	e.held[pitch] = score.ColorKeyPressed
}

// Release clears the held-key marker for pitch.
func (e *Engine) Release(pitch int) {
	delete(e.held, pitch)
}

// Held returns the currently pressed keys and their display colour.
func (e *Engine) Held() map[int]string {
	out := make(map[int]string, len(e.held))
	for k, v := range e.held {
		out[k] = v
	}
	return out
}

// ReleaseAll clears every held key, e.g. after an input device disconnects.
func (e *Engine) ReleaseAll() { clear(e.held) }

// Tick resolves every pending note whose window closed before now, triggers
// due tones and reports whether now reached the section end. It only depends
// on now, so sparse or repeated ticks give the same result.
func (e *Engine) Tick(now float64) (sectionEnded bool) {
	tol := e.cfg.Tolerance
	for i := e.cursor; i < e.limit; i++ {
		n := &e.notes[i]
		if now <= n.Start+tol {
			break
		}
		if n.State != score.Pending {
			continue
		}
		if e.hands.Enabled(n.Hand) {
			e.resolve(i, score.Missed, now-n.Start)
		} else {
			e.resolve(i, score.Ignored, now-n.Start)
		}
	}
	e.advance(now)
	e.triggerTones(now)
	return now >= e.sectionEnd
}

func (e *Engine) resolve(i int, state score.Judgment, offset float64) {
	n := &e.notes[i]
	n.State = state
	switch state {
	case score.Correct:
		n.Color = score.ColorCorrect
		e.tally.Correct++
		e.tally.Total++
	case score.Missed:
		n.Color = score.ColorMiss
		e.tally.Missed++
		e.tally.Total++
	}
	if e.onJudged != nil {
		e.onJudged(Judgement{Index: i, Pitch: n.Pitch, Hand: n.Hand, State: state, Offset: offset})
	}
}

// advance moves the cursor past resolved notes and past any note whose end
// plus the grace margin has elapsed.
func (e *Engine) advance(now float64) {
	for e.cursor < e.limit {
		n := &e.notes[e.cursor]
		if n.State == score.Pending && now <= n.End()+e.cfg.Grace {
			return
		}
		e.cursor++
	}
}

// triggerTones sounds every due note once, however sparse the ticks. Notes
// that ended while the sink was not ready are skipped instead of replayed.
func (e *Engine) triggerTones(now float64) {
	if e.sink == nil {
		return
	}
	if !e.sink.Ready() {
		e.stalled = true
		return
	}
	for i := e.audioCursor; i < e.limit; i++ {
		n := &e.notes[i]
		if n.Start > now {
			break
		}
		if n.Consumed || !e.hands.Enabled(n.Hand) {
			continue
		}
		n.Consumed = true
		if e.stalled && now > n.End() {
			continue
		}
		e.sink.PlayTone(n.Pitch, n.Duration, e.cfg.Velocity)
	}
	e.stalled = false
	for e.audioCursor < e.limit {
		n := &e.notes[e.audioCursor]
		if !n.Consumed && now <= n.End() {
			return
		}
		e.audioCursor++
	}
}
