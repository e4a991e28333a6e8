// Package pianofall is a piano practice engine: it turns a MIDI score into a
// timed note stream, plays it against a speed-scaled clock and judges live key
// presses against it, one section at a time.
package pianofall

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cbegin/pianofall-go/internal/clock"
	"github.com/cbegin/pianofall-go/internal/judge"
	"github.com/cbegin/pianofall-go/internal/midifile"
	"github.com/cbegin/pianofall-go/internal/scheduler"
	"github.com/cbegin/pianofall-go/internal/score"
	"github.com/cbegin/pianofall-go/internal/section"
	"github.com/cbegin/pianofall-go/pkg/logger"
	"github.com/cbegin/pianofall-go/pkg/metrics"
	"github.com/google/uuid"
)

var (
	ErrNoScore           = errors.New("no score loaded")
	ErrSectionOutOfRange = section.ErrOutOfRange
)

// Metadata describes the loaded score for section menus and headers.
type Metadata struct {
	BPM               float64
	Numerator         int
	Denominator       int
	MeasureBoundaries []float64
	Duration          float64
	LeadIn            float64
	NoteCount         int
}

// Snapshot is a consistent view of the session for renderers.
type Snapshot struct {
	SessionID   string
	Loaded      bool
	Playing     bool
	Paused      bool
	Now         float64
	Speed       float64
	Section     int
	Pass        int
	RepeatCount int
	Tally       Tally
	Accuracy    float64
	Held        map[int]string
}

// Trainer owns one loaded score and its playback session. Live input and the
// scheduler tick are serialized through one mutex so all note state has a
// single writer at a time.
type Trainer struct {
	mu       sync.Mutex
	cfg      trainerConfig
	builder  *score.Builder
	clk      *clock.Clock
	sched    *scheduler.Scheduler
	metrics  *metrics.Manager
	log      logger.Logger
	sc       *score.Score
	engine   *judge.Engine
	sections *section.Controller
	hands    judge.HandConfig
	session  string
	finished bool

	eventCh   chan Event
	eventChMu sync.Mutex
	backlog   []Event // lifecycle events waiting for room in eventCh
}

func New(opts ...TrainerOption) *Trainer {
	cfg := defaultTrainerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.device == nil {
		cfg.device = &clock.WallClock{}
	}
	if cfg.log == nil {
		cfg.log = logger.Named("trainer")
	}
	t := &Trainer{
		cfg:     cfg,
		builder: score.NewBuilder(cfg.builder),
		clk:     clock.New(cfg.device),
		metrics: cfg.metrics,
		log:     cfg.log,
		hands:   cfg.hands,
	}
	t.clk.SetSpeed(cfg.speed)
	t.sched = scheduler.New(t.Tick, scheduler.WithHz(cfg.hiddenHz), scheduler.WithVisible(cfg.visible))
	return t
}

// LoadFile reads a standard MIDI file and loads it.
func (t *Trainer) LoadFile(path string) error {
	src, err := midifile.ReadFile(path)
	if err != nil {
		return err
	}
	t.Load(src)
	return nil
}

// Load replaces the score. Any running session is stopped first.
func (t *Trainer) Load(src Source) {
	sc := t.builder.Build(src)
	t.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sc = sc
	t.engine = judge.New(sc.Notes, t.cfg.judge, judge.Options{
		Hands:    t.hands,
		Sink:     t.cfg.sink,
		OnJudged: t.onJudged,
	})
	t.sections = section.NewController(sc, t.engine, t.clk, t.cfg.section)
	t.sections.SetRepeatCount(t.cfg.repeatCount)
	t.engine.Reset(0, sc.Duration)
	t.engine.ResetTally()
	t.log.Info(context.Background(), "score loaded",
		logger.Int("notes", len(sc.Notes)),
		logger.Float64("bpm", sc.BPM),
		logger.String("time_signature", fmt.Sprintf("%d/%d", sc.Numerator, sc.Denominator)),
		logger.Float64("duration", sc.Duration))
}

// Play starts a new session on the selected section.
func (t *Trainer) Play() error {
	t.sched.Stop()

	t.mu.Lock()
	if t.sc == nil {
		t.mu.Unlock()
		return ErrNoScore
	}
	t.session = uuid.NewString()
	t.finished = false
	t.engine.ResetTally()
	bounds := t.sections.Begin()
	t.metrics.RecordSectionEntered()
	t.metrics.SetPlaybackState(metrics.StatePlaying)
	t.log.Info(context.Background(), "playback started",
		logger.String("session", t.session),
		logger.Int("section", t.sections.Index()),
		logger.Float64("start", bounds.Start),
		logger.Float64("end", bounds.End),
		logger.Float64("speed", t.clk.Speed()))
	t.sendEvent(t.eventLocked(EventSectionEntered))
	t.mu.Unlock()

	t.sched.Start()
	return nil
}

// Pause freezes musical time. Pausing a stopped trainer does nothing.
func (t *Trainer) Pause() {
	t.sched.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.clk.Running() {
		return
	}
	t.clk.Pause()
	t.silence()
	t.metrics.SetPlaybackState(metrics.StatePaused)
	t.log.Info(context.Background(), "playback paused", logger.Float64("now", t.clk.Now()))
}

// Resume continues a paused session without a jump in musical time.
func (t *Trainer) Resume() {
	t.mu.Lock()
	if !t.clk.Paused() {
		t.mu.Unlock()
		return
	}
	t.clk.Resume()
	t.metrics.SetPlaybackState(metrics.StatePlaying)
	t.log.Info(context.Background(), "playback resumed", logger.Float64("now", t.clk.Now()))
	t.mu.Unlock()

	t.sched.Start()
}

// TogglePause pauses a running session and resumes a paused one.
func (t *Trainer) TogglePause() {
	t.mu.Lock()
	paused := t.clk.Paused()
	t.mu.Unlock()
	if paused {
		t.Resume()
		return
	}
	t.Pause()
}

// Stop ends the session: pending ticks are cancelled before any state
// changes, every note returns to pending and the tally is cleared.
func (t *Trainer) Stop() {
	t.sched.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	active := t.clk.Running() || t.clk.Paused()
	t.clk.Stop()
	t.silence()
	if t.engine != nil {
		t.engine.Reset(0, t.sc.Duration)
		t.engine.ResetTally()
	}
	t.metrics.SetPlaybackState(metrics.StateStopped)
	if active {
		t.log.Info(context.Background(), "playback stopped", logger.String("session", t.session))
		t.sendEvent(t.eventLocked(EventPlaybackStopped))
	}
}

// Tick advances judgment to the current musical time. The scheduler calls
// it; hosts may call it directly. It returns false once the session is over.
func (t *Trainer) Tick() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.engine == nil || !t.clk.Running() {
		return false
	}
	started := time.Now()
	ended := t.engine.Tick(t.clk.Now())
	t.metrics.ObserveTick(time.Since(started))
	if !ended {
		return true
	}

	t.sendEvent(t.eventLocked(EventSectionEnded))
	if t.sections.End() == section.Repeat {
		t.metrics.RecordSectionEntered()
		t.log.Info(context.Background(), "section repeated",
			logger.Int("section", t.sections.Index()),
			logger.Int("pass", t.sections.Pass()))
		t.sendEvent(t.eventLocked(EventSectionEntered))
		return true
	}

	t.finished = true
	t.clk.Stop()
	t.silence()
	tally := t.engine.Tally()
	t.metrics.RecordRepeatExhausted()
	t.metrics.SetPlaybackState(metrics.StateStopped)
	t.log.Info(context.Background(), "session finished",
		logger.String("session", t.session),
		logger.Int("correct", tally.Correct),
		logger.Int("missed", tally.Missed),
		logger.Float64("accuracy", tally.Accuracy()))
	t.sendEvent(t.eventLocked(EventRepeatExhausted))
	return false
}

// PressKey applies a live key press immediately at the current musical time.
func (t *Trainer) PressKey(pitch int) PressResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.engine == nil {
		return PressResult{Outcome: judge.NoMatch, Index: -1}
	}
	if !t.clk.Running() {
		t.engine.Hold(pitch)
		return PressResult{Outcome: judge.NoMatch, Index: -1}
	}
	res := t.engine.Press(pitch, t.clk.Now())
	t.metrics.RecordPress(res.Outcome.String())
	t.log.Debug(context.Background(), "key pressed",
		logger.Int("pitch", pitch),
		logger.String("outcome", res.Outcome.String()),
		logger.Float64("offset", res.Offset))
	return res
}

func (t *Trainer) ReleaseKey(pitch int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.engine != nil {
		t.engine.Release(pitch)
	}
}

// ReleaseAll drops every held key, e.g. when the input device goes away.
func (t *Trainer) ReleaseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.engine != nil {
		t.engine.ReleaseAll()
	}
}

// SetHandEnabled toggles judgment and tones for one hand. Notes of a disabled
// hand are ignored rather than missed.
func (t *Trainer) SetHandEnabled(hand score.Hand, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if hand == score.HandLeft {
		t.hands.Left = enabled
	} else {
		t.hands.Right = enabled
	}
	if t.engine != nil {
		t.engine.SetHands(t.hands)
	}
}

func (t *Trainer) HandEnabled(hand score.Hand) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hands.Enabled(hand)
}

// SetSpeed sets the tempo multiplier. A running session picks it up at the
// next anchor (play, resume, section entry or repeat).
func (t *Trainer) SetSpeed(speed float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clk.SetSpeed(speed)
}

func (t *Trainer) Speed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clk.Speed()
}

// SelectSection chooses a measure group, or section.WholeScore. A running
// or paused session restarts at the new section.
func (t *Trainer) SelectSection(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sections == nil {
		return ErrNoScore
	}
	if err := t.sections.Select(index); err != nil {
		return err
	}
	if !t.clk.Running() && !t.clk.Paused() {
		return nil
	}
	t.engine.ResetTally()
	t.sections.Begin()
	t.metrics.RecordSectionEntered()
	t.metrics.SetPlaybackState(metrics.StatePlaying)
	t.sendEvent(t.eventLocked(EventSectionEntered))
	// Start only spawns the timer, it never waits on a tick.
	t.sched.Start()
	return nil
}

func (t *Trainer) SetRepeatCount(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 0 {
		n = 0
	}
	t.cfg.repeatCount = n
	if t.sections != nil {
		t.sections.SetRepeatCount(n)
	}
}

// SetVisible switches the scheduler between the frame path and the fallback
// timer.
func (t *Trainer) SetVisible(v bool) { t.sched.SetVisible(v) }

// Frame is called once per rendered frame while visible.
func (t *Trainer) Frame() {
	t.flushEvents()
	t.sched.Frame()
}

// Now returns the current musical time.
func (t *Trainer) Now() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clk.Now()
}

// Notes returns a copy of the note stream with live judgment state.
func (t *Trainer) Notes() []Note {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sc == nil {
		return nil
	}
	out := make([]Note, len(t.sc.Notes))
	copy(out, t.sc.Notes)
	return out
}

func (t *Trainer) Tally() Tally {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.engine == nil {
		return Tally{}
	}
	return t.engine.Tally()
}

func (t *Trainer) Metadata() (Metadata, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sc == nil {
		return Metadata{}, ErrNoScore
	}
	return Metadata{
		BPM:               t.sc.BPM,
		Numerator:         t.sc.Numerator,
		Denominator:       t.sc.Denominator,
		MeasureBoundaries: append([]float64(nil), t.sc.MeasureBoundaries...),
		Duration:          t.sc.Duration,
		LeadIn:            t.sc.LeadIn,
		NoteCount:         len(t.sc.Notes),
	}, nil
}

// Sections lists the measure groups of the loaded score.
func (t *Trainer) Sections() []section.Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sc == nil {
		return nil
	}
	return section.List(t.sc, t.cfg.section)
}

// Snapshot returns the session state under one lock.
func (t *Trainer) Snapshot() Snapshot {
	t.flushEvents()
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{
		SessionID:   t.session,
		Loaded:      t.sc != nil,
		Playing:     t.clk.Running(),
		Paused:      t.clk.Paused(),
		Now:         t.clk.Now(),
		Speed:       t.clk.Speed(),
		Section:     section.WholeScore,
		RepeatCount: t.cfg.repeatCount,
		Held:        map[int]string{},
	}
	if t.engine != nil {
		s.Tally = t.engine.Tally()
		s.Accuracy = s.Tally.Accuracy()
		s.Held = t.engine.Held()
		s.Section = t.sections.Index()
		s.Pass = t.sections.Pass()
		s.RepeatCount = t.sections.RepeatCount()
	}
	return s
}

// Finished reports whether the last session ran out of repeats.
func (t *Trainer) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

func (t *Trainer) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// Watch returns a channel that receives lifecycle and judgment events.
//
// The channel is buffered (cap 64). Note judgments are dropped once fewer
// than 16 slots are free. Lifecycle events are never dropped: when the channel
// is full they wait in order and are delivered on the next event, Frame or
// Snapshot. Only the most recent Watch() channel receives events.
func (t *Trainer) Watch() <-chan Event {
	ch := make(chan Event, eventBuffer)
	t.eventChMu.Lock()
	t.eventCh = ch
	t.backlog = nil
	t.eventChMu.Unlock()
	return ch
}

func (t *Trainer) onJudged(j judge.Judgement) {
	t.metrics.RecordJudgment(j.State.String(), j.Offset)
	t.log.Debug(context.Background(), "note judged",
		logger.Int("index", j.Index),
		logger.Int("pitch", j.Pitch),
		logger.String("state", j.State.String()),
		logger.Float64("offset", j.Offset))
	ev := t.eventLocked(EventNoteJudged)
	ev.Note, ev.Pitch, ev.Hand, ev.State, ev.Offset = j.Index, j.Pitch, j.Hand, j.State, j.Offset
	t.sendEvent(ev)
}

func (t *Trainer) eventLocked(kind EventKind) Event {
	ev := Event{Kind: kind, SessionID: t.session, Section: section.WholeScore}
	if t.engine != nil {
		ev.Tally = t.engine.Tally()
		ev.Section = t.sections.Index()
		ev.Pass = t.sections.Pass()
	}
	return ev
}

// sendEvent never blocks. eventChMu makes it the only sender, so a send
// after a length check cannot block either.
func (t *Trainer) sendEvent(ev Event) {
	t.eventChMu.Lock()
	defer t.eventChMu.Unlock()
	ch := t.eventCh
	if ch == nil {
		return
	}
	t.flushLocked(ch)
	if ev.Kind == EventNoteJudged {
		if len(t.backlog) == 0 && len(ch) < cap(ch)-lifecycleReserve {
			ch <- ev
		}
		return
	}
	if len(t.backlog) == 0 && len(ch) < cap(ch) {
		ch <- ev
		return
	}
	t.backlog = append(t.backlog, ev)
}

func (t *Trainer) flushEvents() {
	t.eventChMu.Lock()
	defer t.eventChMu.Unlock()
	if t.eventCh != nil {
		t.flushLocked(t.eventCh)
	}
}

func (t *Trainer) flushLocked(ch chan Event) {
	n := 0
	for n < len(t.backlog) && len(ch) < cap(ch) {
		ch <- t.backlog[n]
		n++
	}
	t.backlog = t.backlog[n:]
}

func (t *Trainer) silence() {
	if s, ok := t.cfg.sink.(interface{ Silence() }); ok {
		s.Silence()
	}
}
