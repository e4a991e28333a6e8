package score

import (
	"math"
	"sort"

	"github.com/cbegin/pianofall-go/internal/tempo"
)

type BuilderConfig struct {
	LeadIn            float64 // seconds before the first note on the timeline
	Tail              float64 // seconds appended after the last note end
	PercussionChannel int     // channel dropped entirely; negative keeps all channels
	MaxMeasures       int
	Channels          map[int]Assignment
}

func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		LeadIn:            2.0,
		Tail:              0.5,
		PercussionChannel: 9,
		MaxMeasures:       tempo.DefaultMaxMeasures,
		Channels:          ChannelAssignments,
	}
}

type Builder struct {
	cfg BuilderConfig
}

func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.LeadIn < 0 {
		cfg.LeadIn = 0
	}
	if cfg.Tail < 0 {
		cfg.Tail = 0
	}
	if cfg.Channels == nil {
		cfg.Channels = ChannelAssignments
	}
	return &Builder{cfg: cfg}
}

// TempoMap resolves the source header into a tempo map.
func (b *Builder) TempoMap(src Source) *tempo.Map {
	tempos := make([]tempo.Event, 0, len(src.Tempos))
	for _, t := range src.Tempos {
		tempos = append(tempos, tempo.Event{Tick: t.Tick, BPM: t.BPM})
	}
	sigs := make([]tempo.TimeSignature, 0, len(src.TimeSignatures))
	for _, ts := range src.TimeSignatures {
		sigs = append(sigs, tempo.TimeSignature{Tick: ts.Tick, Numerator: ts.Numerator, Denominator: ts.Denominator})
	}
	return tempo.NewMap(src.PPQ, tempos, sigs, tempo.WithMaxMeasures(b.cfg.MaxMeasures))
}

type flatNote struct {
	raw     RawNote
	channel int
}

// Build flattens all pitched notes of src into a sorted timeline whose first
// note starts at the configured lead-in.
func (b *Builder) Build(src Source) *Score {
	tm := b.TempoMap(src)

	var (
		flat    []flatNote
		maxTick int
	)
	for _, tr := range src.Tracks {
		if b.cfg.PercussionChannel >= 0 && tr.Channel == b.cfg.PercussionChannel {
			continue
		}
		for _, n := range tr.Notes {
			if n.Pitch < 0 || n.Pitch > 127 || n.StartTick < 0 {
				continue
			}
			if n.DurationTicks < 0 {
				n.DurationTicks = 0
			}
			flat = append(flat, flatNote{raw: n, channel: tr.Channel})
			if end := n.StartTick + n.DurationTicks; end > maxTick {
				maxTick = end
			}
		}
	}

	first := 0.0
	if len(flat) > 0 {
		first = math.Inf(1)
		for _, f := range flat {
			if s := tm.TicksToSeconds(f.raw.StartTick); s < first {
				first = s
			}
		}
	}
	shift := b.cfg.LeadIn - first

	notes := make([]Note, 0, len(flat))
	lastEnd := 0.0
	for _, f := range flat {
		start := tm.TicksToSeconds(f.raw.StartTick)
		end := tm.TicksToSeconds(f.raw.StartTick + f.raw.DurationTicks)
		a := AssignmentFor(b.cfg.Channels, f.channel)
		n := Note{
			Pitch:    f.raw.Pitch,
			Start:    start + shift,
			Duration: end - start,
			Hand:     a.Hand,
			Finger:   a.Finger,
		}
		n.Reset()
		notes = append(notes, n)
		if e := n.End(); e > lastEnd {
			lastEnd = e
		}
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].Start < notes[j].Start })

	ts := tm.DetectedTimeSignature()
	return &Score{
		Notes:             notes,
		MeasureBoundaries: b.shiftBoundaries(tm.MeasureBoundaries(maxTick), shift),
		BPM:               math.Round(tm.DetectedBPM()),
		Numerator:         ts.Numerator,
		Denominator:       ts.Denominator,
		Duration:          lastEnd + b.cfg.Tail,
		LeadIn:            b.cfg.LeadIn,
	}
}

// shiftBoundaries moves resolver boundaries onto the score timeline and drops
// measures that lie entirely inside the trimmed leading silence.
func (b *Builder) shiftBoundaries(raw []float64, shift float64) []float64 {
	out := make([]float64, 0, len(raw)+1)
	for _, t := range raw {
		if t+shift >= b.cfg.LeadIn-1.0 {
			out = append(out, t+shift)
		}
	}
	if len(out) == 0 || out[0] > b.cfg.LeadIn+1.0 {
		out = append([]float64{b.cfg.LeadIn}, out...)
	}
	return out
}
