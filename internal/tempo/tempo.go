package tempo

import "sort"

const (
	DefaultBPM         = 120.0
	DefaultNumerator   = 4
	DefaultDenominator = 4
	// DefaultMaxMeasures bounds measure generation for degenerate time signatures.
	DefaultMaxMeasures = 2000
)

// Event is a tempo change. Seconds is filled in by NewMap by integrating the
// preceding segments.
type Event struct {
	Tick    int
	BPM     float64
	Seconds float64
}

// TimeSignature is a meter change effective from Tick until the next one.
type TimeSignature struct {
	Tick        int
	Numerator   int
	Denominator int
}

// Map resolves ticks to absolute seconds for one score.
type Map struct {
	ppq         int
	events      []Event
	signatures  []TimeSignature
	maxMeasures int
}

type Option func(*Map)

// WithMaxMeasures overrides the measure generation cap.
func WithMaxMeasures(n int) Option {
	return func(m *Map) {
		if n > 0 {
			m.maxMeasures = n
		}
	}
}

// NewMap normalizes the raw events: sorts them, drops invalid entries,
// collapses duplicate ticks (last one wins) and synthesizes a tick-0 event
// when the first one is missing. It never fails; bad input degrades to
// 120 BPM and 4/4.
func NewMap(ppq int, tempos []Event, signatures []TimeSignature, opts ...Option) *Map {
	if ppq <= 0 {
		ppq = 480
	}
	m := &Map{ppq: ppq, maxMeasures: DefaultMaxMeasures}
	for _, opt := range opts {
		opt(m)
	}
	m.events = normalizeTempos(tempos)
	m.signatures = normalizeSignatures(signatures)

	for i := 1; i < len(m.events); i++ {
		prev := m.events[i-1]
		m.events[i].Seconds = prev.Seconds + float64(m.events[i].Tick-prev.Tick)*secondsPerTick(prev.BPM, ppq)
	}
	return m
}

func normalizeTempos(in []Event) []Event {
	valid := make([]Event, 0, len(in)+1)
	for _, ev := range in {
		if ev.Tick < 0 || ev.BPM <= 0 {
			continue
		}
		valid = append(valid, Event{Tick: ev.Tick, BPM: ev.BPM})
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Tick < valid[j].Tick })

	out := valid[:0]
	for _, ev := range valid {
		if n := len(out); n > 0 && out[n-1].Tick == ev.Tick {
			out[n-1] = ev
			continue
		}
		out = append(out, ev)
	}
	// Before the first explicit change the SMF default tempo applies.
	if len(out) == 0 || out[0].Tick != 0 {
		out = append([]Event{{Tick: 0, BPM: DefaultBPM}}, out...)
	}
	return out
}

func normalizeSignatures(in []TimeSignature) []TimeSignature {
	valid := make([]TimeSignature, 0, len(in)+1)
	for _, ts := range in {
		if ts.Tick < 0 || ts.Numerator <= 0 || ts.Denominator <= 0 {
			continue
		}
		valid = append(valid, ts)
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Tick < valid[j].Tick })
	out := valid[:0]
	for _, ts := range valid {
		if n := len(out); n > 0 && out[n-1].Tick == ts.Tick {
			out[n-1] = ts
			continue
		}
		out = append(out, ts)
	}
	if len(out) == 0 || out[0].Tick > 0 {
		out = append([]TimeSignature{{Tick: 0, Numerator: DefaultNumerator, Denominator: DefaultDenominator}}, out...)
	}
	return out
}

func secondsPerTick(bpm float64, ppq int) float64 {
	return 60.0 / (bpm * float64(ppq))
}

// Events returns the normalized tempo events with precomputed seconds.
func (m *Map) Events() []Event {
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// TicksToSeconds converts an absolute tick into seconds from the start of the score.
func (m *Map) TicksToSeconds(tick int) float64 {
	i := sort.Search(len(m.events), func(i int) bool { return m.events[i].Tick > tick }) - 1
	if i < 0 {
		i = 0
	}
	ev := m.events[i]
	return ev.Seconds + float64(tick-ev.Tick)*secondsPerTick(ev.BPM, m.ppq)
}

// TicksToSecondsF is TicksToSeconds for fractional tick positions produced
// by non-integral measure lengths (e.g. 7/8 at odd resolutions).
func (m *Map) TicksToSecondsF(tick float64) float64 {
	i := sort.Search(len(m.events), func(i int) bool { return float64(m.events[i].Tick) > tick }) - 1
	if i < 0 {
		i = 0
	}
	ev := m.events[i]
	return ev.Seconds + (tick-float64(ev.Tick))*secondsPerTick(ev.BPM, m.ppq)
}

// signatureAt returns the signature active at tick.
func (m *Map) signatureAt(tick float64) TimeSignature {
	i := sort.Search(len(m.signatures), func(i int) bool { return float64(m.signatures[i].Tick) > tick }) - 1
	if i < 0 {
		i = 0
	}
	return m.signatures[i]
}

// TicksPerMeasure returns the measure length under ts in ticks.
func (m *Map) TicksPerMeasure(ts TimeSignature) float64 {
	return float64(ts.Numerator) * float64(m.ppq) * (4.0 / float64(ts.Denominator))
}

// MeasureBoundaries walks forward from tick 0 one measure at a time until the
// walk passes maxTick, returning the start of every measure in seconds plus
// the closing boundary. A score without notes yields the single boundary 0.
func (m *Map) MeasureBoundaries(maxTick int) []float64 {
	if maxTick <= 0 {
		return []float64{0}
	}
	var (
		tick  float64
		times []float64
	)
	for tick < float64(maxTick) {
		times = append(times, m.TicksToSecondsF(tick))
		tick += m.TicksPerMeasure(m.signatureAt(tick))
		if len(times) >= m.maxMeasures {
			break
		}
	}
	return append(times, m.TicksToSecondsF(tick))
}

// DetectedBPM is the first tempo of the score, for display.
func (m *Map) DetectedBPM() float64 { return m.events[0].BPM }

// DetectedTimeSignature is the first time signature of the score, for display.
func (m *Map) DetectedTimeSignature() TimeSignature { return m.signatures[0] }
