package score

type Hand int

const (
	HandRight Hand = iota
	HandLeft
)

func (h Hand) String() string {
	if h == HandLeft {
		return "left"
	}
	return "right"
}

// Judgment is the per-pass state of an expected note.
type Judgment int

const (
	Pending Judgment = iota
	Correct
	Missed
	Ignored
)

func (j Judgment) String() string {
	switch j {
	case Correct:
		return "correct"
	case Missed:
		return "missed"
	case Ignored:
		return "ignored"
	default:
		return "pending"
	}
}

// NoFinger marks a note without a finger assignment.
const NoFinger = 0

// Note is one expected key press on the score timeline. Times are in
// seconds on the score timeline (lead-in included).
type Note struct {
	Pitch    int
	Start    float64
	Duration float64
	Hand     Hand
	Finger   int
	Color    string

	State    Judgment
	Consumed bool // tone already triggered (or skipped) in the current pass
}

func (n *Note) End() float64 { return n.Start + n.Duration }

// Reset restores the pending state and the hand/finger display colour.
func (n *Note) Reset() {
	n.State = Pending
	n.Consumed = false
	n.Color = FingerColor(n.Hand, n.Finger)
}

// Score is the immutable result of resolving and building one loaded file.
// Only the per-note judgment fields of Notes change during playback.
type Score struct {
	Notes             []Note
	MeasureBoundaries []float64
	BPM               float64
	Numerator         int
	Denominator       int
	Duration          float64
	LeadIn            float64
}

// RawNote is a note as delivered by the score source, in ticks.
type RawNote struct {
	Pitch         int
	StartTick     int
	DurationTicks int
}

// RawTrack groups raw notes sharing one MIDI channel.
type RawTrack struct {
	Name    string
	Channel int
	Notes   []RawNote
}

type RawTempo struct {
	Tick int
	BPM  float64
}

type RawTimeSignature struct {
	Tick        int
	Numerator   int
	Denominator int
}

// Source is the score-loading collaborator's output: header plus tracks.
type Source struct {
	PPQ            int
	Tempos         []RawTempo
	TimeSignatures []RawTimeSignature
	Tracks         []RawTrack
}
