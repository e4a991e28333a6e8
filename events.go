package pianofall

import (
	"github.com/cbegin/pianofall-go/internal/judge"
	"github.com/cbegin/pianofall-go/internal/score"
)

const (
	eventBuffer      = 64
	lifecycleReserve = 16 // slots note judgments may not use
)

// EventKind identifies a lifecycle event delivered by Watch.
type EventKind int

const (
	EventSectionEntered EventKind = iota
	EventSectionEnded
	EventRepeatExhausted
	EventNoteJudged
	EventPlaybackStopped
)

func (k EventKind) String() string {
	switch k {
	case EventSectionEntered:
		return "section_entered"
	case EventSectionEnded:
		return "section_ended"
	case EventRepeatExhausted:
		return "repeat_exhausted"
	case EventNoteJudged:
		return "note_judged"
	case EventPlaybackStopped:
		return "playback_stopped"
	default:
		return "unknown"
	}
}

// Event carries lifecycle and judgment events from Watch().
type Event struct {
	Kind      EventKind
	SessionID string
	Section   int // section index, -1 for the whole score
	Pass      int // completed passes of the current section
	Tally     Tally

	// Set for EventNoteJudged only.
	Note   int
	Pitch  int
	Hand   score.Hand
	State  score.Judgment
	Offset float64
}

// Tally is the running correct/missed count of a practice session.
type Tally = judge.Tally

// Note is one expected key press with its live judgment state.
type Note = score.Note

// Source is the raw score header and tracks the trainer loads.
type Source = score.Source

// PressResult describes the effect of a key press.
type PressResult = judge.PressResult
