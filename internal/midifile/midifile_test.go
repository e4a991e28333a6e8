package midifile

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/cbegin/pianofall-go/internal/score"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func waltz(t *testing.T) []byte {
	t.Helper()
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(480)

	var meta smf.Track
	meta.Add(0, smf.MetaMeter(3, 4))
	meta.Add(0, smf.MetaTempo(90))
	meta.Close(0)
	if err := sm.Add(meta); err != nil {
		t.Fatalf("add meta track: %v", err)
	}

	var piano smf.Track
	piano.Add(0, midi.NoteOn(5, 60, 100))
	piano.Add(0, midi.NoteOn(0, 48, 90))
	piano.Add(480, midi.NoteOff(5, 60))
	piano.Add(480, midi.NoteOff(0, 48))
	piano.Add(0, midi.NoteOn(9, 36, 100))
	piano.Add(120, midi.NoteOff(9, 36))
	piano.Add(0, midi.NoteOn(5, 62, 100))
	piano.Close(480)
	if err := sm.Add(piano); err != nil {
		t.Fatalf("add note track: %v", err)
	}

	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	return buf.Bytes()
}

func TestReadSplitsTracksByChannel(t *testing.T) {
	src, err := Read(bytes.NewReader(waltz(t)))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if src.PPQ != 480 {
		t.Fatalf("ppq = %d", src.PPQ)
	}
	if len(src.Tempos) != 1 || math.Abs(src.Tempos[0].BPM-90) > 0.01 {
		t.Fatalf("tempos = %+v", src.Tempos)
	}
	if len(src.TimeSignatures) != 1 || src.TimeSignatures[0].Numerator != 3 || src.TimeSignatures[0].Denominator != 4 {
		t.Fatalf("time signatures = %+v", src.TimeSignatures)
	}
	if len(src.Tracks) != 3 {
		t.Fatalf("expected tracks for channels 5, 0 and 9, got %d", len(src.Tracks))
	}

	right := src.Tracks[0]
	if right.Channel != 5 || right.Name != "Track 2" || len(right.Notes) != 2 {
		t.Fatalf("channel 5 track = %+v", right)
	}
	if n := right.Notes[0]; n.Pitch != 60 || n.StartTick != 0 || n.DurationTicks != 480 {
		t.Fatalf("first note = %+v", n)
	}
	if n := right.Notes[1]; n.Pitch != 62 || n.StartTick != 1080 || n.DurationTicks < 0 {
		t.Fatalf("unterminated note = %+v", n)
	}

	left := src.Tracks[1]
	if left.Channel != 0 || len(left.Notes) != 1 || left.Notes[0].DurationTicks != 960 {
		t.Fatalf("channel 0 track = %+v", left)
	}
}

func TestReadBuildsScore(t *testing.T) {
	src, err := Read(bytes.NewReader(waltz(t)))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sc := score.NewBuilder(score.DefaultBuilderConfig()).Build(src)
	if len(sc.Notes) != 3 {
		t.Fatalf("expected percussion dropped, got %d notes", len(sc.Notes))
	}
	if sc.BPM != 90 || sc.Numerator != 3 || sc.Denominator != 4 {
		t.Fatalf("detected %v BPM %d/%d", sc.BPM, sc.Numerator, sc.Denominator)
	}
	if math.Abs(sc.Notes[0].Start-2.0) > 1e-6 {
		t.Fatalf("first note at %v", sc.Notes[0].Start)
	}
	// 480 ticks at 90 BPM
	if math.Abs(sc.Notes[0].Duration-2.0/3.0) > 1e-4 {
		t.Fatalf("duration = %v", sc.Notes[0].Duration)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("definitely not a midi file")))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile("testdata/missing.mid"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
