package midifile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/cbegin/pianofall-go/internal/score"
	"gitlab.com/gomidi/midi/v2/smf"
)

var (
	ErrUnsupportedTimeFormat = errors.New("unsupported time format, expected metric ticks")
	ErrMalformed             = errors.New("malformed midi file")
)

type openNote struct {
	tick int
}

type channelKey struct {
	channel uint8
	key     uint8
}

// ReadFile reads a standard MIDI file from disk.
func ReadFile(path string) (score.Source, error) {
	dat, err := os.ReadFile(path)
	if err != nil {
		return score.Source{}, fmt.Errorf("read midi file: %w", err)
	}
	return Read(bytes.NewReader(dat))
}

// Read parses a standard MIDI file into a score source.
func Read(r io.Reader) (src score.Source, err error) {
	// smf can panic on truncated input.
	defer func() {
		if rec := recover(); rec != nil {
			src = score.Source{}
			err = fmt.Errorf("%w: %v", ErrMalformed, rec)
		}
	}()
	s, err := smf.ReadFrom(r)
	if err != nil {
		return score.Source{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Decode(s)
}

// Decode flattens an SMF into per-channel tracks of tick-based notes plus the
// tempo and meter events of every track.
func Decode(s *smf.SMF) (score.Source, error) {
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return score.Source{}, ErrUnsupportedTimeFormat
	}
	src := score.Source{PPQ: int(ticks.Resolution())}
	for ti, track := range s.Tracks {
		tracks := decodeTrack(track, &src)
		for _, tr := range tracks {
			if tr.Name == "" {
				tr.Name = fmt.Sprintf("Track %d", ti+1)
			}
			src.Tracks = append(src.Tracks, tr)
		}
	}
	sort.SliceStable(src.Tempos, func(i, j int) bool { return src.Tempos[i].Tick < src.Tempos[j].Tick })
	sort.SliceStable(src.TimeSignatures, func(i, j int) bool {
		return src.TimeSignatures[i].Tick < src.TimeSignatures[j].Tick
	})
	return src, nil
}

func decodeTrack(track smf.Track, src *score.Source) []score.RawTrack {
	var (
		tick     int
		name     string
		ch, key  uint8
		vel      uint8
		bpm      float64
		num, den uint8
	)
	open := map[channelKey][]openNote{}
	byChan := map[uint8]*score.RawTrack{}
	var order []uint8
	add := func(c uint8, n score.RawNote) {
		tr, ok := byChan[c]
		if !ok {
			tr = &score.RawTrack{Channel: int(c)}
			byChan[c] = tr
			order = append(order, c)
		}
		tr.Notes = append(tr.Notes, n)
	}
	for _, ev := range track {
		tick += int(ev.Delta)
		msg := ev.Message
		switch {
		case msg.GetMetaTempo(&bpm):
			src.Tempos = append(src.Tempos, score.RawTempo{Tick: tick, BPM: bpm})
		case msg.GetMetaMeter(&num, &den):
			src.TimeSignatures = append(src.TimeSignatures, score.RawTimeSignature{Tick: tick, Numerator: int(num), Denominator: int(den)})
		case msg.GetMetaTrackName(&name):
		case msg.GetNoteStart(&ch, &key, &vel):
			k := channelKey{ch, key}
			open[k] = append(open[k], openNote{tick: tick})
		case msg.GetNoteEnd(&ch, &key):
			k := channelKey{ch, key}
			starts := open[k]
			if len(starts) == 0 {
				continue
			}
			add(ch, score.RawNote{Pitch: int(key), StartTick: starts[0].tick, DurationTicks: tick - starts[0].tick})
			open[k] = starts[1:]
		}
	}
	// Notes still sounding at the end of the track end there.
	keys := make([]channelKey, 0, len(open))
	for k := range open {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].channel != keys[j].channel {
			return keys[i].channel < keys[j].channel
		}
		return keys[i].key < keys[j].key
	})
	for _, k := range keys {
		for _, o := range open[k] {
			add(k.channel, score.RawNote{Pitch: int(k.key), StartTick: o.tick, DurationTicks: tick - o.tick})
		}
	}

	out := make([]score.RawTrack, 0, len(order))
	for _, c := range order {
		tr := byChan[c]
		tr.Name = name
		sort.SliceStable(tr.Notes, func(i, j int) bool { return tr.Notes[i].StartTick < tr.Notes[j].StartTick })
		out = append(out, *tr)
	}
	return out
}
