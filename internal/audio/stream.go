package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource fills interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to the little-endian float32 stream
// ebiten's F32 players consume.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
	frames int64
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	clear(r.buf)
	r.source.Process(r.buf)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(r.buf[i]))
	}
	r.frames += int64(frames)
	return frames * 8, nil
}

// Frames returns the number of frames handed to the device so far.
func (r *StreamReader) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *StreamReader) Close() error { return nil }

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// Output streams a SampleSource to the default device. Its playback position
// is the device clock the trainer derives musical time from.
type Output struct {
	ctx    *ebitaudio.Context
	player *ebitaudio.Player
	reader *StreamReader
}

func Open(sampleRate int, source SampleSource) (*Output, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, fmt.Errorf("open audio player: %w", err)
	}
	return &Output{ctx: ctx, player: pl, reader: reader}, nil
}

// Start begins streaming. The stream runs until Close; silence is rendered
// while no tones sound so the clock keeps advancing.
func (o *Output) Start() { o.player.Play() }

// Ready reports whether the device has started consuming samples.
func (o *Output) Ready() bool {
	return o.ctx.IsReady() && o.player.IsPlaying()
}

// Seconds returns what the listener is hearing right now.
func (o *Output) Seconds() float64 {
	return o.player.Position().Seconds()
}

func (o *Output) Close() error {
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		return err
	}
	return o.reader.Close()
}
