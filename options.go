package pianofall

import (
	"github.com/cbegin/pianofall-go/internal/clock"
	"github.com/cbegin/pianofall-go/internal/config"
	"github.com/cbegin/pianofall-go/internal/judge"
	"github.com/cbegin/pianofall-go/internal/scheduler"
	"github.com/cbegin/pianofall-go/internal/score"
	"github.com/cbegin/pianofall-go/internal/section"
	"github.com/cbegin/pianofall-go/pkg/logger"
	"github.com/cbegin/pianofall-go/pkg/metrics"
)

type TrainerOption func(*trainerConfig)

type trainerConfig struct {
	device      clock.DeviceClock
	sink        judge.ToneSink
	metrics     *metrics.Manager
	log         logger.Logger
	builder     score.BuilderConfig
	judge       judge.Config
	section     section.Config
	hands       judge.HandConfig
	speed       float64
	repeatCount int
	hiddenHz    int
	visible     bool
}

func defaultTrainerConfig() trainerConfig {
	return trainerConfig{
		builder:  score.DefaultBuilderConfig(),
		judge:    judge.DefaultConfig(),
		section:  section.DefaultConfig(),
		hands:    judge.BothHands(),
		speed:    1,
		hiddenHz: scheduler.DefaultHz,
	}
}

// WithDeviceClock sets the clock musical time is derived from. The audio
// output position should be used while tones are playing; the default is the
// wall clock.
func WithDeviceClock(device clock.DeviceClock) TrainerOption {
	return func(cfg *trainerConfig) {
		cfg.device = device
	}
}

// WithToneSink sets the tone producer notes are played through.
func WithToneSink(sink judge.ToneSink) TrainerOption {
	return func(cfg *trainerConfig) {
		cfg.sink = sink
	}
}

func WithMetrics(m *metrics.Manager) TrainerOption {
	return func(cfg *trainerConfig) {
		cfg.metrics = m
	}
}

func WithLogger(l logger.Logger) TrainerOption {
	return func(cfg *trainerConfig) {
		cfg.log = l
	}
}

func WithBuilderConfig(b score.BuilderConfig) TrainerOption {
	return func(cfg *trainerConfig) {
		cfg.builder = b
	}
}

func WithJudgeConfig(j judge.Config) TrainerOption {
	return func(cfg *trainerConfig) {
		cfg.judge = j
	}
}

func WithSectionConfig(s section.Config) TrainerOption {
	return func(cfg *trainerConfig) {
		cfg.section = s
	}
}

func WithHands(left, right bool) TrainerOption {
	return func(cfg *trainerConfig) {
		cfg.hands = judge.HandConfig{Left: left, Right: right}
	}
}

func WithSpeed(speed float64) TrainerOption {
	return func(cfg *trainerConfig) {
		if speed > 0 {
			cfg.speed = speed
		}
	}
}

func WithRepeatCount(n int) TrainerOption {
	return func(cfg *trainerConfig) {
		cfg.repeatCount = n
	}
}

// WithHiddenTickHz sets the fallback tick rate used while no frames arrive.
func WithHiddenTickHz(hz int) TrainerOption {
	return func(cfg *trainerConfig) {
		cfg.hiddenHz = hz
	}
}

// WithVisible starts the trainer on the frame path; the host must then call
// Frame once per rendered frame.
func WithVisible(v bool) TrainerOption {
	return func(cfg *trainerConfig) {
		cfg.visible = v
	}
}

// OptionsFromConfig maps loaded configuration onto trainer options.
func OptionsFromConfig(c *config.Config) []TrainerOption {
	b := score.DefaultBuilderConfig()
	b.LeadIn = c.LeadInSeconds
	b.Tail = c.TailSeconds
	b.MaxMeasures = c.MaxMeasures
	b.PercussionChannel = c.PercussionChannel
	return []TrainerOption{
		WithBuilderConfig(b),
		WithJudgeConfig(judge.Config{Tolerance: c.ToleranceSeconds, Grace: c.GraceSeconds, Velocity: c.Velocity}),
		WithSectionConfig(section.Config{GroupSize: c.MeasureGroupSize, PreRoll: c.PreRollSeconds}),
		WithHands(c.LeftHand, c.RightHand),
		WithSpeed(c.Speed),
		WithRepeatCount(c.RepeatCount),
		WithHiddenTickHz(c.HiddenTickHz),
	}
}
