// Package config defines trainer configuration and its loading layers.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// SampleRate is the audio output rate in Hz.
	SampleRate int `koanf:"sample_rate"`

	// LeadInSeconds places the first note this far into the timeline.
	LeadInSeconds float64 `koanf:"lead_in_seconds"`
	// TailSeconds is appended after the last note end.
	TailSeconds float64 `koanf:"tail_seconds"`
	// MaxMeasures caps the measure walk.
	MaxMeasures int `koanf:"max_measures"`
	// PercussionChannel is dropped from the score; -1 keeps every channel.
	PercussionChannel int `koanf:"percussion_channel"`

	// ToleranceSeconds is the symmetric match window around a note start.
	ToleranceSeconds float64 `koanf:"tolerance_seconds"`
	// GraceSeconds lets the cursor skip a note this long after it ends.
	GraceSeconds float64 `koanf:"grace_seconds"`
	// Velocity is the tone velocity 0..1.
	Velocity float64 `koanf:"velocity"`

	// PreRollSeconds is the run-up before a selected section.
	PreRollSeconds float64 `koanf:"pre_roll_seconds"`
	// MeasureGroupSize is the number of measures per section.
	MeasureGroupSize int `koanf:"measure_group_size"`
	// RepeatCount is the number of extra passes over a section.
	RepeatCount int `koanf:"repeat_count"`

	// HiddenTickHz is the tick rate while no frames are delivered.
	HiddenTickHz int `koanf:"hidden_tick_hz"`
	// Speed is the initial tempo multiplier.
	Speed float64 `koanf:"speed"`

	LeftHand  bool `koanf:"left_hand"`
	RightHand bool `koanf:"right_hand"`

	// HTTPAddr enables the state API when non-empty, e.g. ":8090".
	HTTPAddr string `koanf:"http_addr"`

	// MIDIInPreferred lists device name patterns connected first.
	MIDIInPreferred []string `koanf:"midi_in_preferred"`
	// MIDIInExcluded lists device name patterns never connected.
	MIDIInExcluded []string `koanf:"midi_in_excluded"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		SampleRate:        48000,
		LeadInSeconds:     2.0,
		TailSeconds:       0.5,
		MaxMeasures:       2000,
		PercussionChannel: 9,
		ToleranceSeconds:  0.2,
		GraceSeconds:      0.5,
		Velocity:          0.9,
		PreRollSeconds:    3.0,
		MeasureGroupSize:  4,
		RepeatCount:       0,
		HiddenTickHz:      30,
		Speed:             1.0,
		LeftHand:          true,
		RightHand:         true,
		MIDIInPreferred:   []string{},
		MIDIInExcluded:    []string{"Midi Through", "Through Port", "Dummy"},
	}
}
