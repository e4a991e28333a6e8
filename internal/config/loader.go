package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "PIANOFALL_"
	envFileVar = "PIANOFALL_CONFIG"
)

var listKeys = map[string]bool{
	"midi_in_preferred": true,
	"midi_in_excluded":  true,
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PIANOFALL_CONFIG is set
//  3. env (prefix PIANOFALL_)
func Load() (*Config, error) {
	return LoadFile(os.Getenv(envFileVar))
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file
// layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// PIANOFALL_TOLERANCE_SECONDS -> tolerance_seconds; list keys split on commas.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		if key == "config" {
			return "", nil
		}
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	defaults := New()
	cfg := *New()
	// Lists replace the defaults wholesale instead of merging element-wise.
	cfg.MIDIInPreferred, cfg.MIDIInExcluded = nil, nil
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if !k.Exists("midi_in_preferred") {
		cfg.MIDIInPreferred = defaults.MIDIInPreferred
	}
	if !k.Exists("midi_in_excluded") {
		cfg.MIDIInExcluded = defaults.MIDIInExcluded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample_rate must be positive", ErrInvalidConfig)
	case c.ToleranceSeconds <= 0:
		return fmt.Errorf("%w: tolerance_seconds must be positive", ErrInvalidConfig)
	case c.GraceSeconds < 0:
		return fmt.Errorf("%w: grace_seconds must not be negative", ErrInvalidConfig)
	case c.Speed <= 0:
		return fmt.Errorf("%w: speed must be positive", ErrInvalidConfig)
	case c.MeasureGroupSize <= 0:
		return fmt.Errorf("%w: measure_group_size must be positive", ErrInvalidConfig)
	case c.HiddenTickHz <= 0:
		return fmt.Errorf("%w: hidden_tick_hz must be positive", ErrInvalidConfig)
	case c.Velocity <= 0 || c.Velocity > 1:
		return fmt.Errorf("%w: velocity must be in (0, 1]", ErrInvalidConfig)
	case c.LeadInSeconds < 0 || c.TailSeconds < 0 || c.PreRollSeconds < 0:
		return fmt.Errorf("%w: lead-in, tail and pre-roll must not be negative", ErrInvalidConfig)
	case c.RepeatCount < 0:
		return fmt.Errorf("%w: repeat_count must not be negative", ErrInvalidConfig)
	}
	return nil
}
