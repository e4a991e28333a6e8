package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cbegin/pianofall-go/internal/config"
	"github.com/hajimehoshi/ebiten/v2"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// writeScale writes eight quarter notes in 4/4 at 120 BPM: two bars.
func writeScale(t *testing.T) string {
	t.Helper()
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(480)

	var tr smf.Track
	tr.Add(0, smf.MetaMeter(4, 4))
	tr.Add(0, smf.MetaTempo(120))
	for _, p := range []uint8{60, 62, 64, 65, 67, 69, 71, 72} {
		tr.Add(0, midi.NoteOn(5, p, 100))
		tr.Add(480, midi.NoteOff(5, p))
	}
	tr.Close(0)
	if err := sm.Add(tr); err != nil {
		t.Fatalf("add track: %v", err)
	}

	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	path := filepath.Join(t.TempDir(), "scale.mid")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestInspectCommand(t *testing.T) {
	_ = os.Unsetenv("PIANOFALL_CONFIG")
	path := writeScale(t)

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"inspect", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("inspect: %v (stderr %s)", err, errOut.String())
	}

	got := out.String()
	for _, want := range []string{
		"tempo:     120 BPM",
		"meter:     4/4",
		"notes:     8",
		"measures:  2",
		"duration:  6.50s",
		"Line 1",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("inspect output missing %q:\n%s", want, got)
		}
	}
}

func TestInspectCommandRequiresFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"inspect"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("inspect without a file should fail")
	}
}

func TestPlayFlagsOverrideConfig(t *testing.T) {
	cfg := config.New()
	f := &playFlags{}
	cmd := newPlayCmd(&rootOptions{cfg: cfg})
	if err := cmd.ParseFlags([]string{"--speed", "0.5", "--left=false", "--repeat", "2"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	f.speed, _ = cmd.Flags().GetFloat64("speed")
	f.left, _ = cmd.Flags().GetBool("left")
	f.right, _ = cmd.Flags().GetBool("right")
	f.repeat, _ = cmd.Flags().GetInt("repeat")
	applyPlayFlags(cmd, f, cfg)

	if cfg.Speed != 0.5 || cfg.LeftHand || !cfg.RightHand || cfg.RepeatCount != 2 {
		t.Fatalf("config after flags = %+v", cfg)
	}
	if cfg.HTTPAddr != "" {
		t.Fatalf("unset flag should keep config value, got %q", cfg.HTTPAddr)
	}
}

func TestClickGesture(t *testing.T) {
	var single, double atomic.Int32
	g := newClickGesture(20*time.Millisecond, func() { single.Add(1) }, func() { double.Add(1) })

	g.Click()
	time.Sleep(150 * time.Millisecond)
	if single.Load() != 1 || double.Load() != 0 {
		t.Fatalf("single click: single=%d double=%d", single.Load(), double.Load())
	}

	g.Click()
	g.Click()
	time.Sleep(150 * time.Millisecond)
	if single.Load() != 1 || double.Load() != 1 {
		t.Fatalf("double click: single=%d double=%d", single.Load(), double.Load())
	}
}

func TestKeyMapping(t *testing.T) {
	if p, ok := pitchForKey(ebiten.KeyA); !ok || p != 60 {
		t.Fatalf("KeyA = %d %v, want middle C", p, ok)
	}
	if p, ok := pitchForKey(ebiten.KeyK); !ok || p != 72 {
		t.Fatalf("KeyK = %d %v, want C5", p, ok)
	}
	if _, ok := pitchForKey(ebiten.KeySpace); ok {
		t.Fatalf("space should not be a piano key")
	}
	if idx, ok := sectionForKey(ebiten.KeyDigit0); !ok || idx != -1 {
		t.Fatalf("digit 0 = %d %v, want whole score", idx, ok)
	}
	if idx, ok := sectionForKey(ebiten.KeyDigit3); !ok || idx != 2 {
		t.Fatalf("digit 3 = %d %v, want section 2", idx, ok)
	}
	if _, ok := sectionForKey(ebiten.KeyA); ok {
		t.Fatalf("letters are not section keys")
	}
}

func TestParseHexColor(t *testing.T) {
	c := parseHexColor("#00d2ff")
	if c.R != 0x00 || c.G != 0xd2 || c.B != 0xff || c.A != 0xff {
		t.Fatalf("parseHexColor = %+v", c)
	}
	if g := parseHexColor("bogus"); g.R != 0x88 {
		t.Fatalf("invalid colour should be grey, got %+v", g)
	}
	if !isBlackKey(61) || isBlackKey(60) {
		t.Fatalf("black key detection wrong")
	}
}
