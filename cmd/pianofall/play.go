package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	pianofall "github.com/cbegin/pianofall-go"
	"github.com/cbegin/pianofall-go/internal/api"
	"github.com/cbegin/pianofall-go/internal/audio"
	"github.com/cbegin/pianofall-go/internal/config"
	"github.com/cbegin/pianofall-go/internal/midiin"
	"github.com/cbegin/pianofall-go/internal/score"
	"github.com/cbegin/pianofall-go/internal/synth"
	"github.com/cbegin/pianofall-go/pkg/logger"
	"github.com/cbegin/pianofall-go/pkg/metrics"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

const (
	windowW = 1100
	windowH = 720
)

type playFlags struct {
	speed   float64
	section int
	repeat  int
	left    bool
	right   bool
	http    string
	noMIDI  bool
}

func newPlayCmd(root *rootOptions) *cobra.Command {
	f := &playFlags{}
	cmd := &cobra.Command{
		Use:   "play <file.mid>",
		Short: "Opens the trainer window for a MIDI file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyPlayFlags(cmd, f, root.cfg)
			return play(cmd.Context(), root.cfg, args[0], f.section, !f.noMIDI)
		},
	}
	cmd.Flags().Float64Var(&f.speed, "speed", 1.0, "tempo multiplier")
	cmd.Flags().IntVar(&f.section, "section", -1, "measure group to practise (-1 = whole score)")
	cmd.Flags().IntVar(&f.repeat, "repeat", 0, "extra passes over the section")
	cmd.Flags().BoolVar(&f.left, "left", true, "judge the left hand")
	cmd.Flags().BoolVar(&f.right, "right", true, "judge the right hand")
	cmd.Flags().StringVar(&f.http, "http", "", "serve the state API on this address")
	cmd.Flags().BoolVar(&f.noMIDI, "no-midi", false, "do not connect a MIDI keyboard")
	return cmd
}

// applyPlayFlags lets explicitly set flags override loaded configuration.
func applyPlayFlags(cmd *cobra.Command, f *playFlags, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("speed") {
		cfg.Speed = f.speed
	}
	if flags.Changed("repeat") {
		cfg.RepeatCount = f.repeat
	}
	if flags.Changed("left") {
		cfg.LeftHand = f.left
	}
	if flags.Changed("right") {
		cfg.RightHand = f.right
	}
	if flags.Changed("http") {
		cfg.HTTPAddr = f.http
	}
}

func play(ctx context.Context, cfg *config.Config, path string, sectionIndex int, useMIDI bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.Named("play")
	m := metrics.NewManager()

	sinkOpts := synth.DefaultSinkOptions()
	sinkOpts.OnTone = func(int, float64) { m.RecordTone() }
	sink := synth.NewSink(cfg.SampleRate, sinkOpts)
	out, err := audio.Open(cfg.SampleRate, sink)
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	defer out.Close()
	sink.SetReadyFunc(out.Ready)

	opts := append(pianofall.OptionsFromConfig(cfg),
		pianofall.WithDeviceClock(out),
		pianofall.WithToneSink(sink),
		pianofall.WithMetrics(m),
		pianofall.WithVisible(true),
	)
	tr := pianofall.New(opts...)
	if err := tr.LoadFile(path); err != nil {
		return fmt.Errorf("load %q: %w", path, err)
	}
	if err := tr.SelectSection(sectionIndex); err != nil {
		return err
	}
	defer tr.Stop()
	out.Start()

	if useMIDI {
		if w := startMIDI(ctx, cfg, tr, m, log); w != nil {
			defer w.Close()
		}
	}

	if cfg.HTTPAddr != "" {
		srv := api.NewServer(tr, m)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
				log.Error(ctx, "state API failed", logger.Error(err))
			}
		}()
	}

	g := newGame(tr, filepath.Base(path))
	defer g.Close()
	go g.watchFrames(ctx)

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowTitle("pianofall - " + filepath.Base(path))
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

func startMIDI(ctx context.Context, cfg *config.Config, tr *pianofall.Trainer, m *metrics.Manager, log logger.Logger) *midiin.Watcher {
	drv, err := rtmididrv.New()
	if err != nil {
		log.Warn(ctx, "MIDI input unavailable; using the computer keyboard", logger.Error(err))
		return nil
	}
	mcfg := midiin.DefaultConfig()
	mcfg.Preferred = cfg.MIDIInPreferred
	mcfg.Excluded = cfg.MIDIInExcluded
	w := midiin.New(drv, mcfg, midiin.Options{
		OnNote: func(ev midiin.Event) {
			if ev.On {
				tr.PressKey(ev.Pitch)
				return
			}
			tr.ReleaseKey(ev.Pitch)
		},
		OnConnect: func(string) { m.SetMIDIConnected(true) },
		OnDisconnect: func(string) {
			m.SetMIDIConnected(false)
			tr.ReleaseAll()
		},
	})
	go w.Run(ctx)
	return w
}

// handLabel renders the practised hands for the status line.
func handLabel(tr *pianofall.Trainer) string {
	l, r := tr.HandEnabled(score.HandLeft), tr.HandEnabled(score.HandRight)
	switch {
	case l && r:
		return "both hands"
	case l:
		return "left hand"
	case r:
		return "right hand"
	default:
		return "listening"
	}
}
