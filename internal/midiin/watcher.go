// Package midiin keeps a live MIDI keyboard connected and forwards its note
// events. Devices may come and go at any time; the watcher rescans on an
// interval and reconnects to the best candidate.
package midiin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cbegin/pianofall-go/pkg/logger"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

const DefaultRescanInterval = time.Second

// Config selects which inputs are eligible.
type Config struct {
	// Preferred patterns are tried in order; the first match wins.
	Preferred []string
	// Excluded patterns hide virtual and system ports.
	Excluded       []string
	RescanInterval time.Duration
}

// DefaultConfig ignores the usual loopback ports.
func DefaultConfig() Config {
	return Config{
		Excluded:       []string{"Midi Through", "Through Port", "Dummy"},
		RescanInterval: DefaultRescanInterval,
	}
}

// Event is a decoded key transition.
type Event struct {
	On       bool
	Channel  int
	Pitch    int
	Velocity float64
}

// Options carries the watcher callbacks. OnNote runs on the driver's listener
// goroutine; OnConnect and OnDisconnect run on their own goroutines.
type Options struct {
	OnNote       func(Event)
	OnConnect    func(device string)
	OnDisconnect func(device string)
}

// Watcher monitors available inputs and maintains a connection to one of
// them.
type Watcher struct {
	mu           sync.Mutex
	drv          drivers.Driver
	cfg          Config
	opts         Options
	inPort       drivers.In
	stopFn       func()
	connected    bool
	selectedName string
	lastRescanAt time.Time
	log          logger.Logger
}

// New wraps drv. The watcher owns the driver and closes it in Close.
func New(drv drivers.Driver, cfg Config, opts Options) *Watcher {
	if cfg.RescanInterval <= 0 {
		cfg.RescanInterval = DefaultRescanInterval
	}
	return &Watcher{
		drv:  drv,
		cfg:  cfg,
		opts: opts,
		log:  logger.Named("midiin"),
	}
}

// Device reports the connected input, if any.
func (w *Watcher) Device() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedName, w.connected
}

// Close shuts down the active connection and the driver.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeConn()
	if err := w.drv.Close(); err != nil {
		w.log.Warn(context.Background(), "driver close failed", logger.Error(err))
	}
}

// Run rescans until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.RescanInterval)
	defer ticker.Stop()
	w.Tick(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.Tick(now)
		}
	}
}

// Tick scans for devices at most once per rescan interval, connects to a
// candidate when idle and detects a vanished device.
func (w *Watcher) Tick(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.lastRescanAt.IsZero() && now.Sub(w.lastRescanAt) < w.cfg.RescanInterval {
		return
	}
	w.lastRescanAt = now

	inputs := w.listInputs()

	if w.connected {
		for _, n := range inputs {
			if n == w.selectedName {
				return
			}
		}
		w.log.Warn(context.Background(), "device disappeared", logger.String("device", w.selectedName))
		w.dropLocked()
		return
	}

	cand, ok := pickPreferred(inputs, w.cfg.Preferred)
	if !ok {
		return
	}
	if err := w.openByName(cand); err != nil {
		w.log.Error(context.Background(), "connect failed", logger.String("device", cand), logger.Error(err))
	}
}

func (w *Watcher) listInputs() []string {
	ins, err := w.drv.Ins()
	if err != nil {
		w.log.Error(context.Background(), "list inputs failed", logger.Error(err))
		return nil
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	kept := filterInputs(names, w.cfg.Excluded)
	w.log.Debug(context.Background(), "inputs found",
		logger.Int("count", len(kept)),
		logger.String("devices", strings.Join(kept, ", ")))
	return kept
}

// dropLocked closes the connection and schedules an immediate rescan.
func (w *Watcher) dropLocked() {
	name := w.selectedName
	w.closeConn()
	w.lastRescanAt = time.Time{}
	if w.opts.OnDisconnect != nil {
		go w.opts.OnDisconnect(name)
	}
}

func (w *Watcher) closeConn() {
	if w.stopFn != nil {
		w.stopFn()
		w.stopFn = nil
	}
	if w.inPort != nil {
		_ = w.inPort.Close()
		w.inPort = nil
	}
	w.connected = false
	w.selectedName = ""
}

func (w *Watcher) openByName(name string) error {
	ins, err := w.drv.Ins()
	if err != nil {
		return err
	}
	var found drivers.In
	for _, in := range ins {
		if in.String() == name {
			found = in
			break
		}
	}
	if found == nil {
		return fmt.Errorf("input %q not found", name)
	}
	if err := found.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}

	stop, err := midi.ListenTo(found, func(msg midi.Message, _ int32) {
		ev, ok := Decode(msg)
		if !ok {
			return
		}
		if w.opts.OnNote != nil {
			w.opts.OnNote(ev)
		}
	}, midi.HandleError(func(listenErr error) {
		w.log.Warn(context.Background(), "listener error", logger.String("device", name), logger.Error(listenErr))
		// The listener goroutine must not close its own port.
		go func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if w.connected && w.selectedName == name {
				w.dropLocked()
			}
		}()
	}))
	if err != nil {
		_ = found.Close()
		return fmt.Errorf("listen %q: %w", name, err)
	}

	w.inPort = found
	w.stopFn = stop
	w.connected = true
	w.selectedName = name
	w.log.Info(context.Background(), "connected", logger.String("device", name))
	if w.opts.OnConnect != nil {
		go w.opts.OnConnect(name)
	}
	return nil
}

// Decode extracts a key transition. A note-on with zero velocity is a
// release.
func Decode(msg midi.Message) (Event, bool) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return Event{On: true, Channel: int(ch), Pitch: int(key), Velocity: float64(vel) / 127}, true
	case msg.GetNoteEnd(&ch, &key):
		return Event{Channel: int(ch), Pitch: int(key)}, true
	}
	return Event{}, false
}

func filterInputs(names, excluded []string) []string {
	out := make([]string, 0, len(names))
outer:
	for _, name := range names {
		for _, pat := range excluded {
			if containsCI(name, pat) {
				continue outer
			}
		}
		out = append(out, name)
	}
	return out
}

// pickPreferred falls back to the only input when none match a pattern.
func pickPreferred(inputs, preferred []string) (string, bool) {
	for _, pat := range preferred {
		for _, name := range inputs {
			if containsCI(name, pat) {
				return name, true
			}
		}
	}
	if len(inputs) == 1 {
		return inputs[0], true
	}
	return "", false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
