package scheduler

import (
	"sync"
	"time"
)

// DefaultHz is the fallback tick rate used while no frames are delivered.
const DefaultHz = 30

// TickFunc performs one engine step. Returning false stops the scheduler;
// a tick must never call Stop itself.
type TickFunc func() bool

// Scheduler drives a TickFunc from two sources: host frame callbacks while
// the view is visible, and a fixed-rate timer otherwise. At most one tick
// runs at a time and no tick starts after Stop returns.
type Scheduler struct {
	tick     TickFunc
	interval time.Duration

	mu      sync.Mutex
	running bool
	visible bool
	stop    chan struct{}
	done    chan struct{}

	tickMu sync.Mutex
}

type Option func(*Scheduler)

// WithHz sets the fallback timer rate.
func WithHz(hz int) Option {
	return func(s *Scheduler) {
		if hz > 0 {
			s.interval = time.Second / time.Duration(hz)
		}
	}
}

// WithVisible sets the initial visibility.
func WithVisible(v bool) Option {
	return func(s *Scheduler) { s.visible = v }
}

func New(tick TickFunc, opts ...Option) *Scheduler {
	s := &Scheduler{tick: tick, interval: time.Second / DefaultHz}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins scheduling. It is a no-op if already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	if !s.visible {
		s.startTimerLocked()
	}
}

// Stop cancels scheduling and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.running = false
	done := s.stopTimerLocked()
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	// Wait out a frame-path tick that passed its running check.
	s.tickMu.Lock()
	s.tickMu.Unlock()
}

// SetVisible switches between the frame path and the fallback timer.
func (s *Scheduler) SetVisible(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visible == v {
		return
	}
	s.visible = v
	if !s.running {
		return
	}
	if v {
		s.stopTimerLocked()
	} else {
		s.startTimerLocked()
	}
}

// Frame is called from the host's per-frame callback. It ticks only while
// running and visible.
func (s *Scheduler) Frame() {
	s.run(true)
}

func (s *Scheduler) startTimerLocked() {
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
}

func (s *Scheduler) stopTimerLocked() chan struct{} {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	done := s.done
	s.stop, s.done = nil, nil
	return done
}

func (s *Scheduler) loop(stop, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			select {
			case <-stop:
				return
			default:
			}
			s.run(false)
		}
	}
}

// run executes one tick from the given source. A tick already in flight
// causes this one to be dropped.
func (s *Scheduler) run(frame bool) {
	if !s.tickMu.TryLock() {
		return
	}
	defer s.tickMu.Unlock()

	s.mu.Lock()
	ok := s.running && s.visible == frame
	s.mu.Unlock()
	if !ok {
		return
	}
	if s.tick() {
		return
	}
	s.mu.Lock()
	s.running = false
	s.stopTimerLocked()
	s.mu.Unlock()
}
