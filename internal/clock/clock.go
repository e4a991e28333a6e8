package clock

import (
	"sync"
	"time"
)

// DeviceClock is a monotonically increasing time source in seconds.
type DeviceClock interface {
	Seconds() float64
}

// Anchor binds device time to musical time:
//
//	musical(d) = Musical + (d - Device) * Speed
type Anchor struct {
	Device  float64
	Musical float64
	Speed   float64
}

// At evaluates the affine map at device time d.
func (a Anchor) At(d float64) float64 {
	return a.Musical + (d-a.Device)*a.Speed
}

// Clock turns a device clock into musical time. An anchor is never mutated
// in place; every transition replaces it.
type Clock struct {
	device  DeviceClock
	anchor  Anchor
	speed   float64 // applied at the next anchor
	running bool
	paused  bool
	frozen  float64 // musical time captured at pause
}

func New(device DeviceClock) *Clock {
	return &Clock{device: device, speed: 1, anchor: Anchor{Speed: 1}}
}

// SetSpeed records the multiplier for the next anchor. A running anchor keeps
// its multiplier.
func (c *Clock) SetSpeed(speed float64) {
	if speed <= 0 {
		return
	}
	c.speed = speed
}

func (c *Clock) Speed() float64 { return c.speed }

// Anchor rebinds musical time at the current device time and starts running.
func (c *Clock) Anchor(musical float64) {
	c.anchor = Anchor{Device: c.device.Seconds(), Musical: musical, Speed: c.speed}
	c.running = true
	c.paused = false
}

// Current returns the active anchor.
func (c *Clock) Current() Anchor { return c.anchor }

// Now returns the current musical time. A paused clock reports the value
// captured at pause; a stopped clock reports 0.
func (c *Clock) Now() float64 {
	switch {
	case c.paused:
		return c.frozen
	case !c.running:
		return 0
	default:
		return c.anchor.At(c.device.Seconds())
	}
}

// Pause freezes Now at the current instant.
func (c *Clock) Pause() {
	if !c.running {
		return
	}
	c.frozen = c.anchor.At(c.device.Seconds())
	c.running = false
	c.paused = true
}

// Resume re-anchors at the frozen value so musical time is continuous across
// the pause.
func (c *Clock) Resume() {
	if !c.paused {
		return
	}
	c.Anchor(c.frozen)
}

// Stop discards the anchor; Now reports 0 until the next Anchor.
func (c *Clock) Stop() {
	c.running = false
	c.paused = false
	c.frozen = 0
}

func (c *Clock) Running() bool { return c.running }
func (c *Clock) Paused() bool  { return c.paused }

// WallClock is a DeviceClock backed by the monotonic wall clock. It stands in
// for the audio clock when no audio device is available.
type WallClock struct {
	once  sync.Once
	start time.Time
}

func (w *WallClock) Seconds() float64 {
	w.once.Do(func() { w.start = time.Now() })
	return time.Since(w.start).Seconds()
}
