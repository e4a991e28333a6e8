package main

import (
	"image/color"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/hajimehoshi/ebiten/v2"
)

const clickWindow = 250 * time.Millisecond

// clickGesture tells a single click from a double click. The callback fires
// once the clicks have been quiet for the window.
type clickGesture struct {
	mu        sync.Mutex
	clicks    int
	debounced func(func())
	onSingle  func()
	onDouble  func()
}

func newClickGesture(window time.Duration, onSingle, onDouble func()) *clickGesture {
	return &clickGesture{
		debounced: debounce.New(window),
		onSingle:  onSingle,
		onDouble:  onDouble,
	}
}

func (c *clickGesture) Click() {
	c.mu.Lock()
	c.clicks++
	c.mu.Unlock()
	c.debounced(c.fire)
}

func (c *clickGesture) fire() {
	c.mu.Lock()
	n := c.clicks
	c.clicks = 0
	c.mu.Unlock()
	switch {
	case n >= 2:
		c.onDouble()
	case n == 1:
		c.onSingle()
	}
}

// Two rows of a computer keyboard laid out like one octave from middle C.
var keyPitches = map[ebiten.Key]int{
	ebiten.KeyA: 60,
	ebiten.KeyW: 61,
	ebiten.KeyS: 62,
	ebiten.KeyE: 63,
	ebiten.KeyD: 64,
	ebiten.KeyF: 65,
	ebiten.KeyT: 66,
	ebiten.KeyG: 67,
	ebiten.KeyY: 68,
	ebiten.KeyH: 69,
	ebiten.KeyU: 70,
	ebiten.KeyJ: 71,
	ebiten.KeyK: 72,
}

func pitchForKey(k ebiten.Key) (int, bool) {
	p, ok := keyPitches[k]
	return p, ok
}

// sectionForKey maps 0 to the whole score and 1..9 to the first nine
// sections.
func sectionForKey(k ebiten.Key) (int, bool) {
	if k < ebiten.KeyDigit0 || k > ebiten.KeyDigit9 {
		return 0, false
	}
	return int(k-ebiten.KeyDigit0) - 1, true
}

// parseHexColor reads "#rrggbb"; anything else is grey.
func parseHexColor(s string) color.RGBA {
	grey := color.RGBA{0x88, 0x88, 0x88, 0xff}
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return grey
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return grey
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}
}
