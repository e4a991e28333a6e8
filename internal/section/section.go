package section

import (
	"errors"
	"fmt"

	"github.com/cbegin/pianofall-go/internal/clock"
	"github.com/cbegin/pianofall-go/internal/judge"
	"github.com/cbegin/pianofall-go/internal/score"
)

// WholeScore selects the entire score instead of a measure group.
const WholeScore = -1

var ErrOutOfRange = errors.New("section index out of range")

// Bounds is the musical-time range of a section pass.
type Bounds struct {
	Start   float64
	End     float64
	PreRoll float64 // seconds of run-up before Start
}

// AnchorAt is the musical time the clock is anchored to on entry.
func (b Bounds) AnchorAt() float64 { return b.Start - b.PreRoll }

type Config struct {
	GroupSize int     // measures per section
	PreRoll   float64 // seconds
}

func DefaultConfig() Config {
	return Config{GroupSize: 4, PreRoll: 3.0}
}

// Info describes one selectable section.
type Info struct {
	Index int
	Label string
	Start float64
	End   float64
}

// Count returns the number of measure-group sections in sc.
func Count(sc *score.Score, groupSize int) int {
	if groupSize <= 0 {
		groupSize = DefaultConfig().GroupSize
	}
	measures := len(sc.MeasureBoundaries) - 1
	if measures <= 0 {
		return 0
	}
	return (measures + groupSize - 1) / groupSize
}

// ComputeBounds maps a section index onto the score timeline. WholeScore and
// any index past the last boundary cover [0, Duration] without pre-roll.
func ComputeBounds(index int, sc *score.Score, cfg Config) Bounds {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = DefaultConfig().GroupSize
	}
	b := sc.MeasureBoundaries
	first := index * cfg.GroupSize
	if index < 0 || len(b) < 2 || first >= len(b)-1 {
		return Bounds{Start: 0, End: sc.Duration}
	}
	last := first + cfg.GroupSize
	if last > len(b)-1 {
		last = len(b) - 1
	}
	return Bounds{Start: b[first], End: b[last], PreRoll: cfg.PreRoll}
}

// List enumerates the selectable sections of sc.
func List(sc *score.Score, cfg Config) []Info {
	n := Count(sc, cfg.GroupSize)
	out := make([]Info, 0, n)
	for i := 0; i < n; i++ {
		b := ComputeBounds(i, sc, cfg)
		out = append(out, Info{Index: i, Label: fmt.Sprintf("Line %d", i+1), Start: b.Start, End: b.End})
	}
	return out
}

// Decision is the outcome of a section end.
type Decision int

const (
	Repeat Decision = iota
	Exhausted
)

func (d Decision) String() string {
	if d == Repeat {
		return "repeat"
	}
	return "exhausted"
}

// Controller owns section selection and the repeat counter. Entering a
// section resets the judgment engine and re-anchors the clock.
type Controller struct {
	cfg     Config
	score   *score.Score
	engine  *judge.Engine
	clock   *clock.Clock
	index   int
	bounds  Bounds
	repeats int // target number of additional passes
	pass    int // completed passes of the current selection
}

func NewController(sc *score.Score, engine *judge.Engine, clk *clock.Clock, cfg Config) *Controller {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = DefaultConfig().GroupSize
	}
	if cfg.PreRoll < 0 {
		cfg.PreRoll = 0
	}
	return &Controller{cfg: cfg, score: sc, engine: engine, clock: clk, index: WholeScore}
}

func (c *Controller) Index() int       { return c.index }
func (c *Controller) Bounds() Bounds   { return c.bounds }
func (c *Controller) Pass() int        { return c.pass }
func (c *Controller) RepeatCount() int { return c.repeats }

// SetRepeatCount sets how many extra passes follow the first one.
func (c *Controller) SetRepeatCount(n int) {
	if n < 0 {
		n = 0
	}
	c.repeats = n
}

// Select validates index and makes it the current section without entering it.
func (c *Controller) Select(index int) error {
	if index != WholeScore && (index < 0 || index >= Count(c.score, c.cfg.GroupSize)) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}
	c.index = index
	c.bounds = ComputeBounds(index, c.score, c.cfg)
	return nil
}

// Begin starts the selected section from its first pass.
func (c *Controller) Begin() Bounds {
	c.pass = 0
	c.bounds = ComputeBounds(c.index, c.score, c.cfg)
	c.enter()
	return c.bounds
}

func (c *Controller) enter() {
	c.engine.Reset(c.bounds.Start, c.bounds.End)
	c.clock.Anchor(c.bounds.AnchorAt())
}

// End handles a section-end signal. While repeats remain the section is
// re-entered from its pre-roll.
func (c *Controller) End() Decision {
	c.pass++
	if c.pass > c.repeats {
		return Exhausted
	}
	c.enter()
	return Repeat
}
