package main

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync/atomic"
	"time"

	pianofall "github.com/cbegin/pianofall-go"
	"github.com/cbegin/pianofall-go/internal/score"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	lowestPitch  = 21
	highestPitch = 108
	keyboardH    = 90
	lookahead    = 4.0 // seconds of score visible above the keyboard

	// Frames older than this hand ticking over to the fallback timer.
	frameStaleAfter = 250 * time.Millisecond
	frameWatchEvery = 100 * time.Millisecond
)

var errQuit = errors.New("quit")

var (
	bgColor       = color.RGBA{16, 16, 24, 255}
	whiteKeyColor = color.RGBA{235, 235, 235, 255}
	blackKeyColor = color.RGBA{30, 30, 30, 255}
	hitLineColor  = color.RGBA{255, 255, 255, 96}
)

type game struct {
	tr      *pianofall.Trainer
	events  <-chan pianofall.Event
	click   *clickGesture
	title   string
	status  string
	lastFrm atomic.Int64 // unix nanos of the last Update
	keys    []ebiten.Key
	viewW   int
	viewH   int
}

func newGame(tr *pianofall.Trainer, title string) *game {
	g := &game{
		tr:     tr,
		events: tr.Watch(),
		title:  title,
		status: "Click or press Space to play",
		viewW:  windowW,
		viewH:  windowH,
	}
	g.click = newClickGesture(clickWindow, g.togglePlay, g.stop)
	return g
}

func (g *game) Close() { g.tr.Stop() }

func (g *game) Update() error {
	g.lastFrm.Store(time.Now().UnixNano())
	g.tr.SetVisible(true)
	g.tr.Frame()

	g.pollEvents()
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.click.Click()
	}
	return g.handleKeys()
}

// watchFrames moves ticking to the fallback timer while the host stops
// delivering frames, e.g. when the window is hidden.
func (g *game) watchFrames(ctx context.Context) {
	t := time.NewTicker(frameWatchEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			last := g.lastFrm.Load()
			if last != 0 && now.Sub(time.Unix(0, last)) > frameStaleAfter {
				g.tr.SetVisible(false)
			}
		}
	}
}

func (g *game) handleKeys() error {
	g.keys = inpututil.AppendJustPressedKeys(g.keys[:0])
	for _, k := range g.keys {
		if p, ok := pitchForKey(k); ok {
			g.tr.PressKey(p)
			continue
		}
		if idx, ok := sectionForKey(k); ok {
			if err := g.tr.SelectSection(idx); err != nil {
				g.status = err.Error()
			}
			continue
		}
		switch k {
		case ebiten.KeySpace:
			g.togglePlay()
		case ebiten.KeyBackspace:
			g.stop()
		case ebiten.KeyArrowUp:
			g.tr.SetSpeed(g.tr.Speed() + 0.1)
		case ebiten.KeyArrowDown:
			if s := g.tr.Speed() - 0.1; s > 0.05 {
				g.tr.SetSpeed(s)
			}
		case ebiten.KeyF1:
			g.tr.SetHandEnabled(score.HandLeft, !g.tr.HandEnabled(score.HandLeft))
		case ebiten.KeyF2:
			g.tr.SetHandEnabled(score.HandRight, !g.tr.HandEnabled(score.HandRight))
		case ebiten.KeyEscape:
			return errQuit
		}
	}
	g.keys = inpututil.AppendJustReleasedKeys(g.keys[:0])
	for _, k := range g.keys {
		if p, ok := pitchForKey(k); ok {
			g.tr.ReleaseKey(p)
		}
	}
	return nil
}

func (g *game) togglePlay() {
	snap := g.tr.Snapshot()
	if !snap.Playing && !snap.Paused {
		if err := g.tr.Play(); err != nil {
			g.status = err.Error()
		}
		return
	}
	g.tr.TogglePause()
}

func (g *game) stop() { g.tr.Stop() }

func (g *game) pollEvents() {
	for {
		select {
		case ev := <-g.events:
			switch ev.Kind {
			case pianofall.EventSectionEntered:
				g.status = fmt.Sprintf("Pass %d", ev.Pass+1)
			case pianofall.EventRepeatExhausted:
				g.status = fmt.Sprintf("Finished: %d/%d correct (%.0f%%)",
					ev.Tally.Correct, ev.Tally.Correct+ev.Tally.Missed, ev.Tally.Accuracy()*100)
			case pianofall.EventPlaybackStopped:
				g.status = "Stopped"
			}
		default:
			return
		}
	}
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	snap := g.tr.Snapshot()
	g.drawNotes(screen, snap.Now)
	g.drawKeyboard(screen, snap.Held)

	state := "stopped"
	switch {
	case snap.Paused:
		state = "paused"
	case snap.Playing:
		state = "playing"
	}
	ebitenutil.DebugPrint(screen, fmt.Sprintf(
		"%s  [%s]  t=%.2fs  speed=%.1fx  %s  section=%d pass=%d/%d\ncorrect=%d missed=%d  %s\n"+
			"Space/click play-pause  double-click/Backspace stop  0-9 section  Up/Down speed  F1/F2 hands  Esc quit",
		g.title, state, snap.Now, snap.Speed, handLabel(g.tr), snap.Section, snap.Pass+1, snap.RepeatCount+1,
		snap.Tally.Correct, snap.Tally.Missed, g.status))
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	g.viewW, g.viewH = outsideW, outsideH
	return outsideW, outsideH
}

func (g *game) keyX(pitch int) (float64, float64) {
	w := float64(g.viewW) / float64(highestPitch-lowestPitch+1)
	return float64(pitch-lowestPitch) * w, w
}

func (g *game) drawNotes(screen *ebiten.Image, now float64) {
	hitY := float64(g.viewH - keyboardH)
	pxPerSec := hitY / lookahead
	ebitenutil.DrawRect(screen, 0, hitY-1, float64(g.viewW), 2, hitLineColor)
	for _, n := range g.tr.Notes() {
		if n.End() < now || n.Start > now+lookahead || n.Pitch < lowestPitch || n.Pitch > highestPitch {
			continue
		}
		x, w := g.keyX(n.Pitch)
		top := hitY - (n.End()-now)*pxPerSec
		h := n.Duration * pxPerSec
		ebitenutil.DrawRect(screen, x+1, top, w-2, max(h, 2), parseHexColor(n.Color))
	}
}

func (g *game) drawKeyboard(screen *ebiten.Image, held map[int]string) {
	top := float64(g.viewH - keyboardH)
	for p := lowestPitch; p <= highestPitch; p++ {
		x, w := g.keyX(p)
		c := color.Color(whiteKeyColor)
		if isBlackKey(p) {
			c = blackKeyColor
		}
		if hex, ok := held[p]; ok {
			c = parseHexColor(hex)
		}
		ebitenutil.DrawRect(screen, x, top, w-1, keyboardH, c)
	}
}

func isBlackKey(pitch int) bool {
	switch pitch % 12 {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}
