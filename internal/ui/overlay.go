package ui

import (
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
	a.log.Info().Msg(msg)
}

func (a *App) drawOverlay(screen *ebiten.Image) {
	y := 10
	if a.showStats {
		for _, s := range a.statsLines() {
			ebitenutil.DebugPrintAt(screen, s, 10, y)
			y += 14
		}
	}
	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.truncateText(a.toastMsg, a.maxCharsForText(10)), 10, a.outH-24)
	}
}

func (a *App) statsLines() []string {
	fs := a.presenter.Pool().Stats()
	ps := a.presenter.Stats()
	t := a.presenter.Transform()
	return []string{
		fmt.Sprintf("TPS %.1f  FPS %.1f", ebiten.ActualTPS(), ebiten.ActualFPS()),
		fmt.Sprintf("frames  pub %d  super %d  drop %d", fs.Published, fs.Superseded, fs.Dropped),
		fmt.Sprintf("display drawn %d  skipped %d  failed %d", ps.Drawn, ps.Skipped, ps.Failed),
		fmt.Sprintf("surface %dx%d  scale %.3f x %.3f", a.outW, a.outH, t.ScaleX, t.ScaleY),
		"F1: stats  F12: screenshot  Esc: quit",
	}
}

// maxCharsForText is how many debug-font glyphs fit from x to the right edge.
func (a *App) maxCharsForText(x int) int {
	const glyphW = 6
	n := (a.outW - x - 4) / glyphW
	if n < 4 {
		n = 4
	}
	return n
}

func (a *App) truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
