package tui

import (
	"fmt"
	"strings"

	"github.com/1broseidon/wlpresent/internal/config"
	"github.com/1broseidon/wlpresent/internal/present"
)

// Window sizes the play preview is drawn against.
var previewWindows = []struct{ w, h int32 }{
	{1920, 1080},
	{1080, 1920},
}

func previewPlay(cfg *config.Config, width, height int) string {
	bw, bh := int32(cfg.Play.Width), int32(cfg.Play.Height)
	panelW := (width - 2) / len(previewWindows)
	if panelW < 10 {
		return ""
	}

	panels := make([][]string, len(previewWindows))
	for i, win := range previewWindows {
		vw, vh, ok := present.FitDestination(win.w, win.h, bw, bh)
		caption := fmt.Sprintf("%dx%d window", win.w, win.h)
		if ok {
			caption += fmt.Sprintf(" -> %dx%d", vw, vh)
		}
		panels[i] = append([]string{caption}, renderLetterbox(win.w, win.h, vw, vh, panelW, height-1)...)
	}

	var sb strings.Builder
	for row := 0; row < height; row++ {
		for i, p := range panels {
			line := ""
			if row < len(p) {
				line = p[row]
			}
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(padRunes(line, panelW))
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderLetterbox draws a winW x winH window scaled into at most width x
// height cells, with the vw x vh destination shaded from the top-left corner.
// Cells are treated as twice as tall as they are wide.
func renderLetterbox(winW, winH, vw, vh int32, width, height int) []string {
	if width < 4 || height < 3 || winW <= 0 || winH <= 0 {
		return nil
	}
	cw, ch := width, int(int64(width)*int64(winH)/int64(winW)/2)
	if ch > height {
		ch = height
		cw = int(int64(height) * 2 * int64(winW) / int64(winH))
	}
	cw, ch = max(cw, 4), max(ch, 3)

	canvas := make([][]rune, ch)
	for y := range canvas {
		canvas[y] = []rune(strings.Repeat(" ", cw))
	}

	// Interior cells covered by the destination.
	innerW, innerH := cw-2, ch-2
	fillW := int(int64(vw) * int64(innerW) / int64(winW))
	fillH := int(int64(vh) * int64(innerH) / int64(winH))
	for y := 0; y < fillH; y++ {
		for x := 0; x < fillW; x++ {
			canvas[y+1][x+1] = '░'
		}
	}

	for x := 0; x < cw; x++ {
		canvas[0][x] = '─'
		canvas[ch-1][x] = '─'
	}
	for y := 0; y < ch; y++ {
		canvas[y][0] = '│'
		canvas[y][cw-1] = '│'
	}
	canvas[0][0], canvas[0][cw-1] = '┌', '┐'
	canvas[ch-1][0], canvas[ch-1][cw-1] = '└', '┘'

	lines := make([]string, ch)
	for i, row := range canvas {
		lines[i] = string(row)
	}
	return lines
}

func padRunes(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return string([]rune(s)[:width])
	}
	return s + strings.Repeat(" ", width-n)
}
