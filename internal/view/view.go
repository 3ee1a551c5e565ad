// internal/view/view.go
package view

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/sungw5/lcfs/internal/status"
)

// Title is drawn centered on the first line.
const Title = " lcfs block occupancy "

// Lines lays the snapshot out top to bottom: summary, legend, then one
// header plus one glyph row per sector for every device.
func Lines(snap status.Snapshot) []string {
	var out []string
	out = append(out, status.Summary(snap)...)
	out = append(out, status.Legend, "")

	for _, d := range snap.Devices {
		out = append(out, fmt.Sprintf("device %d (%d x %d)", d.ID, d.Sectors, d.Blocks))
		for sec, row := range d.Rows {
			out = append(out, fmt.Sprintf("%4d %s", sec, row))
		}
	}
	return out
}

// Draw clears s and renders the snapshot. Lines past the screen edge are cut.
func Draw(s tcell.Screen, snap status.Snapshot) {
	s.Clear()
	w, h := s.Size()

	y := 0
	putStr(s, 0, y, strings.Repeat("═", w))
	putStr(s, max((w-len(Title))/2, 0), y, Title)
	y++

	for _, line := range Lines(snap) {
		if y >= h-1 {
			break
		}
		putStr(s, 0, y, line)
		y++
	}

	if h > 1 {
		putStr(s, 0, h-1, "q / Esc to quit")
	}
	s.Show()
}

// Run draws snap on s and blocks until q, Esc or Ctrl-C.
// s must already be initialized.
func Run(s tcell.Screen, snap status.Snapshot) {
	Draw(s, snap)

	for {
		switch ev := s.PollEvent().(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyCtrlC, ev.Key() == tcell.KeyEscape:
				return
			case ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
				return
			}
		case *tcell.EventResize:
			s.Sync()
			Draw(s, snap)
		case nil:
			return
		}
	}
}

// Show opens the terminal, runs the viewer and restores the terminal.
func Show(snap status.Snapshot) error {
	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	defer s.Fini()

	s.DisableMouse()
	Run(s, snap)
	return nil
}

func putStr(s tcell.Screen, x, y int, str string) {
	w, _ := s.Size()
	for i, r := range []rune(str) {
		if x+i >= w {
			break
		}
		s.SetContent(x+i, y, r, nil, tcell.StyleDefault)
	}
}
