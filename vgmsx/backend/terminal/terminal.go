// Package terminal implements a tcell playback surface: a status header,
// a per-channel activity table, a log pane and single-key controls.
package terminal

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/valerio/go-vgmsx/vgmsx/backend"
	"github.com/valerio/go-vgmsx/vgmsx/backend/terminal/render"
)

const (
	minTermWidth  = 60
	minTermHeight = 16

	logPaneLines = 6
)

// Backend implements backend.Backend on a tcell screen.
type Backend struct {
	screen  tcell.Screen
	config  backend.Config
	running bool

	logBuffer *render.LogBuffer
	prevLog   *slog.Logger

	// events receives tcell events from the polling goroutine; Update
	// drains it without blocking.
	events chan tcell.Event
	quit   chan struct{}
}

// New creates a terminal backend.
func New() *Backend {
	return &Backend{}
}

// Init takes over the terminal and reroutes slog into the log pane.
func (t *Backend) Init(config backend.Config) error {
	t.config = config

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %v", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %v", err)
	}

	t.screen = screen
	t.running = true
	t.events = make(chan tcell.Event, 32)
	t.quit = make(chan struct{})

	// While the UI owns the screen, plain slog output would corrupt it;
	// capture it into the pane buffer instead.
	t.logBuffer = render.NewLogBuffer(100)
	t.prevLog = slog.Default()
	handler := render.NewLogBufferHandler(t.logBuffer, slog.LevelDebug)
	slog.SetDefault(slog.New(handler))
	slog.Info("terminal backend initialized", "title", config.Title)

	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.HideCursor()
	t.screen.Clear()

	go t.pollEvents()
	go t.handleSignals()

	return nil
}

// Update draws the status and translates any pending key events.
func (t *Backend) Update(status backend.Status) ([]backend.Action, error) {
	if !t.running {
		return []backend.Action{backend.Quit}, nil
	}

	actions := t.drainEvents()
	t.draw(status)
	return actions, nil
}

// Cleanup restores the terminal and the previous logger.
func (t *Backend) Cleanup() error {
	if !t.running {
		return nil
	}
	t.running = false
	close(t.quit)
	t.screen.Fini()
	if t.prevLog != nil {
		slog.SetDefault(t.prevLog)
	}
	return nil
}

func (t *Backend) pollEvents() {
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case t.events <- ev:
		case <-t.quit:
			return
		}
	}
}

func (t *Backend) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		t.running = false
	case <-t.quit:
	}
}

func (t *Backend) drainEvents() []backend.Action {
	var actions []backend.Action
	for {
		select {
		case ev := <-t.events:
			switch e := ev.(type) {
			case *tcell.EventKey:
				if act, ok := t.mapKey(e); ok {
					actions = append(actions, act)
				}
			case *tcell.EventResize:
				t.screen.Sync()
			}
		default:
			return actions
		}
	}
}

func (t *Backend) mapKey(e *tcell.EventKey) (backend.Action, bool) {
	switch e.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return backend.Quit, true
	case tcell.KeyRune:
		switch e.Rune() {
		case 'q', 'Q':
			return backend.Quit, true
		case ' ':
			return backend.PauseToggle, true
		case '1':
			return backend.MutePSGA, true
		case '2':
			return backend.MutePSGB, true
		case '3':
			return backend.MutePSGC, true
		case '4':
			return backend.MuteSCC1, true
		case '5':
			return backend.MuteSCC2, true
		case '6':
			return backend.MuteSCC3, true
		case '7':
			return backend.MuteSCC4, true
		case '8':
			return backend.MuteSCC5, true
		}
	}
	return 0, false
}

func (t *Backend) draw(status backend.Status) {
	t.screen.Clear()
	width, height := t.screen.Size()

	if width < minTermWidth || height < minTermHeight {
		t.drawText(0, 0, tcell.StyleDefault, fmt.Sprintf("terminal too small (need %dx%d)", minTermWidth, minTermHeight))
		t.screen.Show()
		return
	}

	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	dimStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)

	t.drawText(1, 0, titleStyle, status.Title)

	state := "playing"
	if status.Paused {
		state = "paused"
	} else if !status.Playing {
		state = "finished"
	}
	elapsed := int(status.Elapsed) / status.SampleRate
	line := fmt.Sprintf("%02d:%02d  loop %d  %s", elapsed/60, elapsed%60, status.LoopCount, state)
	t.drawText(1, 1, tcell.StyleDefault, line)

	y := 3
	if status.UsesPSG {
		t.drawText(1, y, dimStyle, "PSG")
		y++
		for ch := 0; ch < 3; ch++ {
			t.drawChannel(y, fmt.Sprintf("[%d] tone %c", ch+1, 'A'+ch), status.PSGFreq[ch], status.PSGMuted[ch])
			y++
		}
	}
	if status.UsesSCC {
		t.drawText(1, y, dimStyle, "SCC")
		y++
		for ch := 0; ch < 5; ch++ {
			t.drawChannel(y, fmt.Sprintf("[%d] voice %d", ch+4, ch+1), status.SCCFreq[ch], status.SCCMuted[ch])
			y++
		}
	}

	if t.config.ShowLogs {
		logStart := height - logPaneLines - 1
		t.drawText(1, logStart, dimStyle, "── log ──")
		entries := t.logBuffer.Recent(logPaneLines)
		for i, entry := range entries {
			t.drawText(1, logStart+1+i, dimStyle, render.FormatLogEntry(entry))
		}
	}

	t.drawText(1, height-1, dimStyle, "q quit  space pause  1-3 PSG mute  4-8 SCC mute")
	t.screen.Show()
}

// drawChannel renders one channel row: label, divider readout and a bar
// whose length tracks pitch (shorter divider = higher note = longer bar).
func (t *Backend) drawChannel(y int, label string, freq uint32, muted bool) {
	style := tcell.StyleDefault
	if muted {
		style = style.Foreground(tcell.ColorGray)
	}

	text := fmt.Sprintf("%-12s %4d ", label, freq)
	if muted {
		text += "(muted)"
	} else if freq > 0 {
		barLen := 24 - int(freq)/180
		if barLen < 1 {
			barLen = 1
		}
		for i := 0; i < barLen; i++ {
			text += "▮"
		}
	}
	t.drawText(1, y, style, text)
}

func (t *Backend) drawText(x, y int, style tcell.Style, text string) {
	for i, ch := range []rune(text) {
		t.screen.SetContent(x+i, y, ch, nil, style)
	}
}
