// Package headless implements a backend with no user interface, for
// playback without a terminal, automated testing and batch processing. It
// logs playback progress through slog and never produces input actions.
package headless

import (
	"log/slog"

	"github.com/valerio/go-vgmsx/vgmsx/backend"
)

// Backend implements backend.Backend without any UI.
type Backend struct {
	config      backend.Config
	updateCount int
	lastLogged  uint64
}

// logEverySamples is how much rendered audio passes between progress
// log lines (one line per second at 44.1 kHz).
const logEverySamples = 44100

func New() *Backend {
	return &Backend{}
}

func (h *Backend) Init(config backend.Config) error {
	h.config = config
	slog.Info("headless playback", "title", config.Title)
	return nil
}

// Update logs progress about once a rendered second.
func (h *Backend) Update(status backend.Status) ([]backend.Action, error) {
	h.updateCount++

	if status.Elapsed-h.lastLogged >= logEverySamples {
		h.lastLogged = status.Elapsed
		slog.Info("playback progress",
			"samples", status.Elapsed,
			"loops", status.LoopCount,
			"playing", status.Playing)
	}

	return nil, nil
}

func (h *Backend) Cleanup() error {
	return nil
}
