// Package backend defines the playback surface abstraction: a backend
// renders playback status to its output (terminal UI, logs) and turns
// platform input into player actions.
package backend

// Action is a player control request produced by a backend.
type Action int

const (
	// Quit stops playback and exits.
	Quit Action = iota
	// PauseToggle pauses or resumes playback.
	PauseToggle
	// MutePSGA..MutePSGC toggle the PSG channel mute set.
	MutePSGA
	MutePSGB
	MutePSGC
	// MuteSCC1..MuteSCC5 toggle the SCC voice mute set.
	MuteSCC1
	MuteSCC2
	MuteSCC3
	MuteSCC4
	MuteSCC5
)

// Status is a snapshot of the player state, rendered by backends on
// every update.
type Status struct {
	Title      string
	SampleRate int

	// Elapsed is the number of samples rendered so far; TotalSamples is
	// the header's declared length (0 when unknown).
	Elapsed      uint64
	TotalSamples uint32

	LoopCount uint32
	Playing   bool
	Paused    bool

	UsesPSG bool
	UsesSCC bool

	// Current period dividers and mute flags per channel, for the
	// channel activity display.
	PSGFreq  [3]uint32
	SCCFreq  [5]uint32
	PSGMuted [3]bool
	SCCMuted [5]bool
}

// Config holds backend configuration.
type Config struct {
	Title string
	// ShowLogs asks UI backends to reserve space for a log pane.
	ShowLogs bool
}

// Backend is a complete playback surface. Backends are responsible for:
// - rendering the playback status to their specific output
// - translating platform input into Actions
// - restoring the platform state on Cleanup
type Backend interface {
	// Init configures the backend. Required before calling Update.
	Init(config Config) error

	// Update renders the given status and returns any actions the user
	// triggered since the previous update.
	Update(status Status) ([]Action, error)

	// Cleanup releases resources when shutting down.
	Cleanup() error
}
