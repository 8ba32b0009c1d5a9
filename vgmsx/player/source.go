package player

import "github.com/valerio/go-vgmsx/vgmsx/vgm"

// Source produces the audio being played and answers the status queries
// the playback surfaces display.
type Source interface {
	// Render fills buf with the next output samples.
	Render(buf []int16)

	// IsPlaying reports whether the source has more data.
	IsPlaying() bool

	// LoopCount reports how many times playback has wrapped.
	LoopCount() uint32

	// TotalSamples is the declared length in samples, 0 when unknown.
	TotalSamples() uint32

	// Chip usage and per-channel state for the activity display.
	UsesPSG() bool
	UsesSCC() bool
	FrequencyPSG(ch int) uint32
	FrequencySCC(ch int) uint32

	// Channel mute controls.
	ToggleChannelMaskPSG(mask uint32)
	ToggleChannelMaskSCC(mask uint32)
}

var _ Source = (*vgm.Driver)(nil)
