// Package vgm implements a playback driver for VGM 1.61+ streams that
// target the MSX sound chips: the AY-3-8910/YM2149 PSG and the Konami
// SCC. The driver walks the command stream in sample-accurate time,
// dispatches register writes to the two chip models, and mixes their
// output into signed 16-bit mono PCM.
package vgm

import (
	"encoding/binary"
	"errors"

	"github.com/valerio/go-vgmsx/vgmsx/bit"
	"github.com/valerio/go-vgmsx/vgmsx/psg"
	"github.com/valerio/go-vgmsx/vgmsx/scc"
)

// Load rejection causes. A failed Load leaves the driver fully reset;
// rendering afterwards produces silence.
var (
	ErrHeaderTooShort  = errors.New("vgm: header shorter than 0x100 bytes")
	ErrBadMagic        = errors.New("vgm: missing \"Vgm \" magic")
	ErrVersion         = errors.New("vgm: version older than 1.61")
	ErrNoSupportedChip = errors.New("vgm: neither PSG nor SCC clock set")
)

// mainClock is the nominal MSX master clock fed to both chips.
const mainClock = 3579545

// Header byte offsets of the fields the driver interprets; everything
// else in the 0x100-byte header is ignored.
const (
	ofsMagic        = 0x00
	ofsVersion      = 0x08
	ofsTotalSamples = 0x18
	ofsLoopOffset   = 0x1C
	ofsLoopSamples  = 0x20
	ofsDataOffset   = 0x34
	ofsAY8910Clock  = 0x74
	ofsSCCClock     = 0x9C
)

const (
	defaultMasterVolume = 600
	defaultWaveSize     = 95

	samplesPerFrameNTSC = 735
	samplesPerFramePAL  = 882
)

// Driver owns one PSG and one SCC and plays a loaded VGM stream through
// them. It is single-threaded: the caller serialises all access.
type Driver struct {
	psg *psg.PSG
	scc *scc.SCC

	psgClock uint32
	sccClock uint32

	data       []byte
	version    uint32
	cursor     int
	loopOffset int
	wait       int
	end        bool
	loopCount  uint32

	totalSamples uint32
	loopSamples  uint32

	// masterVolume is an integer percentage applied before clipping.
	// The default is deliberately above 100: headroom gain calibrated
	// against the original engine's loudness, limited by the wave window.
	masterVolume int
	waveMax      int
	waveMin      int
}

// New creates a driver rendering at the given sample rate. A rate of 0
// or less falls back to 44100.
func New(rate int) *Driver {
	if rate <= 0 {
		rate = 44100
	}
	d := &Driver{
		psg:          psg.New(mainClock, uint32(rate)),
		scc:          scc.New(mainClock, uint32(rate)),
		masterVolume: defaultMasterVolume,
	}
	d.SetWaveSize(defaultWaveSize)
	return d
}

// SetMasterVolume sets the pre-clip gain as an integer percentage.
func (d *Driver) SetMasterVolume(volume int) {
	d.masterVolume = volume
}

// SetWaveSize sets the clipping window as a percentage of full scale.
// Values outside [0, 100] saturate.
func (d *Driver) SetWaveSize(percent int) {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	d.waveMax = 32767 * percent / 100
	d.waveMin = -32768 * percent / 100
}

// Load resets the driver and both chips, then starts an interpretation
// session over data. The buffer is borrowed, not copied: it must stay
// alive and unmodified for as long as the driver renders from it.
func (d *Driver) Load(data []byte) error {
	d.Reset()
	if len(data) < 0x100 {
		return ErrHeaderTooShort
	}
	if string(data[ofsMagic:ofsMagic+4]) != "Vgm " {
		return ErrBadMagic
	}

	d.version = binary.LittleEndian.Uint32(data[ofsVersion:])
	if d.version < 0x161 {
		return ErrVersion
	}

	d.psgClock = binary.LittleEndian.Uint32(data[ofsAY8910Clock:])
	d.sccClock = binary.LittleEndian.Uint32(data[ofsSCCClock:])
	if d.psgClock == 0 && d.sccClock == 0 {
		return ErrNoSupportedChip
	}

	d.data = data

	if d.psgClock != 0 {
		d.psg.SetVolumeMode(psg.VolumeModeAY8910)
		d.psg.SetClockDivider(true)
	}
	if d.sccClock != 0 {
		d.scc.SetType(scc.Standard)
	}

	d.totalSamples = binary.LittleEndian.Uint32(data[ofsTotalSamples:])
	d.loopSamples = binary.LittleEndian.Uint32(data[ofsLoopSamples:])

	d.cursor = int(binary.LittleEndian.Uint32(data[ofsDataOffset:])) + ofsDataOffset
	d.loopOffset = int(binary.LittleEndian.Uint32(data[ofsLoopOffset:]))
	if d.loopOffset != 0 {
		d.loopOffset += ofsLoopOffset
	}
	return nil
}

// Reset clears the interpretation state and both chip emulators. The
// loaded stream is forgotten; Render produces silence until the next
// successful Load.
func (d *Driver) Reset() {
	d.psgClock = 0
	d.sccClock = 0
	d.data = nil
	d.version = 0
	d.cursor = 0
	d.loopOffset = 0
	d.wait = 0
	d.end = false
	d.loopCount = 0
	d.totalSamples = 0
	d.loopSamples = 0
	d.psg.Reset()
	d.scc.Reset()
}

// Render fills buf with output samples. Each sample consumes one wait
// unit; whenever the wait budget is exhausted the command interpreter
// runs until it accumulates more, so register writes land between the
// exact samples the stream placed them at.
func (d *Driver) Render(buf []int16) {
	if d.data == nil {
		for i := range buf {
			buf[i] = 0
		}
		return
	}
	for i := range buf {
		if d.wait < 1 {
			d.execute()
		}
		d.wait--

		w := 0
		if d.psgClock != 0 {
			w += int(d.psg.Calc())
		}
		if d.sccClock != 0 {
			w += int(d.scc.Calc())
		}
		w = w * d.masterVolume / 100
		if w > d.waveMax {
			w = d.waveMax
		} else if w < d.waveMin {
			w = d.waveMin
		}
		buf[i] = int16(w)
	}
}

// IsPlaying reports whether the stream has more data to play. It stays
// true forever on a looping stream.
func (d *Driver) IsPlaying() bool {
	return !d.end
}

// LoopCount returns how many times playback has wrapped to the loop
// offset.
func (d *Driver) LoopCount() uint32 {
	return d.loopCount
}

// Version returns the stream's VGM version word (0x161 for 1.61).
func (d *Driver) Version() uint32 {
	return d.version
}

// TotalSamples returns the header's declared sample count, 0 if unset.
func (d *Driver) TotalSamples() uint32 {
	return d.totalSamples
}

// LoopSamples returns the header's declared loop length in samples.
func (d *Driver) LoopSamples() uint32 {
	return d.loopSamples
}

// UsesPSG reports whether the loaded stream drives the PSG.
func (d *Driver) UsesPSG() bool {
	return d.psgClock != 0
}

// UsesSCC reports whether the loaded stream drives the SCC.
func (d *Driver) UsesSCC() bool {
	return d.sccClock != 0
}

// FrequencyPSG returns the current period divider of a PSG tone channel.
func (d *Driver) FrequencyPSG(ch int) uint32 {
	return d.psg.Frequency(ch)
}

// FrequencySCC returns the current period divider of an SCC voice.
func (d *Driver) FrequencySCC(ch int) uint32 {
	return d.scc.Frequency(ch)
}

// SetChannelMaskPSG replaces the PSG mute set (bit i mutes channel i).
func (d *Driver) SetChannelMaskPSG(mask uint32) {
	d.psg.SetMask(mask)
}

// ToggleChannelMaskPSG flips bits in the PSG mute set.
func (d *Driver) ToggleChannelMaskPSG(mask uint32) {
	d.psg.ToggleMask(mask)
}

// SetChannelMaskSCC replaces the SCC mute set (bit i mutes voice i).
func (d *Driver) SetChannelMaskSCC(mask uint32) {
	d.scc.SetMask(mask)
}

// ToggleChannelMaskSCC flips bits in the SCC mute set.
func (d *Driver) ToggleChannelMaskSCC(mask uint32) {
	d.scc.ToggleMask(mask)
}

// next consumes one operand byte. A truncated stream reads as zero and
// terminates playback.
func (d *Driver) next() uint8 {
	if d.cursor >= len(d.data) {
		d.end = true
		return 0
	}
	b := d.data[d.cursor]
	d.cursor++
	return b
}

// execute interprets commands until at least one sample's worth of wait
// has accumulated, or the stream ends. Unknown commands terminate the
// stream: VGM command sizes vary, so skipping heuristically would only
// desynchronise the parser.
func (d *Driver) execute() {
	if d.data == nil || d.end {
		return
	}
	for d.wait < 1 && !d.end {
		cmd := d.next()
		switch cmd {
		case 0x31: // AY-3-8910 stereo mask, unused here
			d.next()

		case 0xA0:
			addr := d.next()
			val := d.next()
			d.psg.WriteRegister(addr, val)

		case 0xD2:
			port := d.next() & 0x7F
			offset := d.next()
			data := d.next()
			switch port {
			case 0x00:
				d.scc.WriteWaveform1(uint32(offset), data)
			case 0x01:
				d.scc.WriteFrequency(uint32(offset), data)
			case 0x02:
				d.scc.WriteVolume(uint32(offset), data)
			case 0x03:
				d.scc.WriteKeyOff(data)
			case 0x04:
				d.scc.WriteWaveform2(uint32(offset), data)
			case 0x05:
				d.scc.WriteTest(data)
			}

		case 0x61:
			lo := d.next()
			hi := d.next()
			d.wait += int(bit.Combine(hi, lo))

		case 0x62:
			d.wait += samplesPerFrameNTSC

		case 0x63:
			d.wait += samplesPerFramePAL

		case 0x66: // end of sound data
			if d.loopOffset != 0 {
				d.cursor = d.loopOffset
				d.loopCount++
			} else {
				d.end = true
				return
			}

		case 0xDD, 0xDE, 0xDF, 0xFD, 0xFE, 0xFF:
			// Label markers some trackers emit; no operands, skip.

		default:
			d.end = true
			return
		}
	}
}
