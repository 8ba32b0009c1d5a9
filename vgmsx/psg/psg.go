// Package psg emulates the General Instrument AY-3-8910 and Yamaha YM2149
// programmable sound generators as found in the MSX family: three square
// wave tone channels, a shared 17-bit LFSR noise generator, a shared
// hardware envelope and a per-channel tone/noise mixer.
//
// The chip runs at its own master clock and is resampled to the output
// rate with a fixed-point accumulator: each output sample advances the
// chip by a handful of internal ticks and averages the mixed output,
// which doubles as a cheap first-order anti-alias filter.
package psg

import "github.com/valerio/go-vgmsx/vgmsx/bit"

// VolumeMode selects which DAC curve the chip uses. The YM2149 has 32
// distinct volume steps; the AY-3-8910 has 16, each repeated once so both
// tables share the 32-entry layout.
type VolumeMode int

const (
	VolumeModeYM2149 VolumeMode = iota
	VolumeModeAY8910
)

const (
	regCount = 16

	// getaBits is the number of fractional bits in the base tick
	// accumulator. The integer part carried out of it is the number of
	// chip ticks to run for one update step.
	getaBits = 24
)

// regMask holds the significant bits of each register; writes are masked
// with it so reads always observe the value the chip latched.
var regMask = [regCount]uint8{
	0xFF, 0x0F, 0xFF, 0x0F, 0xFF, 0x0F, 0x1F, 0x3F,
	0x1F, 0x1F, 0x1F, 0xFF, 0xFF, 0x0F, 0xFF, 0xFF,
}

// volumeTables holds the two DAC curves, YM2149 first. Values are the
// measured 8-bit output levels per volume step.
var volumeTables = [2][32]uint32{
	{
		0x00, 0x01, 0x01, 0x02, 0x02, 0x03, 0x03, 0x04,
		0x05, 0x06, 0x07, 0x09, 0x0B, 0x0D, 0x0F, 0x12,
		0x16, 0x1A, 0x1F, 0x25, 0x2D, 0x35, 0x3F, 0x4C,
		0x5A, 0x6A, 0x7F, 0x97, 0xB4, 0xD6, 0xFF, 0xFF,
	},
	{
		0x00, 0x00, 0x03, 0x03, 0x04, 0x04, 0x06, 0x06,
		0x09, 0x09, 0x0D, 0x0D, 0x12, 0x12, 0x1D, 0x1D,
		0x22, 0x22, 0x37, 0x37, 0x4D, 0x4D, 0x62, 0x62,
		0x82, 0x82, 0xA6, 0xA6, 0xD0, 0xD0, 0xFF, 0xFF,
	},
}

// toneChannel is one of the three square wave generators. count runs up
// to freq and toggles edge on wrap.
type toneChannel struct {
	freq  uint16
	count uint16
	edge  bool
}

// PSG models a single AY-3-8910 / YM2149 chip.
type PSG struct {
	registers [regCount]uint8
	addrLatch uint8

	clock        uint32
	rate         uint32
	clockDivider bool

	voltbl *[32]uint32

	tones     [3]toneChannel
	volume    [3]uint8 // register value shifted left 1, bit 5 = follow envelope
	toneMask  [3]bool  // raw register 7 bit, used directly as the gate predicate
	noiseMask [3]bool
	chOut     [3]int16

	// mask is the driver-side mute set, bit i silences channel i. It is
	// independent of the register 7 mixer.
	mask uint32

	baseIncr  uint32
	baseCount uint32

	// Envelope state. ptr walks 0..0x3F; bit 5 is the wrap sentinel that
	// triggers the shape logic.
	envPtr       uint8
	envFace      bool // true = rising
	envContinue  bool
	envAttack    bool
	envAlternate bool
	envHold      bool
	envPause     bool
	envFreq      uint16
	envCount     uint32

	noiseSeed   uint32
	noiseScaler bool
	noiseCount  uint32
	noiseFreq   uint8

	// Rate converter state. realStep/psgStep form a fractional ratio of
	// master clock to (rate * 8); update runs while psgTime lags behind.
	realStep  uint32
	psgTime   uint32
	psgStep   uint32
	freqLimit uint16

	out int32
}

// New creates a PSG clocked at clock Hz producing samples at rate Hz.
// A zero rate falls back to 44100.
func New(clock, rate uint32) *PSG {
	p := &PSG{
		clock: clock,
		rate:  rate,
	}
	if p.rate == 0 {
		p.rate = 44100
	}
	p.SetVolumeMode(VolumeModeYM2149)
	p.internalRefresh()
	p.Reset()
	return p
}

// Reset returns the chip to its power-on state: all registers zero, the
// noise LFSR seeded, the envelope paused.
func (p *PSG) Reset() {
	p.baseCount = 0

	for i := range p.tones {
		p.tones[i] = toneChannel{}
		p.volume[i] = 0
		p.chOut[i] = 0
	}

	p.mask = 0

	for i := range p.registers {
		p.registers[i] = 0
	}
	p.addrLatch = 0

	p.noiseSeed = 0xFFFF
	p.noiseScaler = false
	p.noiseCount = 0
	p.noiseFreq = 0

	p.envPtr = 0
	p.envFreq = 0
	p.envCount = 0
	p.envPause = true

	p.out = 0
}

// Frequency returns the 12-bit period divider of the given tone channel,
// or 0 for channels outside [0, 3).
func (p *PSG) Frequency(ch int) uint32 {
	if ch < 0 || ch >= 3 {
		return 0
	}
	return uint32(p.tones[ch].freq)
}

// SetClock changes the master clock and recomputes the rate converter.
func (p *PSG) SetClock(clock uint32) {
	if p.clock != clock {
		p.clock = clock
		p.internalRefresh()
	}
}

// SetClockDivider enables or disables the divide-by-two on the master
// clock. MSX machines feed the PSG half the 3.58 MHz bus clock.
func (p *PSG) SetClockDivider(enable bool) {
	if p.clockDivider != enable {
		p.clockDivider = enable
		p.internalRefresh()
	}
}

// SetRate changes the output sample rate. A zero rate falls back to 44100.
func (p *PSG) SetRate(rate uint32) {
	r := rate
	if r == 0 {
		r = 44100
	}
	if p.rate != r {
		p.rate = r
		p.internalRefresh()
	}
}

// SetVolumeMode selects the DAC curve.
func (p *PSG) SetVolumeMode(mode VolumeMode) {
	switch mode {
	case VolumeModeAY8910:
		p.voltbl = &volumeTables[1]
	default:
		p.voltbl = &volumeTables[0]
	}
}

// SetMask replaces the driver-side mute set (bit i mutes channel i) and
// returns the previous one.
func (p *PSG) SetMask(mask uint32) uint32 {
	ret := p.mask
	p.mask = mask
	return ret
}

// ToggleMask flips the given bits in the mute set and returns the
// previous one.
func (p *PSG) ToggleMask(mask uint32) uint32 {
	ret := p.mask
	p.mask ^= mask
	return ret
}

// ReadIO returns the contents of the register selected by the address
// latch, as seen on the chip's data bus.
func (p *PSG) ReadIO() uint8 {
	return p.registers[p.addrLatch&0x0F]
}

// WriteIO models the two-port bus interface: an even address latches the
// register index, an odd address writes to the latched register.
func (p *PSG) WriteIO(addr uint32, val uint8) {
	if addr&1 != 0 {
		p.WriteRegister(p.addrLatch, val)
	} else {
		p.addrLatch = val & 0x1F
	}
}

// ReadRegister returns the last value latched into a register, already
// masked to its significant bits. Registers outside [0, 16) read as 0.
func (p *PSG) ReadRegister(reg uint8) uint8 {
	if reg >= regCount {
		return 0
	}
	return p.registers[reg]
}

// WriteRegister latches a register value and updates the derived channel
// state. Writes above register 15 are ignored.
func (p *PSG) WriteRegister(reg, val uint8) {
	if reg >= regCount {
		return
	}

	val &= regMask[reg]
	p.registers[reg] = val

	switch reg {
	case 0, 1, 2, 3, 4, 5:
		ch := reg >> 1
		p.tones[ch].freq = bit.Combine(p.registers[ch*2+1]&0x0F, p.registers[ch*2])

	case 6:
		p.noiseFreq = val & 0x1F

	case 7:
		for i := uint8(0); i < 3; i++ {
			p.toneMask[i] = bit.IsSet(i, val)
			p.noiseMask[i] = bit.IsSet(i+3, val)
		}

	case 8, 9, 10:
		// Stored shifted so bit 5 is the envelope-follow flag and the
		// low five bits index the 32-entry volume table directly.
		p.volume[reg-8] = val << 1

	case 11, 12:
		p.envFreq = bit.Combine(p.registers[12], p.registers[11])

	case 13:
		p.envContinue = val&0x08 != 0
		p.envAttack = val&0x04 != 0
		p.envAlternate = val&0x02 != 0
		p.envHold = val&0x01 != 0
		p.envFace = p.envAttack
		p.envPause = false
		if p.envFace {
			p.envPtr = 0
		} else {
			p.envPtr = 0x1F
		}
	}
}

// Calc produces one output sample. The chip tick rate is higher than the
// sample rate, so the converter runs update steps until the accumulated
// chip time catches up with one sample period, averaging as it goes.
func (p *PSG) Calc() int16 {
	for p.realStep > p.psgTime {
		p.psgTime += p.psgStep
		p.updateOutput()
		p.out += int32(p.mixOutput())
		p.out >>= 1
	}
	p.psgTime -= p.realStep
	return int16(p.out)
}

func (p *PSG) internalRefresh() {
	fMaster := p.clock
	if p.clockDivider {
		fMaster /= 2
	}

	p.baseIncr = 1 << getaBits
	p.realStep = fMaster
	p.psgStep = p.rate * 8
	p.psgTime = 0
	p.freqLimit = uint16(fMaster / 16 / (p.rate / 2))
}

// updateOutput advances the chip by one update step: the envelope, the
// noise LFSR and the three tone counters each consume incr ticks, then
// the per-channel outputs are gated and looked up in the volume table.
func (p *PSG) updateOutput() {
	p.baseCount += p.baseIncr
	incr := p.baseCount >> getaBits
	p.baseCount &= (1 << getaBits) - 1

	// Envelope
	p.envCount += incr
	if p.envCount >= uint32(p.envFreq) {
		if !p.envPause {
			if p.envFace {
				p.envPtr = (p.envPtr + 1) & 0x3F
			} else {
				p.envPtr = (p.envPtr + 0x3F) & 0x3F
			}
		}

		if p.envPtr&0x20 != 0 { // carry or borrow out of the 32-step ramp
			if p.envContinue {
				if p.envAlternate != p.envHold {
					p.envFace = !p.envFace
				}
				if p.envHold {
					p.envPause = true
				}
				if p.envFace {
					p.envPtr = 0
				} else {
					p.envPtr = 0x1F
				}
			} else {
				p.envPause = true
				p.envPtr = 0
			}
		}

		if uint32(p.envFreq) >= incr {
			p.envCount -= uint32(p.envFreq)
		} else {
			p.envCount = 0
		}
	}

	// Noise. The scaler halves the LFSR rate so the period register
	// spans the same range as the tone dividers.
	p.noiseCount += incr
	if p.noiseCount >= uint32(p.noiseFreq) {
		p.noiseScaler = !p.noiseScaler
		if p.noiseScaler {
			if p.noiseSeed&1 != 0 {
				p.noiseSeed ^= 0x24000
			}
			p.noiseSeed >>= 1
		}

		if uint32(p.noiseFreq) >= incr {
			p.noiseCount -= uint32(p.noiseFreq)
		} else {
			p.noiseCount = 0
		}
	}
	noise := p.noiseSeed&1 != 0

	// Tone
	for i := range p.tones {
		t := &p.tones[i]
		t.count += uint16(incr)
		if t.count >= t.freq {
			t.edge = !t.edge
			if t.freq >= uint16(incr) {
				t.count -= t.freq
			} else {
				t.count = 0
			}
		}

		if p.freqLimit > 0 && t.freq <= p.freqLimit && p.noiseMask[i] {
			// Tones pitched above the output Nyquist only alias; the
			// real chip's output would be taken out by the low-pass
			// circuitry downstream, so the channel is silenced instead.
			p.chOut[i] = 0
			continue
		}

		if p.mask&(1<<uint(i)) != 0 {
			p.chOut[i] = 0
			continue
		}

		if (p.toneMask[i] || t.edge) && (p.noiseMask[i] || noise) {
			if p.volume[i]&0x20 == 0 {
				p.chOut[i] = int16(p.voltbl[p.volume[i]&0x1F] << 4)
			} else {
				p.chOut[i] = int16(p.voltbl[p.envPtr] << 4)
			}
		} else {
			p.chOut[i] = 0
		}
	}
}

func (p *PSG) mixOutput() int16 {
	return p.chOut[0] + p.chOut[1] + p.chOut[2]
}
