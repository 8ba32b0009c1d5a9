// Package player marries a VGM driver to the audio device. Rendering
// happens on a dedicated goroutine that keeps a ring buffer topped up;
// oto pulls PCM from the ring at the device's pace. The engine itself is
// only ever touched under the player's lock, so its single-threaded
// contract holds.
package player

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/valerio/go-vgmsx/vgmsx/backend"
	"github.com/valerio/go-vgmsx/vgmsx/wav"
)

const (
	// chunkSamples is the render granularity: one NTSC frame of audio.
	chunkSamples = 735

	// ringCapacity holds ~500 ms of mono 16-bit PCM at 44.1 kHz.
	ringCapacity = 44100

	// highWater stops the producer once this much PCM is queued.
	highWater = ringCapacity / 2

	fadeChunks = 32
)

// oto context singleton: the library allows one per process.
var (
	otoCtx      *oto.Context
	otoInitOnce sync.Once
	otoInitErr  error
)

func ensureOtoContext(rate int) (*oto.Context, error) {
	otoInitOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		<-ready
	})
	return otoCtx, otoInitErr
}

// Options configures a playback session.
type Options struct {
	Title      string
	SampleRate int

	// MaxLoops fades out after the tune has looped this many times.
	// Zero plays until the stream ends on its own.
	MaxLoops uint32

	// FadeSeconds is the fade-out length applied once MaxLoops is
	// reached. Zero cuts playback without a fade.
	FadeSeconds float64
}

// Player renders a Source into an oto stream on its own goroutine.
type Player struct {
	src  Source
	opts Options

	rb  *ringBuffer
	out *oto.Player

	mu       sync.Mutex
	elapsed  uint64
	paused   bool
	finished bool
	psgMuted [3]bool
	sccMuted [5]bool

	quit     chan struct{}
	done     chan struct{}
	quitOnce sync.Once

	bytes []byte
}

// New opens the audio device and starts the render goroutine. Playback
// begins immediately.
func New(src Source, opts Options) (*Player, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44100
	}

	ctx, err := ensureOtoContext(opts.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("audio device not available: %w", err)
	}

	p := &Player{
		src:   src,
		opts:  opts,
		rb:    newRingBuffer(ringCapacity),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		bytes: make([]byte, 0, chunkSamples*2),
	}

	p.out = ctx.NewPlayer(p.rb)
	p.out.Play()

	go p.renderLoop()

	return p, nil
}

// Done is closed when the tune has finished (end of stream or fade-out
// complete).
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Stop ends playback and releases the audio stream.
func (p *Player) Stop() {
	p.quitOnce.Do(func() { close(p.quit) })
	p.rb.close()
	p.out.Close()
}

// TogglePause pauses or resumes rendering. While paused the device
// drains the ring and then waits.
func (p *Player) TogglePause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = !p.paused
}

// TogglePSGMute flips the mute state of one PSG channel.
func (p *Player) TogglePSGMute(ch int) {
	if ch < 0 || ch >= 3 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.psgMuted[ch] = !p.psgMuted[ch]
	p.src.ToggleChannelMaskPSG(1 << uint(ch))
}

// ToggleSCCMute flips the mute state of one SCC voice.
func (p *Player) ToggleSCCMute(ch int) {
	if ch < 0 || ch >= 5 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sccMuted[ch] = !p.sccMuted[ch]
	p.src.ToggleChannelMaskSCC(1 << uint(ch))
}

// Apply translates a backend action into the matching control call.
// Quit is left to the caller, who owns the run loop.
func (p *Player) Apply(act backend.Action) {
	switch act {
	case backend.PauseToggle:
		p.TogglePause()
	case backend.MutePSGA, backend.MutePSGB, backend.MutePSGC:
		p.TogglePSGMute(int(act - backend.MutePSGA))
	case backend.MuteSCC1, backend.MuteSCC2, backend.MuteSCC3, backend.MuteSCC4, backend.MuteSCC5:
		p.ToggleSCCMute(int(act - backend.MuteSCC1))
	}
}

// Status snapshots the player state for the backend display.
func (p *Player) Status() backend.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := backend.Status{
		Title:        p.opts.Title,
		SampleRate:   p.opts.SampleRate,
		Elapsed:      p.elapsed,
		TotalSamples: p.src.TotalSamples(),
		LoopCount:    p.src.LoopCount(),
		Playing:      !p.finished && p.src.IsPlaying(),
		Paused:       p.paused,
		UsesPSG:      p.src.UsesPSG(),
		UsesSCC:      p.src.UsesSCC(),
		PSGMuted:     p.psgMuted,
		SCCMuted:     p.sccMuted,
	}
	for ch := 0; ch < 3; ch++ {
		st.PSGFreq[ch] = p.src.FrequencyPSG(ch)
	}
	for ch := 0; ch < 5; ch++ {
		st.SCCFreq[ch] = p.src.FrequencySCC(ch)
	}
	return st
}

func (p *Player) renderLoop() {
	defer close(p.done)

	chunk := make([]int16, chunkSamples)
	for {
		select {
		case <-p.quit:
			return
		default:
		}

		p.mu.Lock()
		paused := p.paused
		p.mu.Unlock()
		if paused {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		if p.rb.buffered() > highWater {
			time.Sleep(5 * time.Millisecond)
			continue
		}

		p.mu.Lock()
		if p.opts.MaxLoops > 0 && p.src.LoopCount() >= p.opts.MaxLoops {
			p.mu.Unlock()
			p.fadeOut(chunk)
			return
		}
		playing := p.src.IsPlaying()
		p.src.Render(chunk)
		p.elapsed += uint64(len(chunk))
		p.mu.Unlock()

		p.queue(chunk)

		if !playing {
			p.waitDrain()
			p.mu.Lock()
			p.finished = true
			p.mu.Unlock()
			return
		}
	}
}

// fadeOut renders the fade tail and finishes.
func (p *Player) fadeOut(chunk []int16) {
	if p.opts.FadeSeconds > 0 {
		fadeChunk := make([]int16, int(float64(p.opts.SampleRate)*p.opts.FadeSeconds)/fadeChunks)
		for i := 0; i < fadeChunks; i++ {
			select {
			case <-p.quit:
				return
			default:
			}
			p.mu.Lock()
			p.src.Render(fadeChunk)
			p.elapsed += uint64(len(fadeChunk))
			p.mu.Unlock()
			wav.Fade(fadeChunk, i, fadeChunks)
			p.queue(fadeChunk)

			// Respect the high-water mark so the fade streams out in
			// real time instead of piling into the ring.
			for p.rb.buffered() > highWater {
				time.Sleep(5 * time.Millisecond)
			}
		}
	}
	p.waitDrain()
	p.mu.Lock()
	p.finished = true
	p.mu.Unlock()
}

// queue converts samples to little-endian bytes and hands them to the
// ring buffer.
func (p *Player) queue(samples []int16) {
	needed := len(samples) * 2
	if cap(p.bytes) < needed {
		p.bytes = make([]byte, 0, needed)
	}
	p.bytes = p.bytes[:0]
	for _, s := range samples {
		p.bytes = append(p.bytes, byte(s), byte(s>>8))
	}
	p.rb.write(p.bytes)
}

// waitDrain lets the device play out what is queued before finishing.
func (p *Player) waitDrain() {
	for p.rb.buffered() > 0 {
		select {
		case <-p.quit:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	time.Sleep(100 * time.Millisecond)
}
