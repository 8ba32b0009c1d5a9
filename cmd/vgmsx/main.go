package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/valerio/go-vgmsx/vgmsx/backend"
	"github.com/valerio/go-vgmsx/vgmsx/backend/headless"
	"github.com/valerio/go-vgmsx/vgmsx/backend/terminal"
	"github.com/valerio/go-vgmsx/vgmsx/config"
	"github.com/valerio/go-vgmsx/vgmsx/player"
	"github.com/valerio/go-vgmsx/vgmsx/vgm"
	"github.com/valerio/go-vgmsx/vgmsx/wav"
)

// fadeSteps matches the original exporter: the fade tail is rendered in
// 32 equally sized chunks.
const fadeSteps = 32

func main() {
	app := cli.NewApp()
	app.Name = "vgmsx"
	app.Description = "An MSX PSG/SCC VGM player and renderer"
	app.Usage = "vgmsx [options] <file.vgm|file.vgz>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "wav",
			Usage: "Render to the given WAV file instead of playing",
		},
		cli.IntFlag{
			Name:  "rate",
			Usage: "Output sample rate in Hz",
		},
		cli.IntFlag{
			Name:  "loops",
			Usage: "Number of loops to play before fading out",
		},
		cli.Float64Flag{
			Name:  "fade",
			Usage: "Fade-out length in seconds (0 disables)",
		},
		cli.IntFlag{
			Name:  "volume",
			Usage: "Master volume percentage (may exceed 100)",
		},
		cli.IntFlag{
			Name:  "wave-size",
			Usage: "Clipping window as a percentage of full scale",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Play without the terminal interface",
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "Path to the configuration file",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("error running vgmsx", "error", err)
		os.Exit(1)
	}
}

// playback collects the effective options: the config file supplies the
// defaults, explicitly set flags win.
type playback struct {
	rate     int
	loops    int
	fade     float64
	volume   int
	waveSize int
}

func resolveOptions(c *cli.Context) playback {
	cfg := config.LoadOrDefault(c.String("config")).Playback

	opts := playback{
		rate:     cfg.SampleRate,
		loops:    cfg.Loops,
		fade:     cfg.FadeSeconds,
		volume:   cfg.MasterVolume,
		waveSize: cfg.WaveSize,
	}
	if c.IsSet("rate") {
		opts.rate = c.Int("rate")
	}
	if c.IsSet("loops") {
		opts.loops = c.Int("loops")
	}
	if c.IsSet("fade") {
		opts.fade = c.Float64("fade")
	}
	if c.IsSet("volume") {
		opts.volume = c.Int("volume")
	}
	if c.IsSet("wave-size") {
		opts.waveSize = c.Int("wave-size")
	}
	return opts
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowAppHelp(c)
		return errors.New("no VGM file provided")
	}
	path := c.Args().First()

	opts := resolveOptions(c)

	data, err := vgm.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	drv := vgm.New(opts.rate)
	drv.SetMasterVolume(opts.volume)
	drv.SetWaveSize(opts.waveSize)
	if err := drv.Load(data); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	slog.Info("loaded VGM stream",
		"title", title,
		"version", fmt.Sprintf("%x.%02x", drv.Version()>>8, drv.Version()&0xFF),
		"psg", drv.UsesPSG(),
		"scc", drv.UsesSCC())

	if out := c.String("wav"); out != "" {
		return exportWAV(drv, out, opts)
	}
	return play(drv, title, opts, c.Bool("headless"))
}

// exportWAV renders the tune into a RIFF/WAVE file: the requested number
// of loops at full volume, then the fade tail.
func exportWAV(drv *vgm.Driver, out string, opts playback) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := wav.NewWriter(f, opts.rate)
	if err != nil {
		return err
	}

	buf := make([]int16, opts.rate/10)
	for drv.LoopCount() < uint32(opts.loops) && drv.IsPlaying() {
		drv.Render(buf)
		if err := w.WriteSamples(buf); err != nil {
			return err
		}
	}

	if opts.fade > 0 && drv.IsPlaying() {
		fadeBuf := make([]int16, int(float64(opts.rate)*opts.fade)/fadeSteps)
		for i := 0; i < fadeSteps; i++ {
			drv.Render(fadeBuf)
			wav.Fade(fadeBuf, i, fadeSteps)
			if err := w.WriteSamples(fadeBuf); err != nil {
				return err
			}
		}
	}

	if err := w.Close(); err != nil {
		return err
	}
	slog.Info("rendered WAV", "path", out, "bytes", w.Written())
	return nil
}

// play runs live playback against a backend until the tune finishes or
// the user quits.
func play(drv *vgm.Driver, title string, opts playback, useHeadless bool) error {
	p, err := player.New(drv, player.Options{
		Title:       title,
		SampleRate:  opts.rate,
		MaxLoops:    uint32(opts.loops),
		FadeSeconds: opts.fade,
	})
	if err != nil {
		return err
	}

	var b backend.Backend
	if useHeadless {
		b = headless.New()
	} else {
		b = terminal.New()
	}
	if err := b.Init(backend.Config{Title: title, ShowLogs: true}); err != nil {
		p.Stop()
		return err
	}
	defer b.Cleanup()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.Done():
			return nil
		case <-ticker.C:
			actions, err := b.Update(p.Status())
			if err != nil {
				p.Stop()
				return err
			}
			for _, act := range actions {
				if act == backend.Quit {
					p.Stop()
					return nil
				}
				p.Apply(act)
			}
		}
	}
}
