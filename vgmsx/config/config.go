// Package config loads and saves the player configuration from the
// user's config directory as a TOML file.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the persisted player settings.
type Config struct {
	Playback PlaybackConfig `toml:"playback"`
}

// PlaybackConfig mirrors the command line's playback options so a user
// can set defaults once.
type PlaybackConfig struct {
	SampleRate   int     `toml:"sample_rate"`
	MasterVolume int     `toml:"master_volume"`
	WaveSize     int     `toml:"wave_size"`
	Loops        int     `toml:"loops"`
	FadeSeconds  float64 `toml:"fade_seconds"`
}

const cfgFilename = "config.toml"

// Default returns the built-in settings: the original engine's loudness
// calibration and the vgm2wav fade behaviour.
func Default() Config {
	return Config{
		Playback: PlaybackConfig{
			SampleRate:   44100,
			MasterVolume: 600,
			WaveSize:     95,
			Loops:        1,
			FadeSeconds:  3.2,
		},
	}
}

// Path returns the default config file location, creating the directory
// on the way.
func Path() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "vgmsx")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, cfgFilename), nil
}

// LoadOrDefault loads the configuration from path (or the default
// location when path is empty), falling back to Default when the file
// does not exist or fails to parse.
func LoadOrDefault(path string) Config {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return Default()
		}
	}
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Default()
	}
	return cfg
}

// Save writes the configuration to path (or the default location when
// path is empty).
func Save(path string, cfg Config) error {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
