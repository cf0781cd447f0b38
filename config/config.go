package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// StoreFormat selects how patterns are written to disk
type StoreFormat string

const (
	FormatJSON StoreFormat = "json"
	FormatYAML StoreFormat = "yaml"
)

// TransportConfig holds clock settings
type TransportConfig struct {
	Tempo       int `json:"tempo"`
	BeatsPerBar int `json:"beatsPerBar"`
	BarsPerPart int `json:"barsPerPart"`
}

// OutputConfig defines the synth MIDI output
type OutputConfig struct {
	PortName    string `json:"portName,omitempty"`
	DrumChannel int    `json:"drumChannel"` // 1-16, like the front panel of a synth
}

// StoreConfig defines where patterns are saved
type StoreConfig struct {
	Dir    string      `json:"dir,omitempty"`
	Format StoreFormat `json:"format,omitempty"`
}

// SequencersConfig describes the sequencers created at startup
type SequencersConfig struct {
	Melodic     int    `json:"melodic"`
	Drum        bool   `json:"drum"`
	Kit         string `json:"kit,omitempty"`
	Latch       bool   `json:"latch"`
	Density     int    `json:"density"`
	OctaveRange int    `json:"octaveRange"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette string `json:"palette,omitempty"`
	Debug   bool   `json:"debug,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Transport  TransportConfig  `json:"transport"`
	Output     OutputConfig     `json:"output"`
	Store      StoreConfig      `json:"store"`
	Sequencers SequencersConfig `json:"sequencers"`
	UI         UIConfig         `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			Tempo:       120,
			BeatsPerBar: 4,
			BarsPerPart: 16,
		},
		Output: OutputConfig{
			DrumChannel: 10,
		},
		Store: StoreConfig{
			Format: FormatJSON,
		},
		Sequencers: SequencersConfig{
			Melodic:     2,
			Drum:        true,
			Kit:         "gm",
			Density:     50,
			OctaveRange: 2,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-beatgen"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config from path, falling back to defaults if it doesn't exist
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	// Start from defaults so missing sections keep sane values
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path
func (c *Config) SaveFile(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// StoreDir returns the pattern directory, defaulting to ~/.config/go-beatgen/patterns
func (c *Config) StoreDir() (string, error) {
	if c.Store.Dir != "" {
		return c.Store.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "patterns"), nil
}

// Normalize clamps out-of-range values instead of rejecting them
func (c *Config) Normalize() {
	c.Transport.Tempo = clamp(c.Transport.Tempo, 20, 300)
	c.Transport.BeatsPerBar = clamp(c.Transport.BeatsPerBar, 1, 16)
	c.Transport.BarsPerPart = clamp(c.Transport.BarsPerPart, 1, 256)
	c.Output.DrumChannel = clamp(c.Output.DrumChannel, 1, 16)
	c.Sequencers.Melodic = clamp(c.Sequencers.Melodic, 0, 15)
	c.Sequencers.Density = clamp(c.Sequencers.Density, 0, 100)
	c.Sequencers.OctaveRange = clamp(c.Sequencers.OctaveRange, 1, 4)
	if c.Store.Format != FormatYAML {
		c.Store.Format = FormatJSON
	}
	if c.Sequencers.Kit == "" {
		c.Sequencers.Kit = "gm"
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
