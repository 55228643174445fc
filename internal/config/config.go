// Package config holds the demo's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported backends.
const (
	BackendFTDI = "ftdi"
	BackendSPI  = "spi"
)

// PinConfig names the panel's control lines. For the ftdi backend these are
// FT232H header names ("FT232H.C1"), otherwise gpioreg names ("GPIO8").
type PinConfig struct {
	CS        string `yaml:"cs"`
	Reset     string `yaml:"reset"`
	Busy      string `yaml:"busy"`
	Discharge string `yaml:"discharge"`
}

// ThermometerConfig locates a BME280/BMP280 on an I2C bus.
type ThermometerConfig struct {
	// Bus is an i2creg name; empty selects the first bus.
	Bus  string `yaml:"bus"`
	Addr uint16 `yaml:"addr"`
}

// Config is the demo configuration.
type Config struct {
	// Backend is "ftdi" for an FT232H on USB or "spi" for a host SPI port.
	Backend string `yaml:"backend"`
	// SPIBus is the spireg name used by the spi backend; empty picks the
	// first port.
	SPIBus string `yaml:"spi_bus"`
	// MaxHz is the SPI clock in Hz.
	MaxHz int64 `yaml:"max_hz"`

	Pins PinConfig `yaml:"pins"`

	// Rotation in degrees, a multiple of 90.
	Rotation int `yaml:"rotation"`
	// FrameIters fixes the passes per refresh stage; 0 times them.
	FrameIters int  `yaml:"frame_iters"`
	FastMode   bool `yaml:"fast_mode"`
	// BusyTimeout bounds the busy wait during power on; 0 waits forever.
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// TemperatureC, when set, is used instead of the thermometer.
	TemperatureC *int              `yaml:"temperature_c,omitempty"`
	Thermometer  ThermometerConfig `yaml:"thermometer"`

	// Font is an optional font resource file; empty uses the built-in font.
	Font     string `yaml:"font,omitempty"`
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the wiring of the FT232H breakout the driver was
// developed on.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendFTDI,
		MaxHz:   8_000_000,
		Pins: PinConfig{
			CS:        "FT232H.C1",
			Reset:     "FT232H.C2",
			Busy:      "FT232H.C3",
			Discharge: "FT232H.C4",
		},
		Thermometer: ThermometerConfig{Addr: 0x76},
		LogLevel:    "info",
	}
}

// Normalize fills in zero values and validates the rest.
func (c *Config) Normalize() error {
	def := DefaultConfig()
	switch c.Backend {
	case BackendFTDI, BackendSPI:
	case "":
		c.Backend = def.Backend
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.MaxHz <= 0 {
		c.MaxHz = def.MaxHz
	}
	if c.Pins.CS == "" {
		c.Pins.CS = def.Pins.CS
	}
	if c.Pins.Reset == "" {
		c.Pins.Reset = def.Pins.Reset
	}
	if c.Pins.Busy == "" {
		c.Pins.Busy = def.Pins.Busy
	}
	if c.Pins.Discharge == "" {
		c.Pins.Discharge = def.Pins.Discharge
	}
	if c.Rotation%90 != 0 {
		return fmt.Errorf("config: rotation %d is not a multiple of 90", c.Rotation)
	}
	if c.FrameIters < 0 {
		c.FrameIters = 0
	}
	if c.BusyTimeout < 0 {
		c.BusyTimeout = 0
	}
	if c.Thermometer.Addr == 0 {
		c.Thermometer.Addr = def.Thermometer.Addr
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	return nil
}

// Load reads the configuration at path. On first run the file does not exist
// yet; the defaults are written there and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically, readable only by its owner.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}
	if err := cfg.Normalize(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".aurora-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
