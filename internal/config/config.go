package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a configuration file.
const MaxConfigFileBytes = 64 * 1024

// SerialConfig describes the link to the motor controller.
type SerialConfig struct {
	Device         string `yaml:"device"`           // e.g. "/dev/ttyUSB0", or "auto" to pick a USB adapter
	Baud           int    `yaml:"baud"`             // SkyWatcher controllers talk at 9600 (115200 on some WiFi/USB boards)
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`  // per-byte read deadline
	ProbeTimeoutMs int    `yaml:"probe_timeout_ms"` // deadline of the DC-motor echo probe
	Backend        string `yaml:"backend"`          // "bugst" (default) or "tarm"
}

// MountConfig tunes the motion controller.
type MountConfig struct {
	SilentSlew     bool `yaml:"silent_slew"`      // never use high-speed stepping
	PollIntervalMs int  `yaml:"poll_interval_ms"` // pause between status reads while waiting for a stop
	MaxStopPolls   int  `yaml:"max_stop_polls"`   // give up waiting after this many reads
	Recover        bool `yaml:"recover"`          // keep encoder references from a previous session
}

// SimulatorConfig replaces the serial port with an in-process controller.
// Zero values fall back to the simulator's own defaults.
type SimulatorConfig struct {
	Enabled          bool `yaml:"enabled"`
	MountCode        int  `yaml:"mount_code"`         // 0x80 GT, 0x81 MF, 0x82 114GT, 0x83 DOB
	Firmware         int  `yaml:"firmware"`           // e.g. 0x0207 for 2.07
	MicrostepsPerRev int  `yaml:"microsteps_per_rev"` // both axes
	ClockFrequency   int  `yaml:"clock_frequency"`
	HighSpeedRatio   int  `yaml:"high_speed_ratio"`
	DCMotor          bool `yaml:"dc_motor"` // echo requests like DC-motor boards do
	GotoPolls        int  `yaml:"goto_polls"`
}

// CameraConfig describes how to trigger the camera.
// Type is "none", "snap" (the mount's SNAP socket) or "gpio" (wired remote on the Pi header).
type CameraConfig struct {
	Type           string `yaml:"type"`
	FocusPin       int    `yaml:"focus_pin"`        // GPIO pin for FOCUS line
	ShutterPin     int    `yaml:"shutter_pin"`      // GPIO pin for SHUTTER line
	FocusDelayMs   int    `yaml:"focus_delay_ms"`   // autofocus delay (ms)
	ShutterDelayMs int    `yaml:"shutter_delay_ms"` // shutter hold time (ms)
	// Note: GND is physically connected to Raspberry Pi ground
}

// MosaicConfig describes the imaging train and the sky area tiled by a
// mosaic. A zero focal length disables mosaics.
type MosaicConfig struct {
	FocalLengthMm  float64 `yaml:"focal_length_mm"`
	SensorWidthMm  float64 `yaml:"sensor_width_mm"`
	SensorHeightMm float64 `yaml:"sensor_height_mm"`
	OverlapPercent float64 `yaml:"overlap_percent"` // shared area between neighbouring frames
	WidthDeg       float64 `yaml:"width_deg"`       // along axis 1
	HeightDeg      float64 `yaml:"height_deg"`      // along axis 2
	DeclinationDeg float64 `yaml:"declination_deg"` // 0 for alt-az mounts
	SettleMs       int     `yaml:"settle_ms"`       // pause after each goto
	PostShotMs     int     `yaml:"post_shot_ms"`    // pause after each exposure
}

// Enabled reports whether a mosaic can be planned.
func (m MosaicConfig) Enabled() bool {
	return m.FocalLengthMm > 0
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Mount     MountConfig     `yaml:"mount"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Camera    CameraConfig    `yaml:"camera"`
	Mosaic    MosaicConfig    `yaml:"mosaic"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files located directly in a
// directory named "configs", and rejects any ".." element.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file %q must be in a configs/ directory", path)
	}
	return nil
}

// Load validates the path, reads the YAML file and returns the
// configuration with defaults applied.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file is %d bytes, limit is %d", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Serial.Device == "" {
		c.Serial.Device = "auto"
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = 9600
	}
	if c.Serial.ReadTimeoutMs == 0 {
		c.Serial.ReadTimeoutMs = 1000
	}
	if c.Serial.ProbeTimeoutMs == 0 {
		c.Serial.ProbeTimeoutMs = 500
	}
	if c.Serial.Backend == "" {
		c.Serial.Backend = "bugst"
	}
	if c.Mount.PollIntervalMs == 0 {
		c.Mount.PollIntervalMs = 100
	}
	if c.Mount.MaxStopPolls == 0 {
		c.Mount.MaxStopPolls = 600
	}
	c.Camera.Type = strings.ToLower(strings.TrimSpace(c.Camera.Type))
	if c.Camera.Type == "" {
		c.Camera.Type = "none"
	}
	if c.Camera.FocusDelayMs <= 0 {
		c.Camera.FocusDelayMs = 500 // 500ms for autofocus
	}
	if c.Camera.ShutterDelayMs <= 0 {
		c.Camera.ShutterDelayMs = 200 // 200ms shutter hold
	}
	if c.Mosaic.OverlapPercent == 0 {
		c.Mosaic.OverlapPercent = 30
	}
	if c.Mosaic.SettleMs == 0 {
		c.Mosaic.SettleMs = 500
	}
	if c.Mosaic.PostShotMs == 0 {
		c.Mosaic.PostShotMs = 300
	}
}

func (c *Config) validate() error {
	switch c.Serial.Backend {
	case "bugst", "tarm":
	default:
		return fmt.Errorf("serial.backend must be bugst or tarm, got %q", c.Serial.Backend)
	}
	if c.Serial.Baud < 0 {
		return fmt.Errorf("serial.baud must be > 0, got %d", c.Serial.Baud)
	}
	if c.Serial.ReadTimeoutMs < 0 || c.Serial.ProbeTimeoutMs < 0 {
		return errors.New("serial timeouts must be >= 0")
	}
	if c.Mount.PollIntervalMs < 0 {
		return fmt.Errorf("mount.poll_interval_ms must be >= 0, got %d", c.Mount.PollIntervalMs)
	}
	if c.Mount.MaxStopPolls < 0 {
		return fmt.Errorf("mount.max_stop_polls must be >= 0, got %d", c.Mount.MaxStopPolls)
	}

	sim := c.Simulator
	if sim.MountCode < 0 || sim.MountCode > 0xFF {
		return fmt.Errorf("simulator.mount_code must fit in a byte, got %#x", sim.MountCode)
	}
	if sim.Firmware < 0 || sim.Firmware > 0xFFFF {
		return fmt.Errorf("simulator.firmware must fit in 16 bits, got %#x", sim.Firmware)
	}
	if sim.MicrostepsPerRev < 0 || sim.MicrostepsPerRev > 0xFFFFFF {
		return fmt.Errorf("simulator.microsteps_per_rev must fit in 24 bits, got %d", sim.MicrostepsPerRev)
	}
	if sim.ClockFrequency < 0 || sim.ClockFrequency > 0xFFFFFF {
		return fmt.Errorf("simulator.clock_frequency must fit in 24 bits, got %d", sim.ClockFrequency)
	}
	if sim.HighSpeedRatio < 0 || sim.HighSpeedRatio > 0xFF {
		return fmt.Errorf("simulator.high_speed_ratio must fit in a byte, got %d", sim.HighSpeedRatio)
	}
	if sim.GotoPolls < 0 {
		return fmt.Errorf("simulator.goto_polls must be >= 0, got %d", sim.GotoPolls)
	}

	switch c.Camera.Type {
	case "none", "snap":
	case "gpio":
		if c.Camera.FocusPin <= 0 || c.Camera.ShutterPin <= 0 {
			return errors.New("camera.focus_pin and camera.shutter_pin are required for a gpio camera")
		}
		if c.Camera.FocusPin == c.Camera.ShutterPin {
			return fmt.Errorf("camera.focus_pin and camera.shutter_pin must differ, both are %d", c.Camera.FocusPin)
		}
	default:
		return fmt.Errorf("camera.type must be none, snap or gpio, got %q", c.Camera.Type)
	}

	if m := c.Mosaic; m.Enabled() {
		if m.SensorWidthMm <= 0 || m.SensorHeightMm <= 0 {
			return errors.New("mosaic.sensor_width_mm and mosaic.sensor_height_mm are required with a focal length")
		}
		if m.OverlapPercent < 0 || m.OverlapPercent >= 100 {
			return fmt.Errorf("mosaic.overlap_percent must be in [0, 100), got %g", m.OverlapPercent)
		}
		if m.WidthDeg < 0 || m.WidthDeg > 360 || m.HeightDeg < 0 || m.HeightDeg > 180 {
			return fmt.Errorf("mosaic area %gx%g degrees out of range", m.WidthDeg, m.HeightDeg)
		}
		if m.SettleMs < 0 || m.PostShotMs < 0 {
			return errors.New("mosaic delays must be >= 0")
		}
	} else if m.FocalLengthMm < 0 {
		return fmt.Errorf("mosaic.focal_length_mm must be >= 0, got %g", m.FocalLengthMm)
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// ReadTimeout returns the per-byte serial read deadline.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Serial.ReadTimeoutMs) * time.Millisecond
}

// ProbeTimeout returns the deadline of the DC-motor probe.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Serial.ProbeTimeoutMs) * time.Millisecond
}

// PollInterval returns the pause between status reads while waiting for a stop.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Mount.PollIntervalMs) * time.Millisecond
}

// FocusDelay returns the autofocus delay duration.
func (c *Config) FocusDelay() time.Duration {
	return time.Duration(c.Camera.FocusDelayMs) * time.Millisecond
}

// ShutterDelay returns the shutter hold duration.
func (c *Config) ShutterDelay() time.Duration {
	return time.Duration(c.Camera.ShutterDelayMs) * time.Millisecond
}

// OverlapRatio returns the mosaic overlap as a fraction.
func (c *Config) OverlapRatio() float64 {
	return c.Mosaic.OverlapPercent / 100
}

// SettleDelay returns the pause after each mosaic goto.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Mosaic.SettleMs) * time.Millisecond
}

// PostShotDelay returns the pause after each mosaic exposure.
func (c *Config) PostShotDelay() time.Duration {
	return time.Duration(c.Mosaic.PostShotMs) * time.Millisecond
}
