// Package config loads the engine configuration from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/dubu/engine/math"
)

const (
	minWindowSize uint32 = 1
	maxWindowSize uint32 = 16384
)

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Window      WindowConfig      `toml:"window"`
	Instance    InstanceConfig    `toml:"instance"`
	Device      DeviceConfig      `toml:"device"`
	Model       ModelConfig       `toml:"model"`
	Log         LogConfig         `toml:"log"`
}

type ApplicationConfig struct {
	// The application name used in windowing and in the driver instance.
	Name    string `toml:"name"`
	Version string `toml:"version"`
	// Engine name reported to the driver.
	EngineName    string `toml:"engine_name"`
	EngineVersion string `toml:"engine_version"`
}

type WindowConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"y"`
	// Window starting width, if applicable.
	Width uint32 `toml:"width"`
	// Window starting height, if applicable.
	Height uint32 `toml:"height"`
}

type InstanceConfig struct {
	RequiredExtensions []string `toml:"required_extensions"`
	OptionalExtensions []string `toml:"optional_extensions"`
	RequiredLayers     []string `toml:"required_layers"`
	OptionalLayers     []string `toml:"optional_layers"`
	// Enables the validation layer and the debug report callback.
	Debug bool `toml:"debug"`
}

type DeviceConfig struct {
	RequiredExtensions    []string `toml:"required_extensions"`
	RequireGeometryShader bool     `toml:"require_geometry_shader"`
}

type ModelConfig struct {
	Path string `toml:"path"`
	// Reload the model whenever the file changes on disk.
	Watch bool `toml:"watch"`
	// Upper bound of materials a single model may declare. Sizes the
	// descriptor pool.
	MaxMaterials uint32 `toml:"max_materials"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:          "application",
			Version:       "0.0.0",
			EngineName:    "dubu",
			EngineVersion: "0.1.0",
		},
		Window: WindowConfig{
			StartPosX: 100,
			StartPosY: 100,
			Width:     1280,
			Height:    720,
		},
		Instance: InstanceConfig{
			Debug: true,
		},
		Device: DeviceConfig{
			RequiredExtensions:    []string{"VK_KHR_swapchain"},
			RequireGeometryShader: true,
		},
		Model: ModelConfig{
			MaxMaterials: 256,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path on top of Default. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a TOML document on top of Default and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown configuration keys:\n%s", strict.String())
		}
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted and clamps the window
// size into a range every driver accepts.
func (c *Config) Validate() error {
	if c.Application.Name == "" {
		return errors.New("application.name must not be empty")
	}
	if _, err := ParseVersion(c.Application.Version); err != nil {
		return fmt.Errorf("application.version: %w", err)
	}
	if _, err := ParseVersion(c.Application.EngineVersion); err != nil {
		return fmt.Errorf("application.engine_version: %w", err)
	}
	if c.Model.MaxMaterials == 0 {
		return errors.New("model.max_materials must be greater than 0")
	}
	c.Window.Width = math.Clamp(c.Window.Width, minWindowSize, maxWindowSize)
	c.Window.Height = math.Clamp(c.Window.Height, minWindowSize, maxWindowSize)
	return nil
}

// Version is a semantic version triple as the driver expects it.
type Version struct {
	Major, Minor, Patch uint32
}

// ParseVersion parses "major.minor.patch".
func ParseVersion(s string) (Version, error) {
	var v Version
	n, err := fmt.Sscanf(s, "%d.%d.%d", &v.Major, &v.Minor, &v.Patch)
	if err != nil || n != 3 {
		return Version{}, fmt.Errorf("invalid version %q, expected major.minor.patch", s)
	}
	return v, nil
}
