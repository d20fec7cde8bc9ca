// Package config loads the YAML settings of dcmctl: logging, render
// defaults, output compression and the lookup table cache.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
	"github.com/jpfielding/dcmimage.go/pkg/logging"
	"github.com/jpfielding/dcmimage.go/pkg/lut"
	"github.com/jpfielding/dcmimage.go/pkg/output"
	"github.com/jpfielding/dcmimage.go/pkg/render"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration loaded from YAML
type Config struct {
	Log struct {
		// Level is DEBUG, INFO, WARN or ERROR
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
		// File enables rotated file logging when set
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`

	Render struct {
		// Window and Level override the defaults of each frame when both
		// are set
		Window               *float64 `yaml:"window,omitempty"`
		Level                *float64 `yaml:"level,omitempty"`
		VOILUTShape          string   `yaml:"voi_lut_shape"`
		ApplyPixelPadding    bool     `yaml:"apply_pixel_padding"`
		InverseLUT           bool     `yaml:"inverse_lut"`
		FillOutsideLUTRange  bool     `yaml:"fill_outside_lut_range"`
		AllowWinLevelOnColor bool     `yaml:"allow_win_level_on_color"`
		KeepRGBForLossyJPEG  bool     `yaml:"keep_rgb_for_lossy_jpeg"`
		// OverlayColor is #RRGGBB
		OverlayColor string `yaml:"overlay_color"`
	} `yaml:"render"`

	Output struct {
		// TransferSyntax is a UID
		TransferSyntax         string `yaml:"transfer_syntax"`
		CompressionQuality     int    `yaml:"compression_quality"`
		CompressionRatioFactor int    `yaml:"compression_ratio_factor"`
		NearLosslessError      int    `yaml:"near_lossless_error"`
		Prediction             int    `yaml:"prediction"`
		PointTransform         int    `yaml:"point_transform"`
	} `yaml:"output"`

	Cache struct {
		// StrongEntries is the count of lookup tables held past their last
		// use
		StrongEntries int `yaml:"strong_entries"`
	} `yaml:"cache"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Log.Level = "INFO"
	cfg.Log.MaxSizeMB = 100
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 28

	cfg.Render.VOILUTShape = lut.Linear.Function.String()
	cfg.Render.ApplyPixelPadding = true
	cfg.Render.OverlayColor = "#FFFFFF"

	cfg.Output.TransferSyntax = string(transfer.ExplicitVRLittleEndian)
	cfg.Output.CompressionQuality = 80
	cfg.Output.Prediction = 1

	cfg.Cache.StrongEntries = 32
	return cfg
}

// LoadConfig reads a YAML file over the defaults. A missing file yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration as YAML, creating its directory
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks every section
func (c *Config) Validate() error {
	var errs []error
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		errs = append(errs, errors.New("log: negative rotation limit"))
	}
	if (c.Render.Window == nil) != (c.Render.Level == nil) {
		errs = append(errs, errors.New("render: window and level go together"))
	}
	if c.Render.Window != nil && *c.Render.Window < 1 {
		errs = append(errs, fmt.Errorf("render.window: %g below 1", *c.Render.Window))
	}
	if _, ok := lut.ShapeByName(c.Render.VOILUTShape); !ok {
		errs = append(errs, fmt.Errorf("render.voi_lut_shape: unknown shape %q", c.Render.VOILUTShape))
	}
	if _, err := parseColor(c.Render.OverlayColor); err != nil {
		errs = append(errs, fmt.Errorf("render.overlay_color: %w", err))
	}
	if _, err := c.WriteParam(); err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}
	if c.Cache.StrongEntries < 0 {
		errs = append(errs, fmt.Errorf("cache.strong_entries: %d is negative", c.Cache.StrongEntries))
	}
	return errors.Join(errs...)
}

// ReadParam returns the render settings
func (c *Config) ReadParam() *render.ReadParam {
	p := render.NewReadParam()
	if c.Render.Window != nil && c.Render.Level != nil {
		p.SetWindowLevel(*c.Render.Window, *c.Render.Level)
	}
	if shape, ok := lut.ShapeByName(c.Render.VOILUTShape); ok {
		p.SetShape(shape)
	}
	p.SetPixelPadding(c.Render.ApplyPixelPadding)
	p.InverseLUT = c.Render.InverseLUT
	p.FillOutsideLUTRange = c.Render.FillOutsideLUTRange
	p.AllowWinLevelOnColor = c.Render.AllowWinLevelOnColor
	p.KeepRGBForLossyJPEG = c.Render.KeepRGBForLossyJPEG
	if rgba, err := parseColor(c.Render.OverlayColor); err == nil {
		p.OverlayColor = rgba
	}
	return p
}

// WriteParam returns the output settings
func (c *Config) WriteParam() (*output.WriteParam, error) {
	ts := transfer.FromUID(strings.TrimSpace(c.Output.TransferSyntax))
	if ts.Name() == string(ts) {
		return nil, fmt.Errorf("unknown transfer syntax %q", c.Output.TransferSyntax)
	}
	p := output.NewWriteParam(ts)
	p.CompressionQuality = c.Output.CompressionQuality
	if c.Output.CompressionRatioFactor > 0 {
		p.CompressionRatioFactor = c.Output.CompressionRatioFactor
	}
	if c.Output.NearLosslessError > 0 {
		p.NearLosslessError = c.Output.NearLosslessError
	}
	p.Prediction = c.Output.Prediction
	p.PointTransform = c.Output.PointTransform
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LogFile returns the rotation settings of the log file
func (c *Config) LogFile() logging.FileConfig {
	return logging.FileConfig{
		Path:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}

// LUTCache returns a lookup table cache sized by the cache section
func (c *Config) LUTCache() *lut.Cache {
	return lut.NewCache(c.Cache.StrongEntries)
}

func parseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("%q is not #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%q is not #RRGGBB", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}
