package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	p, err := cfg.WriteParam()
	require.NoError(t, err)
	assert.Equal(t, transfer.ExplicitVRLittleEndian, p.Syntax)
	assert.Equal(t, 80, p.CompressionQuality)

	rp := cfg.ReadParam()
	_, _, ok := rp.WindowLevel()
	assert.False(t, ok)
	assert.True(t, rp.PixelPadding())
	assert.Equal(t, color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}, rp.OverlayColor)
}

func TestLoadConfig_Missing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dcmctl.yaml")
	cfg := DefaultConfig()
	w, l := 400.0, 40.0
	cfg.Render.Window, cfg.Render.Level = &w, &l
	cfg.Render.VOILUTShape = "sigmoid"
	cfg.Output.TransferSyntax = string(transfer.RLELossless)
	cfg.Log.File = "/var/log/dcmctl.log"
	require.NoError(t, SaveConfig(cfg, path))

	back, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)

	window, level, ok := back.ReadParam().WindowLevel()
	require.True(t, ok)
	assert.Equal(t, 400.0, window)
	assert.Equal(t, 40.0, level)
	shape, ok := back.ReadParam().Shape()
	require.True(t, ok)
	assert.Equal(t, "Sigmoid", shape.Explanation)
	assert.Equal(t, "/var/log/dcmctl.log", back.LogFile().Path)
	assert.NotNil(t, back.LUTCache())
}

func TestLoadConfig_Partial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dcmctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  transfer_syntax: 1.2.840.10008.1.2.4.70\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	p, err := cfg.WriteParam()
	require.NoError(t, err)
	assert.Equal(t, transfer.JPEGLosslessSV1, p.Syntax)
	assert.Equal(t, "INFO", cfg.Log.Level, "defaults kept")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
		{"window alone", func(c *Config) { w := 10.0; c.Render.Window = &w }, "window and level"},
		{"shape", func(c *Config) { c.Render.VOILUTShape = "cubic" }, "voi_lut_shape"},
		{"color", func(c *Config) { c.Render.OverlayColor = "red" }, "overlay_color"},
		{"syntax", func(c *Config) { c.Output.TransferSyntax = "1.2.3" }, "unknown transfer syntax"},
		{"sv1 prediction", func(c *Config) {
			c.Output.TransferSyntax = string(transfer.JPEGLosslessSV1)
			c.Output.Prediction = 4
		}, "requires prediction 1"},
		{"cache", func(c *Config) { c.Cache.StrongEntries = -1 }, "strong_entries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dcmctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [unclosed"), 0o644))
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "parsing config file")

	require.NoError(t, os.WriteFile(path, []byte("cache:\n  strong_entries: -4\n"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "strong_entries")
}
