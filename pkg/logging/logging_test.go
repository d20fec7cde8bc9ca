package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_ContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, true, slog.LevelInfo)

	ctx := AppendCtx(context.Background(), slog.String("tool", "dcmctl"))
	ctx = AppendCtx(ctx, slog.Int("frame", 3))
	log.InfoContext(ctx, "decoded", slog.String("syntax", "rle"))
	log.DebugContext(ctx, "filtered")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "decoded", rec["msg"])
	assert.Equal(t, "dcmctl", rec["tool"])
	assert.Equal(t, float64(3), rec["frame"])
	assert.Equal(t, "rle", rec["syntax"])
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")), "debug is below the level")
}

func TestLogger_TextWithGroup(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, false, slog.LevelDebug).WithGroup("reader")
	log.DebugContext(AppendCtx(context.Background(), slog.String("path", "a.dcm")), "open")
	assert.Contains(t, buf.String(), "msg=open")
	assert.Contains(t, buf.String(), "reader.path=a.dcm")
}

func TestParseLevel(t *testing.T) {
	level, ok := ParseLevel(" warn ")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelWarn, level)

	level, ok = ParseLevel("loud")
	assert.False(t, ok)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestRotatingWriter_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "dcmctl.log")
	w := RotatingWriter(FileConfig{Path: path, MaxSizeMB: 1, MaxBackups: 2})
	log := Logger(w, false, slog.LevelInfo)
	log.Info("written")
	require.NoError(t, w.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "msg=written")
}
