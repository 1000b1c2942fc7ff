package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-crypto-datautil/internal/config"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestComponentLoggerAddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: "info", Format: "json", ContextFields: map[string]string{"service": "datautil"}}
	lm := NewLoggerManagerWithWriter(cfg, &buf)

	ctx := WithExchange(context.Background(), "bybit")
	ctx = WithSymbol(ctx, "BTCUSD")
	id := "6f1c2b8e-2d4a-4c59-9a57-0c1f7d3e9b21"
	ctx = WithJobID(ctx, id)
	assert.Equal(t, id, JobID(ctx))

	cl := lm.GetComponentLogger("cache")
	cl.InfoContext(ctx, "read csv", "rows", 10)
	cl.Info("no context")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 2)
	rec := recs[0]
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "read csv", rec["msg"])
	assert.Equal(t, "cache", rec["component"])
	assert.Equal(t, "bybit", rec["exchange"])
	assert.Equal(t, "BTCUSD", rec["symbol"])
	assert.Equal(t, id, rec["job_id"])
	assert.Equal(t, "datautil", rec["service"])
	assert.EqualValues(t, 10, rec["rows"])
	assert.True(t, strings.HasSuffix(rec["time"].(string), "Z"))

	assert.NotContains(t, recs[1], "job_id")
}

func TestComponentLoggerIsCached(t *testing.T) {
	lm := NewLoggerManagerWithWriter(config.LoggingConfig{Level: "info"}, &bytes.Buffer{})
	a := lm.GetComponentLogger("exchange")
	b := lm.GetComponentLogger("exchange")
	assert.Same(t, a, b)
	assert.Equal(t, "exchange", a.Component())
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	lm := NewLoggerManagerWithWriter(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	log := lm.GetLogger()
	log.Info("hidden")
	log.Warn("shown")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "WARN", recs[0]["level"])
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	lm := NewLoggerManagerWithWriter(config.LoggingConfig{Level: "info", Format: "TEXT"}, &buf)
	lm.GetLogger().With("day", "20210101").Info("partition written")
	assert.Contains(t, buf.String(), `msg="partition written" day=20210101`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}

func TestFileOutputUsesRotatingWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "datautil.log")
	lm, err := NewLoggerManager(config.LoggingConfig{Level: "info", Format: "text", Output: "file", FilePath: path, MaxSize: 1})
	require.NoError(t, err)

	lm.GetLogger().Info("to file")
	require.NoError(t, lm.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestFileOutputRequiresPath(t *testing.T) {
	_, err := NewLoggerManager(config.LoggingConfig{Output: "file"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, slog.Default(), OrDefault(nil))
	d := Discard()
	assert.False(t, d.Enabled(context.Background(), slog.LevelError))
	assert.Empty(t, JobID(context.Background()))
}
