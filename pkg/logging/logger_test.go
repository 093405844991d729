package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txmgr/pkg/primitives"
)

func TestInitWritesToFile(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	path := filepath.Join(t.TempDir(), "logs", "tm.log")
	require.NoError(t, Init(Config{Level: LevelDebug, OutputPath: path, Format: "json"}))
	assert.Error(t, Init(Config{}), "second Init must fail")

	WithThread(GetLogger(), primitives.ThreadID(4)).Debug("lock acquired", "resource", "acct")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"thread":4`)
	assert.Contains(t, string(data), `"resource":"acct"`)
	assert.Contains(t, string(data), `"msg":"lock acquired"`)
}

func TestAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", LevelDebug)

	log.Info("released", Thread(7), Err(errors.New("boom")))
	log.Info("nothing failed", Err(nil))

	out := buf.String()
	assert.Contains(t, out, `"thread":7`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"error":"<nil>"`)
}

func TestGetLoggerLazyDefault(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	assert.NotNil(t, GetLogger())
	assert.NotNil(t, WithComponent("detector"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "text", LevelWarn)

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
