package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "vantage.log")
	l, err := New(Config{Level: "debug", File: path})
	require.NoError(t, err)

	zl := l.Zerolog()
	zl.Info().Str("component", "test").Msg("hello")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), "hello")
}

func TestNewBadLevelFallsBack(t *testing.T) {
	l, err := New(Config{Level: "chatty", Console: true})
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, "info", l.Zerolog().GetLevel().String())
}

func TestRedactionInLogOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vantage.log")
	l, err := New(Config{Level: "info", File: path, Redaction: true})
	require.NoError(t, err)

	zl := l.Zerolog()
	zl.Info().Str("key", "sk-ant-REDACTED").Msg("configured")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-ant-REDACTED")
	assert.Contains(t, string(data), "[REDACTED]")
}

func TestRedactor(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		in   string
		safe bool
	}{
		{"anthropic key", "using sk-ant-REDACTED", false},
		{"openai key", "using sk-abcdefghijklmnopqrstuvwx", false},
		{"bearer", "Authorization: Bearer abc.def.ghi", false},
		{"password", `password="hunter2hunter2"`, false},
		{"plain text", "revenue by month", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Redact(tt.in)
			if tt.safe {
				assert.Equal(t, tt.in, out)
			} else {
				assert.Contains(t, out, "[REDACTED]")
			}
		})
	}
}

func TestRedactorAddPattern(t *testing.T) {
	r := NewRedactor()
	require.NoError(t, r.AddPattern(`vnt-[0-9]+`))
	assert.Equal(t, "[REDACTED] ok", r.Redact("vnt-12345 ok"))
	assert.Error(t, r.AddPattern(`([`))
}

func TestRedactingWriterReportsFullLength(t *testing.T) {
	var sb strings.Builder
	w := NewRedactor().Wrap(&sb)
	msg := []byte("key sk-ant-REDACTED end\n")
	n, err := w.Write(msg)
	require.NoError(t, err)
	assert.Equal(t, len(msg), n)
}
