package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlainResultRendering(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithColor(&buf, false)

	w.Result(1, "Coffee notes", 0.9231, "a snippet about espresso")

	out := buf.String()
	assert.Contains(t, out, " 1. Coffee notes")
	assert.Contains(t, out, "(0.923)")
	assert.Contains(t, out, "    a snippet about espresso")
	assert.NotContains(t, out, "\x1b[", "plain mode must not emit escape codes")
}

func TestUntitledResult(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithColor(&buf, false)

	w.Result(2, "", 0.5, "")
	assert.Contains(t, buf.String(), "(untitled)")
}

func TestFieldAlignment(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithColor(&buf, false)

	w.Field("chunks", "42")
	w.Field("recordings", "7")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "chunks")
	assert.Contains(t, lines[0], "42")
}

func TestErrorAndWarningPrefixes(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithColor(&buf, false)

	w.Error("it broke")
	w.Warning("it might break")

	assert.Contains(t, buf.String(), "error: it broke")
	assert.Contains(t, buf.String(), "warning: it might break")
}

func TestTiming(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithColor(&buf, false)

	w.Timing(1234567 * time.Microsecond)
	assert.Contains(t, buf.String(), "took 1.235s")
}

func TestNewOnBufferDisablesColor(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	w.Heading("hello")
	assert.Equal(t, "hello\n", buf.String())
}
