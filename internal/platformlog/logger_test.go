package platformlog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLogger(t *testing.T, level, format string) (*engineLogger, *bytes.Buffer) {
	t.Helper()
	l := New("test-service").(*engineLogger)
	l.level = level
	l.format = format
	var buf bytes.Buffer
	l.SetOutput(&buf)
	return l, &buf
}

func TestInfoLogsMessageAndFields(t *testing.T) {
	l, buf := newTestLogger(t, "INFO", "text")
	l.Info("record synced", map[string]interface{}{"seller": "s1"})

	out := buf.String()
	assert.Contains(t, out, "record synced")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "seller=s1")
}

func TestDebugIsSuppressedBelowInfoLevel(t *testing.T) {
	l, buf := newTestLogger(t, "INFO", "text")
	l.Debug("verbose detail", nil)
	assert.Empty(t, buf.String())
}

func TestJSONFormatProducesParseableFields(t *testing.T) {
	l, buf := newTestLogger(t, "INFO", "json")
	l.Info("hello", map[string]interface{}{"job_id": "j1"})

	out := buf.String()
	assert.Contains(t, out, `"message":"hello"`)
	assert.Contains(t, out, `"job_id":"j1"`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "}"))
}

func TestWithComponentTagsSubsequentLines(t *testing.T) {
	l, buf := newTestLogger(t, "INFO", "text")
	scoped := l.WithComponent("sync/orchestrator")
	scoped.Info("tick", nil)
	assert.Contains(t, buf.String(), "sync/orchestrator")
}

func TestErrorSuppressesBurstsWithinInterval(t *testing.T) {
	l, buf := newTestLogger(t, "INFO", "text")
	l.Error("first", nil)
	firstLen := buf.Len()
	l.Error("second", nil)
	assert.Equal(t, firstLen, buf.Len(), "a second Error call within the rate-limit interval must be dropped")
}

func TestNoopLoggerDiscardsEverythingAndIsChainable(t *testing.T) {
	n := Noop()
	n.Info("ignored", nil)
	scoped := n.WithComponent("anything")
	scoped.Error("also ignored", nil)
}
