package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Status("🔎", "probing backends")

	assert.Equal(t, "🔎 probing backends\n", buf.String())
}

func TestWriter_StatusWithoutIcon(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Status("", "indented detail line")

	assert.Equal(t, "   indented detail line\n", buf.String())
}

func TestWriter_SuccessWarningError(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Successf("ingested %d documents", 3)
	w.Warningf("%s degraded", "graph")
	w.Errorf("%s unreachable", "cloudsearch")

	out := buf.String()
	assert.Contains(t, out, "✅ ingested 3 documents")
	assert.Contains(t, out, "⚠️  graph degraded")
	assert.Contains(t, out, "❌ cloudsearch unreachable")
}

func TestWriter_Newline(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Newline()

	assert.Equal(t, "\n", buf.String())
}
