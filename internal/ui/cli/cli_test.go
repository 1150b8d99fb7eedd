package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndent(t *testing.T) {
	assert.Equal(t, 10, Indent(100, 80))
	assert.Equal(t, 0, Indent(40, 80))
	assert.Equal(t, 0, Indent(0, 10))
}

func TestTable(t *testing.T) {
	out := Table([]string{"Model", "Parameters"}, [][]string{{"eegnet", "1234"}, {"deep_convnet"}})
	for _, want := range []string{"Model", "Parameters", "eegnet", "1234", "deep_convnet"} {
		assert.Contains(t, out, want)
	}
	lines := strings.Split(out, "\n")
	require.Greater(t, len(lines), 3)
	width := lipgloss.Width(lines[0])
	for _, line := range lines {
		assert.Equal(t, width, lipgloss.Width(line), "all table lines should have the same width")
	}
}

func TestPrintCentered(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintCentered(&buf, 10, "ab\n\nabcd\n"))
	assert.Equal(t, "   ab\n\n   abcd\n", buf.String())

	buf.Reset()
	require.NoError(t, PrintCentered(&buf, 0, "ab"))
	assert.Equal(t, "ab\n", buf.String())
}
