package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type summary struct {
	Reads  int `json:"reads" yaml:"reads"`
	Writes int `json:"writes" yaml:"writes"`
}

func (s summary) Pairs() [][2]string {
	return [][2]string{{"reads", "4"}, {"writes", "3"}}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"":      FormatAuto,
		"auto":  FormatAuto,
		"TABLE": FormatTable,
		"json":  FormatJSON,
		"yml":   FormatYAML,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("csv")
	require.Error(t, err)
}

func TestResolve_UsesJSONWhenWriterIsNotATerminal(t *testing.T) {
	var buf bytes.Buffer

	assert.Equal(t, FormatJSON, Resolve(FormatAuto, &buf))
	assert.Equal(t, FormatYAML, Resolve(FormatYAML, &buf))
}

func TestPrinter_Print(t *testing.T) {
	data := summary{Reads: 4, Writes: 3}

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatJSON).Print(data))

	var got summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, data, got)

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatYAML).Print(data))
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, data, got)

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatTable).Print(data))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "reads")
	assert.Contains(t, lines[0], "4")
	assert.Contains(t, lines[1], "writes")
}
