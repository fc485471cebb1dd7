// Package output formats command results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Format is the output format.
type Format string

const (
	// FormatAuto picks FormatTable on a terminal and FormatJSON otherwise.
	FormatAuto Format = "auto"
	// FormatTable prints a key/value table.
	FormatTable Format = "table"
	// FormatJSON prints indented JSON.
	FormatJSON Format = "json"
	// FormatYAML prints YAML.
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return FormatAuto, nil
	case "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: auto, table, json, yaml)", s)
	}
}

// Resolve turns FormatAuto into a concrete format for w.
func Resolve(f Format, w io.Writer) Format {
	if f != FormatAuto {
		return f
	}

	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return FormatTable
	}

	return FormatJSON
}

// Pairer is implemented by values that render as a key/value table.
type Pairer interface {
	Pairs() [][2]string
}

// Printer writes values to out in one format.
type Printer struct {
	out    io.Writer
	format Format
}

// NewPrinter returns a printer for out. FormatAuto is resolved against out.
func NewPrinter(out io.Writer, format Format) *Printer {
	return &Printer{out: out, format: Resolve(format, out)}
}

// Format returns the resolved format.
func (p *Printer) Format() Format {
	return p.format
}

// Print writes data in the printer's format. Table output requires data to
// implement Pairer and falls back to JSON otherwise.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatTable:
		if pairer, ok := data.(Pairer); ok {
			return SimpleTable(p.out, pairer.Pairs())
		}

		return PrintJSON(p.out, data)
	case FormatJSON:
		return PrintJSON(p.out, data)
	case FormatYAML:
		return PrintYAML(p.out, data)
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}
}

// PrintJSON writes data as indented JSON.
func PrintJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(data)
}

// PrintYAML writes data as YAML.
func PrintYAML(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(data)
	if err != nil {
		return err
	}

	return enc.Close()
}
