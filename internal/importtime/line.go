package importtime

import (
	"strconv"
	"strings"
)

// Marker prefixes every line of interest in an importtime trace.
const Marker = "import time:"

// Delimiter separates the fields of a trace line.
const Delimiter = "|"

// indentStep is the number of spaces CPython adds per nesting level.
const indentStep = 2

// Line is one parsed record of an importtime trace.
type Line struct {
	Self          int64  // time spent in the module body alone
	Cumulative    int64  // reported cumulative time (valid if HasCumulative)
	HasCumulative bool   // false for the two-field trace variant
	Indent        int    // raw leading-space count of the name field
	Name          string // dotted module path, whitespace stripped
}

// Depth returns the nesting level encoded by the line's indentation.
// Top-level imports have depth 1.
func (l Line) Depth() int {
	return l.Indent/indentStep + 1
}

// ParseLine decodes a single trace line. It reports false for lines that
// carry no timing record: anything without the marker, header rows and
// rows whose numeric fields do not parse.
func ParseLine(raw string) (Line, bool) {
	raw = strings.TrimRight(raw, "\r\n")
	rest, ok := strings.CutPrefix(raw, Marker)
	if !ok {
		return Line{}, false
	}
	fields := strings.Split(rest, Delimiter)

	var line Line
	switch len(fields) {
	case 2:
		self, ok := parseTime(fields[0])
		if !ok {
			return Line{}, false
		}
		line.Self = self
	case 3:
		self, ok := parseTime(fields[0])
		if !ok {
			return Line{}, false
		}
		cum, ok := parseTime(fields[1])
		if !ok {
			return Line{}, false
		}
		line.Self = self
		line.Cumulative = cum
		line.HasCumulative = true
	default:
		return Line{}, false
	}

	field := fields[len(fields)-1]
	// a single space follows the delimiter; everything after it is indentation
	field = strings.TrimPrefix(field, " ")
	name := strings.TrimLeft(field, " ")
	line.Indent = len(field) - len(name)
	line.Name = strings.TrimRight(name, " \t")
	if line.Name == "" {
		return Line{}, false
	}
	return line, true
}

func parseTime(field string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
