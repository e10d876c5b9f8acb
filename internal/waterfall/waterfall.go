// Package waterfall prints an import timing tree as an indented list with
// optional proportional bars.
package waterfall

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"importwaterfall/internal/importtime"
)

// Options controls what is printed and how.
type Options struct {
	// SortByCumulative orders siblings by cumulative time, largest first.
	// The tree itself is left untouched.
	SortByCumulative bool
	// MaxDepth prunes nodes at this depth and below, counting top-level
	// imports as depth 0. Zero means unlimited.
	MaxDepth int
	// HideUnder prunes nodes whose cumulative time is below it. Zero
	// means unlimited.
	HideUnder int64
	// Cumulative scales bars by cumulative time instead of self time.
	Cumulative bool
	// Width is the bar width in cells, usually the terminal width.
	// Zero prints plain lines.
	Width int
	// Filled and Empty style the two parts of each bar.
	Filled lipgloss.Style
	Empty  lipgloss.Style
}

// DefaultStyles returns the red-on-default bar styling.
func DefaultStyles() (filled, empty lipgloss.Style) {
	return lipgloss.NewStyle().Background(lipgloss.Color("1")), lipgloss.NewStyle()
}

// Label formats the text of one node: its name followed by cumulative and
// self time, or just self time when the two are equal.
func Label(name string, cumulative, self int64, depth int) string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(name)
	sb.WriteString(" (")
	if cumulative != self {
		sb.WriteString(strconv.FormatInt(cumulative, 10))
		sb.WriteString(", ")
	}
	sb.WriteString(strconv.FormatInt(self, 10))
	sb.WriteString(")")
	return sb.String()
}

type renderer struct {
	tree  *importtime.Tree
	opts  Options
	scale int64
	out   *bufio.Writer
}

// Render writes one line per visited node of tree to w. A tree whose root
// has no children produces no output.
func Render(w io.Writer, tree *importtime.Tree, opts Options) error {
	r := &renderer{tree: tree, opts: opts, out: bufio.NewWriter(w)}
	if opts.Cumulative {
		r.scale = tree.MaxCumulative()
	} else {
		r.scale = tree.MaxSelf()
	}
	for _, child := range r.children(tree.Root()) {
		r.visit(child, 0)
	}
	return r.out.Flush()
}

func (r *renderer) children(id importtime.NodeID) []importtime.NodeID {
	kids := r.tree.Children(id)
	if r.opts.SortByCumulative {
		slices.SortStableFunc(kids, func(a, b importtime.NodeID) int {
			return cmp.Compare(r.tree.Cumulative(b), r.tree.Cumulative(a))
		})
	}
	return kids
}

func (r *renderer) pruned(id importtime.NodeID, depth int) bool {
	if r.opts.MaxDepth > 0 && depth >= r.opts.MaxDepth {
		return true
	}
	return r.opts.HideUnder > 0 && r.tree.Cumulative(id) < r.opts.HideUnder
}

func (r *renderer) visit(id importtime.NodeID, depth int) {
	if r.pruned(id, depth) {
		return
	}
	cum, self := r.tree.Cumulative(id), r.tree.Self(id)
	line := Label(r.tree.Name(id), cum, self, depth)
	if r.opts.Width > 0 {
		measure := self
		if r.opts.Cumulative {
			measure = cum
		}
		line = r.bar(line, measure)
	}
	// write errors surface from Flush
	_, _ = fmt.Fprintln(r.out, line)

	for _, child := range r.children(id) {
		r.visit(child, depth+1)
	}
}

// bar pads line to the configured width and styles the leading share
// proportional to measure.
func (r *renderer) bar(line string, measure int64) string {
	width := r.opts.Width
	padded := runewidth.FillRight(line, width)
	filled := Filled(measure, r.scale, width)
	left := runewidth.Truncate(padded, filled, "")
	right := padded[len(left):]
	return r.opts.Filled.Render(left) + r.opts.Empty.Render(right)
}

// Filled returns how many of width cells represent measure out of scale,
// rounded down. A zero scale fills nothing.
func Filled(measure, scale int64, width int) int {
	if scale <= 0 || measure <= 0 || width <= 0 {
		return 0
	}
	w, err := safecast.Conv[int64](width)
	if err != nil {
		return 0
	}
	cells := measure * w / scale
	n, err := safecast.Conv[int](min(cells, w))
	if err != nil {
		return width
	}
	return n
}
