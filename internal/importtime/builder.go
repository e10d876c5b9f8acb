package importtime

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"fortio.org/safecast"

	"importwaterfall/internal/trace"
)

// Options controls which top-level imports survive the build.
type Options struct {
	// Module is the entry module; only root children with exactly this
	// name are kept.
	Module string
	// IncludeStartup keeps every root child, including imports the
	// interpreter performs before the entry module.
	IncludeStartup bool
}

func (o Options) keep(name string) bool {
	return o.IncludeStartup || name == o.Module
}

// Stats summarizes a parse pass.
type Stats struct {
	Lines   int // lines read
	Parsed  int // lines that produced a node
	Skipped int // lines ignored (banners, headers, foreign output)
}

// Builder reconstructs a tree from trace lines fed in reverse emission
// order. CPython prints an import after everything it imported, so the
// reversed stream lists each parent before its children and siblings last
// to first.
type Builder struct {
	nodes []node
	stack []NodeID
}

// NewBuilder returns a Builder holding only the synthetic root.
func NewBuilder() *Builder {
	return &Builder{
		nodes: []node{{name: RootName}},
		stack: []NodeID{RootID},
	}
}

// Add attaches line as the first child of the nearest open ancestor one
// level above it and makes it the innermost open node.
func (b *Builder) Add(line Line) NodeID {
	for len(b.stack) > line.Depth() {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.stack[len(b.stack)-1]

	raw, err := safecast.Conv[uint32](len(b.nodes))
	if err != nil {
		panic(fmt.Errorf("import arena overflow: %w", err))
	}
	id := NodeID(raw)
	b.nodes = append(b.nodes, node{
		name:        line.Name,
		self:        line.Self,
		reported:    line.Cumulative,
		hasReported: line.HasCumulative,
		depth:       len(b.stack),
		indentDepth: line.Depth(),
	})
	// appended last-to-first; Finish reverses each list once
	b.nodes[parent].children = append(b.nodes[parent].children, id)
	b.stack = append(b.stack, id)
	return id
}

// Finish restores sibling order, filters the root's children and returns
// the immutable tree. The Builder must not be used afterwards.
func (b *Builder) Finish(opts Options) *Tree {
	for i := range b.nodes {
		slices.Reverse(b.nodes[i].children)
	}
	root := &b.nodes[RootID]
	root.children = slices.DeleteFunc(root.children, func(id NodeID) bool {
		return !opts.keep(b.nodes[id].name)
	})

	t := &Tree{nodes: compact(b.nodes)}
	t.accumulate()
	b.nodes, b.stack = nil, nil
	return t
}

// compact copies the nodes reachable from the root into a fresh pre-order
// arena, renumbering handles.
func compact(nodes []node) []node {
	order := make([]NodeID, 0, len(nodes))
	pending := []NodeID{RootID}
	for len(pending) > 0 {
		id := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		order = append(order, id)
		kids := nodes[id].children
		for i := len(kids) - 1; i >= 0; i-- {
			pending = append(pending, kids[i])
		}
	}

	remap := make(map[NodeID]NodeID, len(order))
	for i, id := range order {
		raw, err := safecast.Conv[uint32](i)
		if err != nil {
			panic(fmt.Errorf("import arena overflow: %w", err))
		}
		remap[id] = NodeID(raw)
	}

	out := make([]node, len(order))
	for i, id := range order {
		n := nodes[id]
		kids := make([]NodeID, len(n.children))
		for j, child := range n.children {
			kids[j] = remap[child]
		}
		n.children = kids
		out[i] = n
	}
	return out
}

// Build reconstructs a tree from lines given in emission order.
func Build(lines []Line, opts Options) *Tree {
	b := NewBuilder()
	for i := len(lines) - 1; i >= 0; i-- {
		b.Add(lines[i])
	}
	return b.Finish(opts)
}

// maxLineLen bounds the bytes kept for one line. Longer lines cannot be
// trace records; they are consumed and skipped.
const maxLineLen = 1 << 20

// Parse reads a raw importtime stream and builds its tree. Lines that are
// not timing records are skipped; only read errors are returned.
func Parse(ctx context.Context, r io.Reader, opts Options) (*Tree, Stats, error) {
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopePhase, "parse", trace.CurrentSpan(ctx).SpanID)

	var (
		stats Stats
		lines []Line
	)
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		raw, tooLong, err := readLine(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.End("read error")
			return nil, stats, fmt.Errorf("failed to read trace: %w", err)
		}
		stats.Lines++
		if tooLong {
			stats.Skipped++
			trace.Point(tracer, trace.ScopeNode, "skip", "line "+strconv.Itoa(stats.Lines)+" too long")
			continue
		}
		line, ok := ParseLine(string(raw))
		if !ok {
			stats.Skipped++
			trace.Point(tracer, trace.ScopeNode, "skip", "line "+strconv.Itoa(stats.Lines))
			continue
		}
		lines = append(lines, line)
	}
	stats.Parsed = len(lines)

	tree := Build(lines, opts)
	if tracer.Level().ShouldEmit(trace.ScopeNode) {
		reportMismatches(tracer, tree)
	}

	span.WithExtra("parsed", strconv.Itoa(stats.Parsed)).
		WithExtra("skipped", strconv.Itoa(stats.Skipped)).
		WithExtra("nodes", strconv.Itoa(tree.Len()-1))
	span.End("")
	return tree, stats, nil
}

// readLine returns the next line without its terminator. A line longer than
// maxLineLen is consumed in full and reported as tooLong with no content.
// io.EOF is returned only when no line is left.
func readLine(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	started := false
	for {
		chunk, isPrefix, readErr := br.ReadLine()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) && started {
				return line, tooLong, nil
			}
			return nil, false, readErr
		}
		started = true
		if !tooLong {
			if len(line)+len(chunk) > maxLineLen {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if !isPrefix {
			return line, tooLong, nil
		}
	}
}

func reportMismatches(tracer trace.Tracer, tree *Tree) {
	tree.Walk(func(id NodeID) bool {
		if n := tree.get(id); n.indentDepth > n.depth {
			trace.Point(tracer, trace.ScopeNode, "depth-mismatch",
				fmt.Sprintf("%s: indented for depth %d, attached at depth %d", n.name, n.indentDepth, n.depth))
		}
		if reported, ok := tree.Reported(id); ok && reported != tree.Cumulative(id) {
			trace.Point(tracer, trace.ScopeNode, "cumulative-mismatch",
				fmt.Sprintf("%s: reported %d, derived %d", tree.Name(id), reported, tree.Cumulative(id)))
		}
		return true
	})
}
