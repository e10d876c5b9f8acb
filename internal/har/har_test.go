package har

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"importwaterfall/internal/importtime"
)

func buildTree(t *testing.T, module string, lines ...string) *importtime.Tree {
	t.Helper()
	tree, _, err := importtime.Parse(context.Background(), strings.NewReader(strings.Join(lines, "\n")), importtime.Options{Module: module})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return tree
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(timeLayout, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestExportLeaf(t *testing.T) {
	tree := buildTree(t, "leaf", "import time:         5 |          5 | leaf")
	doc := Export(tree, Meta{Module: "leaf", RuntimeVersion: "3.12.1"})

	if len(doc.Log.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(doc.Log.Entries))
	}
	e := doc.Log.Entries[0]
	if e.Time != 5 || e.Timings.Receive != 5 || e.Timings.Wait != 0 {
		t.Fatalf("time/receive/wait = %d/%d/%d, want 5/5/0", e.Time, e.Timings.Receive, e.Timings.Wait)
	}
	if e.Request.URL != "leaf" || e.StartedDateTime != "1991-07-05T00:00:00.000Z" {
		t.Fatalf("entry = %+v", e)
	}
	if got := doc.Log.Pages[0].Title; got != "`import leaf` 3.12.1" {
		t.Fatalf("title = %q", got)
	}
}

func TestExportNesting(t *testing.T) {
	tree := buildTree(t, "pkg",
		"import time:         4 |          4 |     pkg.a.deep",
		"import time:         2 |          6 |   pkg.a",
		"import time:         3 |          3 |   pkg.b",
		"import time:         1 |         10 | pkg",
	)
	doc := Export(tree, Meta{Module: "pkg"})

	want := []string{"pkg.a.deep", "pkg.a", "pkg.b", "pkg"}
	if len(doc.Log.Entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(doc.Log.Entries), len(want))
	}
	byName := make(map[string]Entry)
	for i, e := range doc.Log.Entries {
		if e.Request.URL != want[i] {
			t.Fatalf("entry %d = %q, want %q", i, e.Request.URL, want[i])
		}
		if e.Time != e.Timings.Wait+e.Timings.Receive {
			t.Fatalf("%s: time %d != wait %d + receive %d", e.Request.URL, e.Time, e.Timings.Wait, e.Timings.Receive)
		}
		byName[e.Request.URL] = e
	}

	contains := func(parent, child string) {
		p, c := byName[parent], byName[child]
		pStart, cStart := mustTime(t, p.StartedDateTime), mustTime(t, c.StartedDateTime)
		pEnd := pStart.Add(time.Duration(p.Time) * Unit)
		cEnd := cStart.Add(time.Duration(c.Time) * Unit)
		if !pStart.Before(cStart) || cEnd.After(pEnd) {
			t.Fatalf("%s [%s, %s] does not contain %s [%s, %s]", parent, pStart, pEnd, child, cStart, cEnd)
		}
	}
	contains("pkg", "pkg.a")
	contains("pkg", "pkg.b")
	contains("pkg.a", "pkg.a.deep")

	if got := byName["pkg"].Time; got != 10 {
		t.Fatalf("pkg time = %d, want 10", got)
	}
	if got := byName["pkg"].Timings.Receive; got != 1 {
		t.Fatalf("pkg receive = %d, want 1", got)
	}
}

func TestExportEmptyTree(t *testing.T) {
	tree := buildTree(t, "pkg")
	doc := Export(tree, Meta{Module: "pkg", RuntimeVersion: "unknown"})
	if doc.Log.Entries == nil || len(doc.Log.Entries) != 0 {
		t.Fatalf("entries = %#v, want empty non-nil slice", doc.Log.Entries)
	}
	if got := doc.Log.Pages[0].Title; got != "`import pkg` unknown" {
		t.Fatalf("title = %q", got)
	}
}

func TestExportCustomEpoch(t *testing.T) {
	tree := buildTree(t, "leaf", "import time:         5 |          5 | leaf")
	epoch := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	doc := Export(tree, Meta{Module: "leaf", Epoch: epoch})
	if got := doc.Log.Pages[0].StartedDateTime; got != "2024-01-02T03:04:05.000Z" {
		t.Fatalf("page start = %q", got)
	}
}

func TestWriteSingleLine(t *testing.T) {
	tree := buildTree(t, "leaf", "import time:         5 |          5 | leaf")
	var buf bytes.Buffer
	if err := Write(&buf, Export(tree, Meta{Module: "leaf", RuntimeVersion: "3.12"})); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "\n") != 1 || !strings.HasSuffix(out, "\n") {
		t.Fatalf("output is not one line: %q", out)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	log, ok := decoded["log"].(map[string]any)
	if !ok || log["version"] != "1.2" {
		t.Fatalf("log = %v", decoded["log"])
	}
	entry := log["entries"].([]any)[0].(map[string]any)
	if entry["page_ref"] != "page0" {
		t.Fatalf("entry page reference = %v", entry)
	}
}

func TestExportZeroSelfParentContainsChildren(t *testing.T) {
	tree := buildTree(t, "pkg",
		"import time:         5 |          5 |   pkg.sub",
		"import time:         0 |          5 | pkg",
	)
	doc := Export(tree, Meta{Module: "pkg"})
	sub, pkg := doc.Log.Entries[0], doc.Log.Entries[1]
	if pkg.Time != 5 || pkg.Timings.Wait != 5 || pkg.Timings.Receive != 0 {
		t.Fatalf("pkg time/wait/receive = %d/%d/%d, want 5/5/0", pkg.Time, pkg.Timings.Wait, pkg.Timings.Receive)
	}
	if sub.StartedDateTime != pkg.StartedDateTime || sub.Time != 5 {
		t.Fatalf("sub = %+v, pkg = %+v", sub, pkg)
	}
}
