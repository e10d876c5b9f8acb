package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"off", "ERROR", "Phase", "detail", "debug"} {
		lvl, err := ParseLevel(s)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", s, err)
		}
		if lvl.String() != strings.ToLower(s) {
			t.Fatalf("ParseLevel(%q) = %s", s, lvl)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("ParseLevel(verbose) succeeded, want error")
	}
}

func TestShouldEmit(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelPhase, ScopePhase, true},
		{LevelPhase, ScopeRun, false},
		{LevelDetail, ScopeRun, true},
		{LevelDetail, ScopeNode, false},
		{LevelDebug, ScopeNode, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Fatalf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestFormatText(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := &Event{
		Time:   start.Add(1500 * time.Microsecond),
		Kind:   KindSpanEnd,
		Scope:  ScopeRun,
		Name:   "run 2",
		Detail: "ok",
		Extra:  map[string]string{"wall": "3ms", "bytes": "10"},
	}
	got := string(FormatEvent(ev, FormatText, start))
	want := "[    1.500ms]     ← run 2 (ok) {bytes=10, wall=3ms}\n"
	if got != want {
		t.Fatalf("FormatEvent = %q, want %q", got, want)
	}
}

func TestFormatNDJSON(t *testing.T) {
	ev := &Event{Time: time.Now(), Seq: 7, Kind: KindPoint, Scope: ScopeNode, Name: "skip", Detail: "line 3"}
	data := FormatEvent(ev, FormatNDJSON, time.Time{})
	if !bytes.HasSuffix(data, []byte("\n")) {
		t.Fatalf("NDJSON line lacks newline: %q", data)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["kind"] != "point" || decoded["scope"] != "node" || decoded["detail"] != "line 3" {
		t.Fatalf("decoded = %v", decoded)
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]Format{
		"trace.ndjson": FormatNDJSON,
		"trace.jsonl":  FormatNDJSON,
		"trace.log":    FormatText,
		"":             FormatText,
	}
	for path, want := range tests {
		if got := formatFor(FormatAuto, path); got != want {
			t.Fatalf("formatFor(%q) = %d, want %d", path, got, want)
		}
	}
	if got := formatFor(FormatText, "x.ndjson"); got != FormatText {
		t.Fatalf("explicit format overridden: %d", got)
	}
}

func TestStreamTracerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewStreamTracer(&buf, LevelPhase, FormatText)
	ctx := WithTracer(context.Background(), tracer)

	ctx, driver := StartSpan(ctx, ScopeDriver, "importwaterfall")
	_, run := StartSpan(ctx, ScopeRun, "run 1")
	run.End("")
	Point(tracer, ScopeNode, "skip", "")
	driver.End("")

	out := buf.String()
	if strings.Count(out, "\n") != 2 {
		t.Fatalf("got %q, want only the driver span", out)
	}
	if strings.Contains(out, "run 1") || strings.Contains(out, "skip") {
		t.Fatalf("finer events leaked: %q", out)
	}
}

func TestStartSpanPropagatesParent(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewStreamTracer(&buf, LevelDebug, FormatNDJSON)
	ctx := WithTracer(context.Background(), tracer)

	ctx, outer := StartSpan(ctx, ScopePhase, "acquire")
	_, inner := StartSpan(ctx, ScopeRun, "run 1")
	if inner.parentID != outer.ID() || outer.ID() == 0 {
		t.Fatalf("inner parent = %d, outer id = %d", inner.parentID, outer.ID())
	}
	inner.End("")
	outer.End("")
}

func TestNopTracer(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatalf("FromContext without tracer is not Nop")
	}
	span := Begin(Nop, ScopeDriver, "x", 0)
	if span.ID() != 0 {
		t.Fatalf("Nop span id = %d, want 0", span.ID())
	}
	span.WithExtra("k", "v").End("")
}

func TestHeartbeatStop(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewStreamTracer(&buf, LevelPhase, FormatText)
	hb := StartHeartbeat(tracer, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	hb.Stop()
	hb.Stop()
	if !strings.Contains(buf.String(), "heartbeat (#1 after") {
		t.Fatalf("no heartbeat emitted: %q", buf.String())
	}

	var nilHB *Heartbeat
	nilHB.Stop()
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Fatalf("StartHeartbeat(Nop) != nil")
	}
}
