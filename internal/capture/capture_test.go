package capture

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"importwaterfall/internal/sample"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := sample.Config{Python: "python3.12", Module: "pkg"}
	res := &sample.Result{
		Stderr:  []byte("import time:         1 |          1 | pkg\n"),
		Best:    1,
		Walls:   []time.Duration{3 * time.Millisecond, 2 * time.Millisecond},
		Version: "3.12.1",
	}
	path := filepath.Join(t.TempDir(), "pkg.capture")
	if err := Save(path, FromResult(cfg, res)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Module != "pkg" || c.Python != "python3.12" || c.Version != "3.12.1" {
		t.Fatalf("capture = %+v", c)
	}
	if !slices.Equal(c.Argv, cfg.Argv()) {
		t.Fatalf("Argv = %q, want %q", c.Argv, cfg.Argv())
	}
	got := c.Result()
	if string(got.Stderr) != string(res.Stderr) || got.Best != 1 || got.Wall() != 2*time.Millisecond {
		t.Fatalf("Result() = %+v", got)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Save(filepath.Join(dir, "out"), &Capture{Module: "pkg"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "out" {
		t.Fatalf("dir holds %v, want only out", entries)
	}
}

func TestDecodeRejectsForeignSchema(t *testing.T) {
	data, err := msgpack.Marshal(&Capture{Schema: schemaVersion + 1, Module: "pkg"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := Decode(data); !errors.Is(err, ErrSchema) {
		t.Fatalf("Decode err = %v, want ErrSchema", err)
	}
}

func TestDecodeRejectsBadBestIndex(t *testing.T) {
	data, err := msgpack.Marshal(&Capture{Schema: schemaVersion, Best: 3, Walls: []time.Duration{time.Millisecond}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := Decode(data); err == nil {
		t.Fatalf("Decode succeeded, want error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load err = %v, want ErrNotExist", err)
	}
}
