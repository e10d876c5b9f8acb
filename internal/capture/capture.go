// Package capture persists a sampled import trace so it can be rendered
// again without re-running the interpreter.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"importwaterfall/internal/sample"
)

// schemaVersion must be bumped whenever Capture changes shape.
const schemaVersion uint16 = 1

// ErrSchema reports a capture written by an incompatible version.
var ErrSchema = errors.New("unsupported capture schema")

// Capture is a saved sampling session.
type Capture struct {
	Schema    uint16
	Module    string
	Python    string
	Version   string // interpreter sys.version
	Argv      []string
	Walls     []time.Duration // every run, in order
	Best      int
	Stderr    []byte // raw importtime trace of the fastest run
	CreatedAt time.Time
}

// FromResult captures a finished session.
func FromResult(cfg sample.Config, res *sample.Result) *Capture {
	return &Capture{
		Schema:    schemaVersion,
		Module:    cfg.Module,
		Python:    cfg.Argv()[0],
		Version:   res.Version,
		Argv:      cfg.Argv(),
		Walls:     res.Walls,
		Best:      res.Best,
		Stderr:    res.Stderr,
		CreatedAt: time.Now().UTC(),
	}
}

// Result converts the capture back into a sampling result.
func (c *Capture) Result() *sample.Result {
	return &sample.Result{
		Stderr:  c.Stderr,
		Best:    c.Best,
		Walls:   c.Walls,
		Version: c.Version,
	}
}

// Encode serializes c.
func Encode(c *Capture) ([]byte, error) {
	payload := *c
	payload.Schema = schemaVersion
	data, err := msgpack.Marshal(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode capture: %w", err)
	}
	return data, nil
}

// Decode parses a serialized capture and checks its schema.
func Decode(data []byte) (*Capture, error) {
	var c Capture
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode capture: %w", err)
	}
	if c.Schema != schemaVersion {
		return nil, fmt.Errorf("%w: %d (want %d)", ErrSchema, c.Schema, schemaVersion)
	}
	if c.Best < 0 || (len(c.Walls) > 0 && c.Best >= len(c.Walls)) {
		return nil, fmt.Errorf("corrupt capture: best run %d of %d", c.Best, len(c.Walls))
	}
	return &c, nil
}

// Save writes c to path atomically.
func Save(path string, c *Capture) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".capture-*")
	if err != nil {
		return fmt.Errorf("failed to create temp capture: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write capture: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write capture: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to store capture: %w", err)
	}
	return nil
}

// Load reads a capture from path.
func Load(path string) (*Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	c, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
