// Package inherit builds the class → superclass map of a binary archive.
package inherit

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"modpatcher/internal/archive"
	"modpatcher/internal/classfile"
	"modpatcher/internal/codec"
)

// BaseName is the file name of the serialized map before any codec suffix.
const BaseName = "extends_map.json"

// FileName returns the map's file name under codec c.
func FileName(c codec.Codec) string { return BaseName + c.Extension() }

// Map maps dotted class names to dotted superclass names. Classes whose
// superclass is the root class have no entry.
type Map map[string]string

// Builder accumulates a Map over one or more archives of a single run.
type Builder struct {
	Logger *slog.Logger

	m       Map
	scanned int
}

func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{Logger: logger, m: make(Map)}
}

// Build scans one archive into a fresh Map.
func Build(path string) (Map, error) {
	b := NewBuilder(nil)
	if err := b.Add(path); err != nil {
		return nil, err
	}
	return b.Map(), nil
}

// Add scans every classfile entry of the archive at path. A malformed
// classfile fails the whole call; entries already added stay in the map.
func (b *Builder) Add(path string) error {
	before := b.scanned
	err := archive.Walk(path, func(e archive.Entry) error {
		return b.AddEntry(e)
	})
	if err != nil {
		return err
	}
	b.Logger.Debug("scanned archive for inheritance",
		slog.String("archive", path),
		slog.Int("classes", b.scanned-before),
		slog.Int("edges", len(b.m)))
	return nil
}

// AddEntry records the superclass edge of one entry. Non-class entries and
// classes without a meaningful superclass are ignored; a later duplicate
// replaces an earlier one.
func (b *Builder) AddEntry(e archive.Entry) error {
	if !strings.HasSuffix(e.Name, ".class") {
		return nil
	}
	d, err := classfile.Scan(e.Data)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", e.Name, err)
	}
	b.scanned++
	if d.HasSuper() {
		b.m[d.Name] = d.SuperName
	}
	return nil
}

// Map returns the accumulated map. The caller must not modify it while the
// builder is still in use.
func (b *Builder) Map() Map { return b.m }

// Scanned reports how many classfiles have been scanned.
func (b *Builder) Scanned() int { return b.scanned }

// Encode writes m as an indented JSON object. encoding/json sorts map keys,
// so equal maps encode to equal bytes.
func (m Map) Encode(w io.Writer) error {
	if m == nil {
		m = Map{}
	}
	data, err := json.MarshalIndent(map[string]string(m), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Write persists m to path through codec c. The file is replaced only after
// the whole map has been encoded.
func Write(path string, m Map, c codec.Codec) error {
	if err := codec.WriteFile(path, c, m.Encode); err != nil {
		return fmt.Errorf("writing inheritance map %s: %w", path, err)
	}
	return nil
}

// Read loads a map written by Write.
func Read(path string, c codec.Codec) (Map, error) {
	data, err := codec.ReadFile(path, c)
	if err != nil {
		return nil, err
	}
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing inheritance map %s: %w", path, err)
	}
	return m, nil
}
