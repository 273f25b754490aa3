// Package stub produces API-only archives: selected classfiles with their
// method bodies and debug data removed.
package stub

import (
	"fmt"
	"io"
	"log/slog"

	"modpatcher/internal/archive"
	"modpatcher/internal/classfile"
	"modpatcher/internal/codec"
)

// BaseName is the stub archive's file name before any codec suffix.
const BaseName = "stubs.jar"

// FileName returns the stub archive's file name under codec c.
func FileName(c codec.Codec) string { return BaseName + c.Extension() }

// Strip decodes a classfile and re-encodes its declarations only.
func Strip(b []byte) ([]byte, error) {
	c, err := classfile.Decode(b)
	if err != nil {
		return nil, err
	}
	return classfile.Encode(c)
}

// Stats summarizes one Build.
type Stats struct {
	Included int
	Dropped  int
	InBytes  int64
	OutBytes int64
}

// Builder writes stub archives.
type Builder struct {
	Predicate *Predicate
	Codec     codec.Codec
	Logger    *slog.Logger
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

// Build reads the archive at in and writes the stub archive to out. Entries
// keep their input order. out is replaced only when the whole archive has
// been written; a malformed selected classfile fails the build.
func (b *Builder) Build(in, out string) (Stats, error) {
	if b.Predicate == nil {
		return Stats{}, fmt.Errorf("stub builder has no predicate")
	}
	// An outer codec compresses the whole jar, so inner entries are stored.
	method := archive.Deflate
	if b.Codec.Compressed() {
		method = archive.Store
	}

	var st Stats
	err := codec.WriteFile(out, b.Codec, func(w io.Writer) error {
		zw := archive.NewWriter(w, method)
		err := archive.Walk(in, func(e archive.Entry) error {
			if !b.Predicate.Match(e.Name) {
				st.Dropped++
				return nil
			}
			stripped, err := Strip(e.Data)
			if err != nil {
				return fmt.Errorf("stripping %s: %w", e.Name, err)
			}
			st.Included++
			st.InBytes += int64(len(e.Data))
			st.OutBytes += int64(len(stripped))
			return zw.Add(e.Name, stripped)
		})
		if err != nil {
			return err
		}
		return zw.Close()
	})
	if err != nil {
		return st, fmt.Errorf("building stub archive %s: %w", out, err)
	}

	b.logger().Debug("wrote stub archive",
		slog.String("input", in),
		slog.String("output", out),
		slog.Int("included", st.Included),
		slog.Int("dropped", st.Dropped),
		slog.Int64("class_bytes_in", st.InBytes),
		slog.Int64("class_bytes_out", st.OutBytes))
	return st, nil
}
