// Package trace records the logical decisions of a processing run.
package trace

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Trace is the canonical record of one run. Subject identifies what was
// processed (the configuration hash); events carry no timestamps, durations
// or error strings, so equal runs produce equal bytes.
type Trace struct {
	Subject string
	Events  []Event
}

// Kind discriminates events. The string values are part of the canonical
// bytes.
type Kind string

const (
	CachingDisabled       Kind = "CachingDisabled"
	CheckpointNotFound    Kind = "CheckpointNotFound"
	ArtifactMissing       Kind = "ArtifactMissing"
	SourcesExtracted      Kind = "SourcesExtracted"
	TransformApplied      Kind = "TransformApplied"
	TransformRolledBack   Kind = "TransformRolledBack"
	InheritanceMapWritten Kind = "InheritanceMapWritten"
	StubArchiveWritten    Kind = "StubArchiveWritten"
)

// Event is one decision. Step names the build step; Artifact is the path the
// decision concerns. Outputs lists files the decision produced.
type Event struct {
	Kind     Kind
	Step     string
	Artifact string
	Reason   string
	Outputs  []string
}

func (t *Trace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.Subject == "" {
		return errors.New("subject is required")
	}
	for i, e := range t.Events {
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.Step == "" {
			return fmt.Errorf("events[%d].step is required for kind %q", i, e.Kind)
		}
		for j, o := range e.Outputs {
			if o == "" {
				return fmt.Errorf("events[%d].outputs[%d] is empty", i, j)
			}
		}
	}
	return nil
}

// Canonicalize sorts outputs and orders events by step, then by the order
// in which the pipeline takes decisions within a step.
func (t *Trace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		if len(t.Events[i].Outputs) == 0 {
			t.Events[i].Outputs = nil
			continue
		}
		out := append([]string(nil), t.Events[i].Outputs...)
		sort.Strings(out)
		t.Events[i].Outputs = out
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a, b := t.Events[i], t.Events[j]
		if a.Step != b.Step {
			return a.Step < b.Step
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Artifact != b.Artifact {
			return a.Artifact < b.Artifact
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		return lessStrings(a.Outputs, b.Outputs)
	})
}

func kindOrder(k Kind) int {
	switch k {
	case CachingDisabled:
		return 10
	case CheckpointNotFound:
		return 20
	case ArtifactMissing:
		return 30
	case SourcesExtracted:
		return 40
	case TransformApplied:
		return 50
	case TransformRolledBack:
		return 60
	case InheritanceMapWritten:
		return 70
	case StubArchiveWritten:
		return 80
	default:
		return 1000
	}
}

func lessStrings(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// CanonicalJSON canonicalizes a copy of t and encodes it.
func (t Trace) CanonicalJSON() ([]byte, error) {
	c := Trace{Subject: t.Subject, Events: append([]Event(nil), t.Events...)}
	c.Canonicalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

// Hash is the sha256 of the canonical JSON.
func (t Trace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// MarshalJSON fixes the field order.
func (t Trace) MarshalJSON() ([]byte, error) {
	if t.Subject == "" {
		return nil, errors.New("subject is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"subject":`)
	writeString(&buf, t.Subject)
	buf.WriteString(`,"events":[`)
	for i, e := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON fixes the field order and omits empty optional fields.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"kind":`)
	writeString(&buf, string(e.Kind))
	for _, f := range []struct{ name, value string }{
		{"step", e.Step},
		{"artifact", e.Artifact},
		{"reason", e.Reason},
	} {
		if f.value == "" {
			continue
		}
		buf.WriteString(`,"` + f.name + `":`)
		writeString(&buf, f.value)
	}
	if len(e.Outputs) > 0 {
		out := append([]string(nil), e.Outputs...)
		sort.Strings(out)
		buf.WriteString(`,"outputs":[`)
		for i, o := range out {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(&buf, o)
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
