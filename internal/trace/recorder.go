package trace

import "sync"

// Sink receives events. Record must not panic or block; callers treat it as
// a possible no-op.
type Sink interface {
	Record(Event)
}

type NopSink struct{}

func (NopSink) Record(Event) {}

// SafeRecord records e on s, swallowing panics from a faulty sink.
func SafeRecord(s Sink, e Event) {
	if s == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.Record(e)
}

// Recorder collects events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(e Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Snapshot returns a copy of the recorded events in arrival order.
func (r *Recorder) Snapshot() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Trace returns the canonical trace of everything recorded so far.
func (r *Recorder) Trace(subject string) Trace {
	t := Trace{Subject: subject, Events: r.Snapshot()}
	t.Canonicalize()
	return t
}
