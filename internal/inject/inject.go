// Package inject inserts processing actions into host action lists so they
// run after the step's own work but before its output is committed to the
// cache.
package inject

import (
	"log/slog"

	"modpatcher/internal/host"
	"modpatcher/internal/trace"
)

// Shim unwraps one level of host bookkeeping around an action. It returns
// the action unchanged when a is not a wrapper.
type Shim interface {
	Unwrap(a host.Action) host.Action
}

// WrapperShim unwraps through host.Wrapper.
type WrapperShim struct{}

func (WrapperShim) Unwrap(a host.Action) host.Action {
	if w, ok := a.(host.Wrapper); ok && w.Inner() != nil {
		return w.Inner()
	}
	return a
}

// Injector places actions before the last cache checkpoint of a list.
type Injector struct {
	// IsCheckpoint recognises the checkpoint after unwrapping. Defaults to
	// host.IsWriteCache.
	IsCheckpoint func(host.Action) bool
	Shim         Shim
	Logger       *slog.Logger
	Trace        trace.Sink
}

func (in *Injector) logger() *slog.Logger {
	if in.Logger == nil {
		return slog.Default()
	}
	return in.Logger
}

func (in *Injector) shim() Shim {
	if in.Shim == nil {
		return WrapperShim{}
	}
	return in.Shim
}

func (in *Injector) isCheckpoint() func(host.Action) bool {
	if in.IsCheckpoint == nil {
		return host.IsWriteCache
	}
	return in.IsCheckpoint
}

// InsertBefore inserts action immediately before the last checkpoint in
// list and returns its index. Without a checkpoint the action is appended
// and found is false. Only the relative order of existing actions is
// preserved; nothing is removed or replaced.
func (in *Injector) InsertBefore(list host.ActionList, action host.Action) (index int, found bool) {
	shim := in.shim()
	isCheckpoint := in.isCheckpoint()

	index = -1
	for i := 0; i < list.Len(); i++ {
		if isCheckpoint(shim.Unwrap(list.At(i))) {
			index = i
		}
	}
	if index < 0 {
		index = list.Len()
		list.Insert(index, action)
		return index, false
	}
	list.Insert(index, action)
	return index, true
}

// DisableCaching turns caching off on step when disable is set and the
// step supports it. It reports whether caching was turned off.
func DisableCaching(step any, disable bool) bool {
	if !disable {
		return false
	}
	c, ok := step.(host.Cacheable)
	if !ok {
		return false
	}
	c.SetCaching(false)
	return true
}

// Instrument prepares step for processing: it applies the caching switch
// and inserts action before the step's cache checkpoint. A missing
// checkpoint is warned about only while caching is still on, since the
// checkpoint would do nothing otherwise.
func (in *Injector) Instrument(step *host.Step, action host.Action, disableCaching bool) int {
	log := in.logger().With(slog.String("step", step.Name))

	if DisableCaching(step, disableCaching) {
		log.Debug("caching disabled for step")
		trace.SafeRecord(in.Trace, trace.Event{Kind: trace.CachingDisabled, Step: step.Name})
	}

	index, found := in.InsertBefore(step.Actions(), action)
	if !found {
		reason := "appended, caching off"
		if step.Caching() {
			reason = "appended"
		}
		trace.SafeRecord(in.Trace, trace.Event{Kind: trace.CheckpointNotFound, Step: step.Name, Reason: reason})
		if step.Caching() {
			log.Warn("could not find cache checkpoint; processing action appended, cached outputs may be unprocessed",
				slog.Int("index", index))
		}
	}
	return index
}
