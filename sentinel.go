package instrument

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Sentinel runs functions inside a scope with a fixed set of
// collaborators and reports their start, completion and failure.
type Sentinel struct {
	store *Store
	entry Entry
}

// NewSentinel creates a sentinel on store. Every role left nil in entry
// gets its default: a DefaultSession, an eager DefaultMonitor and a
// DefaultReport that discards its output.
func NewSentinel(store *Store, entry Entry) *Sentinel {
	if entry.Session == nil {
		entry.Session = NewDefaultSession("", "")
	}
	if entry.Monitor == nil {
		entry.Monitor = NewEagerMonitor("sentinel", DefaultBufferSize, nil)
	}
	if entry.Report == nil {
		entry.Report = NewDefaultReport(nil, LevelInfo)
	}
	return &Sentinel{store: store, entry: entry}
}

// Entry returns the collaborators the sentinel activates.
func (s *Sentinel) Entry() Entry {
	return s.entry
}

// Run calls fn inside the sentinel's scope.
func (s *Sentinel) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return s.store.Run(ctx, s.entry, func(ctx context.Context) error {
		return s.observe(name, func() error { return fn(ctx) })
	})
}

// RunGroup calls fn inside the sentinel's scope with an errgroup whose
// goroutines share it. The completion line is written once every
// goroutine has finished.
func (s *Sentinel) RunGroup(ctx context.Context, name string, fn func(ctx context.Context, g *errgroup.Group) error) error {
	return s.store.Run(ctx, s.entry, func(ctx context.Context) error {
		return s.observe(name, func() error { return runJoined(ctx, fn) })
	})
}

func (s *Sentinel) observe(name string, call func() error) (err error) {
	report, monitor := s.entry.Report, s.entry.Monitor

	report.Log(fmt.Sprintf("Starting %q", name), LevelDebug, Fields{
		"function_name": name,
	})
	start := monitor.StartTimer(name)

	defer func() {
		if r := recover(); r != nil {
			s.failed(name, start, fmt.Sprintf("panic: %v", r), fmt.Sprintf("%T", r))
			panic(r)
		}
	}()

	err = call()
	if err != nil {
		s.failed(name, start, err.Error(), fmt.Sprintf("%T", err))
		return err
	}

	duration := monitor.StopTimer(name, start, Metadata{"success": true})
	report.Log(fmt.Sprintf("Completed %q", name), LevelDebug, Fields{
		"function_name": name,
		"duration":      duration.Seconds(),
		"success":       true,
	})
	return nil
}

func (s *Sentinel) failed(name string, start time.Time, message, errType string) {
	s.entry.Monitor.StopTimer(name, start, Metadata{"success": false, "error_type": errType})
	s.entry.Monitor.IncrementMetric(name+"_errors", 1)
	s.entry.Report.Log(fmt.Sprintf("Exception in %q: %s", name, message), LevelError, Fields{
		"function_name":  name,
		"exception_type": errType,
		"success":        false,
	})
}
