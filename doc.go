// Package instrument lets application code record execution events and
// metrics without passing monitoring collaborators through every call.
//
// Three collaborators, the session, the monitor and the report, are
// activated together as an Entry for the duration of a scope. Code
// inside the scope reaches them through role proxies that resolve the
// entry carried by the context on every call:
//
//	rt, err := instrument.New(instrument.DefaultConfig())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer rt.Shutdown()
//
//	sentinel := rt.Sentinel(instrument.Entry{})
//	err = sentinel.Run(ctx, "ingest", func(ctx context.Context) error {
//	  rt.Monitor.Track(ctx, "batch_loaded", instrument.Metadata{"rows": 120})
//	  rt.Monitor.IncrementMetric(ctx, "rows", 120)
//	  return rt.Session.Set(ctx, "last_batch", 42)
//	})
//
// Design goals:
//   - Scoped activation on context.Context: nested scopes unwind in
//     order and goroutines never see each other's entries
//   - Two event buffers: EagerBuffer keeps one record per event,
//     DeferredBuffer appends CBOR encoded events to a byte stream and
//     parses it on demand
//   - Bounded memory: buffers drop events past their capacity and
//     report it in the summary
//   - Optional Prometheus remote write export of monitor metrics
package instrument
