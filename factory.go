package instrument

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Runtime is the process-wide instrumentation state: one Store, the
// role proxies bound to it and the metrics manager. Create it once with
// New, pass it (or its proxies) to the code that needs it, and call
// Shutdown on exit.
type Runtime struct {
	config  Config
	logger  *zap.Logger
	store   *Store
	manager Manager

	Session SessionProxy
	Monitor MonitorProxy
	Report  ReportProxy

	mu       sync.Mutex
	started  bool
	shutdown bool
}

// New validates config and builds a Runtime. The manager is not started
// until Start is called.
func New(config Config) (*Runtime, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
		config.Logger = logger
	}

	mgr, err := NewManager(config)
	if err != nil {
		return nil, err
	}

	store := NewStore(config.ServiceName, logger)
	return &Runtime{
		config:  config,
		logger:  logger,
		store:   store,
		manager: mgr,
		Session: NewSessionProxy(store),
		Monitor: NewMonitorProxy(store),
		Report:  NewReportProxy(store),
	}, nil
}

// Store returns the runtime's context store.
func (r *Runtime) Store() *Store {
	return r.store
}

// Config returns the configuration the runtime was built with.
func (r *Runtime) Config() Config {
	return r.config
}

// Start launches the metrics manager.
func (r *Runtime) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shutdown {
		return ErrNotInitialized
	}
	if r.started {
		return nil
	}
	if err := r.manager.Start(); err != nil {
		return err
	}
	r.started = true

	r.logger.Info("instrument runtime started",
		zap.String("namespace", r.config.Namespace),
		zap.String("subsystem", r.config.Subsystem),
		zap.String("service", r.config.ServiceName),
		zap.String("strategy", string(r.config.Strategy)))
	return nil
}

// Shutdown stops the manager and closes the store. It reports scopes
// left open, and is a no-op after the first call.
func (r *Runtime) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shutdown {
		return nil
	}
	r.shutdown = true
	if r.started {
		r.manager.Stop()
	}
	return r.store.Close()
}

// NewMonitor creates a monitor with the configured strategy and buffer
// size and registers it with the metrics manager under name.
func (r *Runtime) NewMonitor(name string) *DefaultMonitor {
	var m *DefaultMonitor
	switch r.config.Strategy {
	case StrategyDeferred:
		m = NewDeferredMonitor(name, r.config.BufferSize, r.logger)
	default:
		m = NewEagerMonitor(name, r.config.BufferSize, r.logger)
	}
	r.manager.RegisterCollector(m)
	return m
}

// ReleaseMonitor stops exporting the named monitor.
func (r *Runtime) ReleaseMonitor(name string) {
	r.manager.UnregisterCollector(name)
}

// NewReport creates a report on the runtime logger at the configured level.
func (r *Runtime) NewReport() *DefaultReport {
	return NewDefaultReport(r.logger, r.config.ReportLevel)
}

// Sentinel creates a sentinel on the runtime store. Roles left nil in
// entry get a fresh session, a registered monitor named after the
// session and a report on the runtime logger.
func (r *Runtime) Sentinel(entry Entry) *Sentinel {
	if entry.Session == nil {
		entry.Session = NewDefaultSession("", "")
	}
	if entry.Monitor == nil {
		name := "sentinel"
		if s, ok := entry.Session.(*DefaultSession); ok {
			name = s.ID()
		}
		entry.Monitor = r.NewMonitor(name)
	}
	if entry.Report == nil {
		entry.Report = r.NewReport()
	}
	return NewSentinel(r.store, entry)
}

// Flush pushes the current metrics to the remote write endpoint.
func (r *Runtime) Flush() error {
	if err := r.manager.Flush(); err != nil {
		return fmt.Errorf("flush metrics: %w", err)
	}
	return nil
}

// Metrics returns the metrics of every registered monitor.
func (r *Runtime) Metrics() []Metric {
	return r.manager.GetMetrics()
}

// Status returns the current status of the runtime
func (r *Runtime) Status() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := map[string]any{
		"initialized":  !r.shutdown,
		"started":      r.started,
		"service":      r.config.ServiceName,
		"strategy":     string(r.config.Strategy),
		"open_scopes":  r.store.Open(),
		"remote_write": r.config.RemoteWriteURL != "",
	}
	return status
}

// HealthCheck reports whether the runtime is usable.
func (r *Runtime) HealthCheck() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shutdown {
		return ErrNotInitialized
	}
	if n := r.store.Open(); n < 0 {
		return errors.New("instrument: more restores than activations")
	}
	return nil
}
