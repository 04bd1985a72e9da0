package instrument

import (
	"context"
	"time"
)

// Proxies give stable, role specific handles onto a Store. Every call
// looks up the entry active in the supplied context; nothing is cached,
// so the same proxy value serves every scope and every goroutine.

// SessionProxy forwards to the session of the active entry.
type SessionProxy struct {
	store *Store
}

// MonitorProxy forwards to the monitor of the active entry.
type MonitorProxy struct {
	store *Store
}

// ReportProxy forwards to the report of the active entry.
type ReportProxy struct {
	store *Store
}

func NewSessionProxy(store *Store) SessionProxy { return SessionProxy{store: store} }
func NewMonitorProxy(store *Store) MonitorProxy { return MonitorProxy{store: store} }
func NewReportProxy(store *Store) ReportProxy   { return ReportProxy{store: store} }

// Resolve returns the session active in ctx.
func (p SessionProxy) Resolve(ctx context.Context) (Session, error) {
	entry, err := p.store.Current(ctx)
	if err != nil {
		return nil, err
	}
	if entry.Session == nil {
		return nil, ErrRoleUnset
	}
	return entry.Session, nil
}

// Active reports whether a session is active in ctx.
func (p SessionProxy) Active(ctx context.Context) bool {
	_, err := p.Resolve(ctx)
	return err == nil
}

// Is reports whether s is the session active in ctx.
func (p SessionProxy) Is(ctx context.Context, s Session) bool {
	cur, err := p.Resolve(ctx)
	return err == nil && cur == s
}

func (p SessionProxy) Get(ctx context.Context, key string, def any) (any, error) {
	s, err := p.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return s.Get(key, def), nil
}

func (p SessionProxy) Set(ctx context.Context, key string, value any) error {
	s, err := p.Resolve(ctx)
	if err != nil {
		return err
	}
	s.Set(key, value)
	return nil
}

// Resolve returns the monitor active in ctx.
func (p MonitorProxy) Resolve(ctx context.Context) (Monitor, error) {
	entry, err := p.store.Current(ctx)
	if err != nil {
		return nil, err
	}
	if entry.Monitor == nil {
		return nil, ErrRoleUnset
	}
	return entry.Monitor, nil
}

func (p MonitorProxy) Active(ctx context.Context) bool {
	_, err := p.Resolve(ctx)
	return err == nil
}

func (p MonitorProxy) Is(ctx context.Context, m Monitor) bool {
	cur, err := p.Resolve(ctx)
	return err == nil && cur == m
}

// Track records an event on the active monitor. A dropped event is not
// an error; it shows up in the monitor summary.
func (p MonitorProxy) Track(ctx context.Context, event string, metadata Metadata) error {
	m, err := p.Resolve(ctx)
	if err != nil {
		return err
	}
	m.Track(event, metadata)
	return nil
}

func (p MonitorProxy) TrackDuration(ctx context.Context, event string, d time.Duration, metadata Metadata) error {
	m, err := p.Resolve(ctx)
	if err != nil {
		return err
	}
	m.TrackDuration(event, d, metadata)
	return nil
}

func (p MonitorProxy) StartTimer(ctx context.Context, event string) (time.Time, error) {
	m, err := p.Resolve(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return m.StartTimer(event), nil
}

func (p MonitorProxy) StopTimer(ctx context.Context, event string, start time.Time, metadata Metadata) (time.Duration, error) {
	m, err := p.Resolve(ctx)
	if err != nil {
		return 0, err
	}
	return m.StopTimer(event, start, metadata), nil
}

func (p MonitorProxy) IncrementMetric(ctx context.Context, name string, delta float64) error {
	m, err := p.Resolve(ctx)
	if err != nil {
		return err
	}
	m.IncrementMetric(name, delta)
	return nil
}

func (p MonitorProxy) Summary(ctx context.Context) (Summary, error) {
	m, err := p.Resolve(ctx)
	if err != nil {
		return Summary{}, err
	}
	return m.Summary(), nil
}

// Resolve returns the report active in ctx.
func (p ReportProxy) Resolve(ctx context.Context) (Report, error) {
	entry, err := p.store.Current(ctx)
	if err != nil {
		return nil, err
	}
	if entry.Report == nil {
		return nil, ErrRoleUnset
	}
	return entry.Report, nil
}

func (p ReportProxy) Active(ctx context.Context) bool {
	_, err := p.Resolve(ctx)
	return err == nil
}

func (p ReportProxy) Is(ctx context.Context, r Report) bool {
	cur, err := p.Resolve(ctx)
	return err == nil && cur == r
}

func (p ReportProxy) Log(ctx context.Context, message string, level Level, fields Fields) error {
	r, err := p.Resolve(ctx)
	if err != nil {
		return err
	}
	r.Log(message, level, fields)
	return nil
}

func (p ReportProxy) Debug(ctx context.Context, message string, fields Fields) error {
	return p.Log(ctx, message, LevelDebug, fields)
}

func (p ReportProxy) Info(ctx context.Context, message string, fields Fields) error {
	return p.Log(ctx, message, LevelInfo, fields)
}

func (p ReportProxy) Warn(ctx context.Context, message string, fields Fields) error {
	return p.Log(ctx, message, LevelWarning, fields)
}

func (p ReportProxy) Error(ctx context.Context, message string, fields Fields) error {
	return p.Log(ctx, message, LevelError, fields)
}

func (p ReportProxy) Critical(ctx context.Context, message string, fields Fields) error {
	return p.Log(ctx, message, LevelCritical, fields)
}
