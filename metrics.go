package instrument

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/eryajf/promwrite"
	"go.uber.org/zap"
)

// Manager collects metrics from registered collectors and pushes them
// to a Prometheus remote write endpoint.
type Manager interface {
	Start() error
	Stop()
	RegisterCollector(collector Collector)
	UnregisterCollector(name string)
	GetMetrics() []Metric
	Flush() error
}

// Collector provides a set of metrics on demand
type Collector interface {
	Collect() []Metric
	Name() string
}

// Metric represents a single metric data point
type Metric struct {
	Name       string
	Value      float64
	Labels     map[string]string
	MetricType MetricType
	Timestamp  time.Time
}

// MetricType represents the type of a metric
type MetricType int

const (
	Counter MetricType = iota
	Gauge
)

// managerImpl is the implementation of Manager
type managerImpl struct {
	config     Config
	collectors []Collector
	client     *promwrite.Client
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mutex      sync.RWMutex
	logger     *zap.Logger

	resolver *resolver
}

// NewManager creates a metrics manager. Without a RemoteWriteURL the
// manager only collects; Start does not launch the write loop.
func NewManager(config Config) (Manager, error) {
	if config.ServiceName == "" {
		return nil, fmt.Errorf("%w: service name cannot be empty", ErrInvalidConfig)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		client *promwrite.Client
		host   string
	)
	if config.RemoteWriteURL != "" {
		u, err := url.Parse(config.RemoteWriteURL)
		if err != nil {
			return nil, fmt.Errorf("%w: remote write url: %v", ErrInvalidConfig, err)
		}
		host = u.Hostname()
		client = promwrite.NewClient(config.RemoteWriteURL)

		if config.InstanceIP == "" {
			ip, err := GetOutboundIPv4()
			if err != nil {
				return nil, fmt.Errorf("failed to get outbound IPv4: %w", err)
			}
			config.InstanceIP = ip
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &managerImpl{
		config:     config,
		collectors: []Collector{},
		client:     client,
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
		resolver:   newResolver(config, host, logger),
	}, nil
}

// RegisterCollector implements Manager interface. A collector with the
// name of an existing one replaces it.
func (m *managerImpl) RegisterCollector(collector Collector) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, c := range m.collectors {
		if c.Name() == collector.Name() {
			m.collectors[i] = collector
			m.logger.Debug("Replaced metrics collector", zap.String("collector", collector.Name()))
			return
		}
	}
	m.collectors = append(m.collectors, collector)
	m.logger.Debug("Registered metrics collector", zap.String("collector", collector.Name()))
}

// UnregisterCollector implements Manager interface
func (m *managerImpl) UnregisterCollector(name string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, c := range m.collectors {
		if c.Name() == name {
			m.collectors = append(m.collectors[:i], m.collectors[i+1:]...)
			return
		}
	}
}

// Start implements Manager interface
func (m *managerImpl) Start() error {
	if m.client == nil {
		m.logger.Warn("Starting metrics manager without remote write URL")
		return nil
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(pickDuration(m.config.RemoteWriteInterval, 15*time.Second))
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := m.writeMetrics(); err != nil {
					m.logger.Error("Failed to write metrics", zap.Error(err))
				}
			case <-m.ctx.Done():
				return
			}
		}
	}()

	if m.resolver.enabled() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			ticker := time.NewTicker(m.resolver.refreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if m.resolver.refresh(m.ctx, false) {
						m.resetClient()
					}
				case <-m.ctx.Done():
					return
				}
			}
		}()
	}

	return nil
}

// Stop implements Manager interface
func (m *managerImpl) Stop() {
	m.cancel()
	m.wg.Wait()
}

// GetMetrics implements Manager interface
func (m *managerImpl) GetMetrics() []Metric {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var metrics []Metric
	for _, collector := range m.collectors {
		metrics = append(metrics, collector.Collect()...)
	}
	return metrics
}

// Flush implements Manager interface
func (m *managerImpl) Flush() error {
	return m.writeMetrics()
}

func (m *managerImpl) currentClient() *promwrite.Client {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.client
}

// resetClient recreates the client so new connections pick up a changed
// address set.
func (m *managerImpl) resetClient() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.client = promwrite.NewClient(m.config.RemoteWriteURL)
	m.logger.Info("Refreshed remote write client after DNS update",
		zap.String("host", m.resolver.host))
}

// writeMetrics sends collected metrics to remote write endpoint
func (m *managerImpl) writeMetrics() error {
	client := m.currentClient()
	if client == nil {
		return fmt.Errorf("no remote write client configured")
	}

	metrics := m.GetMetrics()
	if len(metrics) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(m.ctx, 15*time.Second)
	defer cancel()

	req := &promwrite.WriteRequest{
		TimeSeries: m.convertToTimeSeries(metrics),
	}

	if _, err := client.Write(ctx, req); err != nil {
		// A stale address set is the usual cause; refresh once and retry.
		if m.resolver.refresh(ctx, true) {
			m.resetClient()
			if _, retryErr := m.currentClient().Write(ctx, req); retryErr != nil {
				return fmt.Errorf("writing time series failed after dns refresh: %w", retryErr)
			}
			return nil
		}
		return fmt.Errorf("writing time series failed: %w", err)
	}
	return nil
}

// convertToTimeSeries converts metrics to promwrite time series format
func (m *managerImpl) convertToTimeSeries(metrics []Metric) []promwrite.TimeSeries {
	result := make([]promwrite.TimeSeries, 0, len(metrics))
	prefix := fmt.Sprintf("%s_%s", m.config.Namespace, m.config.Subsystem)

	for _, metric := range metrics {
		labels := make([]promwrite.Label, 0, 4+len(m.config.CustomLabels)+len(metric.Labels))
		labels = append(labels,
			promwrite.Label{Name: "__name__", Value: prefix + "_" + metric.Name},
			promwrite.Label{Name: "_instance_", Value: m.config.InstanceIP},
			promwrite.Label{Name: "instance", Value: m.config.InstanceIP},
			promwrite.Label{Name: "_target_", Value: m.config.ServiceName},
		)
		for k, v := range m.config.CustomLabels {
			labels = append(labels, promwrite.Label{Name: k, Value: v})
		}
		for k, v := range metric.Labels {
			labels = append(labels, promwrite.Label{Name: k, Value: v})
		}

		result = append(result, promwrite.TimeSeries{
			Labels: labels,
			Sample: promwrite.Sample{
				Time:  metric.Timestamp,
				Value: metric.Value,
			},
		})
	}
	return result
}

// GetOutboundIPv4 gets the outbound IPv4 address of the local machine
func GetOutboundIPv4() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
