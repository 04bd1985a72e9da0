package instrument

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Strategy selects the event buffer of monitors created by a Runtime.
type Strategy string

const (
	// StrategyEager allocates one record per event; reads are cheap.
	StrategyEager Strategy = "eager"
	// StrategyDeferred encodes events into a byte stream; writes are
	// cheap and reads parse on demand.
	StrategyDeferred Strategy = "deferred"
)

// Config defines the configuration of a Runtime
type Config struct {
	// Service identification
	Namespace   string
	Subsystem   string
	ServiceName string

	// Event buffering
	Strategy   Strategy
	BufferSize int

	// Minimum level written by the default report
	ReportLevel Level

	// Remote write configuration, disabled when RemoteWriteURL is empty
	RemoteWriteURL      string
	RemoteWriteInterval time.Duration

	// Instance information
	InstanceIP   string
	CustomLabels map[string]string

	// Optional logger
	Logger *zap.Logger

	// DNS resolver options for the remote write target
	DNSEnable          bool
	DNSCacheTTL        time.Duration
	DNSRefreshInterval time.Duration
	DNSTimeout         time.Duration
	DNSUDPServers      []string // e.g. ["1.1.1.1:53", "8.8.8.8:53"]
	DNSTLSServers      []string // e.g. ["1.1.1.1:853", "9.9.9.9:853"]
	DNSDoHEndpoints    []string // e.g. ["https://cloudflare-dns.com/dns-query"]
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Namespace:           "app",
		Subsystem:           "prod",
		ServiceName:         "service",
		Strategy:            StrategyEager,
		BufferSize:          DefaultBufferSize,
		ReportLevel:         LevelInfo,
		RemoteWriteInterval: 15 * time.Second,
		CustomLabels:        make(map[string]string),
	}
}

// LoadConfigFromEnv overlays INSTRUMENT_* environment variables on cfg.
// Unset variables leave the corresponding field untouched.
func LoadConfigFromEnv(cfg Config) (Config, error) {
	if v := os.Getenv("INSTRUMENT_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv("INSTRUMENT_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}
	if v := os.Getenv("INSTRUMENT_SUBSYSTEM"); v != "" {
		cfg.Subsystem = v
	}
	if v := os.Getenv("INSTRUMENT_STRATEGY"); v != "" {
		cfg.Strategy = Strategy(strings.ToLower(v))
	}
	if v := os.Getenv("INSTRUMENT_BUFFER_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: INSTRUMENT_BUFFER_SIZE: %v", ErrInvalidConfig, err)
		}
		cfg.BufferSize = n
	}
	if v := os.Getenv("INSTRUMENT_REPORT_LEVEL"); v != "" {
		level, err := ParseLevel(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: INSTRUMENT_REPORT_LEVEL: %v", ErrInvalidConfig, err)
		}
		cfg.ReportLevel = level
	}
	if v := os.Getenv("INSTRUMENT_REMOTE_WRITE_URL"); v != "" {
		cfg.RemoteWriteURL = v
	}
	if v := os.Getenv("INSTRUMENT_REMOTE_WRITE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: INSTRUMENT_REMOTE_WRITE_INTERVAL: %v", ErrInvalidConfig, err)
		}
		cfg.RemoteWriteInterval = d
	}
	if v := os.Getenv("INSTRUMENT_DNS_ENABLE"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: INSTRUMENT_DNS_ENABLE: %v", ErrInvalidConfig, err)
		}
		cfg.DNSEnable = enabled
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("%w: service name cannot be empty", ErrInvalidConfig)
	}
	switch c.Strategy {
	case StrategyEager, StrategyDeferred:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("%w: negative buffer size %d", ErrInvalidConfig, c.BufferSize)
	}
	return nil
}

func pickDuration(v time.Duration, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
