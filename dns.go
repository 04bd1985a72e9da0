package instrument

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// resolver tracks the address set of the remote write host and reports
// when it changes, so the manager can drop stale connections.
type resolver struct {
	host            string
	custom          bool
	cacheTTL        time.Duration
	refreshInterval time.Duration
	timeout         time.Duration
	udpServers      []string
	tlsServers      []string
	dohEndpoints    []string
	logger          *zap.Logger

	mu          sync.Mutex
	resolved    []string
	lastResolve time.Time
	cache       map[string]dnsCacheEntry
	lookup      func(ctx context.Context, host string) ([]string, error)
}

type dnsCacheEntry struct {
	ips []string
	ttl time.Time
}

func newResolver(config Config, host string, logger *zap.Logger) *resolver {
	r := &resolver{
		host:            host,
		custom:          config.DNSEnable,
		cacheTTL:        pickDuration(config.DNSCacheTTL, 10*time.Minute),
		refreshInterval: pickDuration(config.DNSRefreshInterval, 5*time.Minute),
		timeout:         pickDuration(config.DNSTimeout, 800*time.Millisecond),
		udpServers:      slices.Clone(config.DNSUDPServers),
		tlsServers:      slices.Clone(config.DNSTLSServers),
		dohEndpoints:    slices.Clone(config.DNSDoHEndpoints),
		logger:          logger,
		cache:           make(map[string]dnsCacheEntry),
	}
	r.lookup = r.systemLookup
	if r.custom {
		r.lookup = r.resolveFastest
	}
	return r
}

// enabled reports whether the periodic refresh loop should run.
func (r *resolver) enabled() bool {
	return r.custom && r.host != "" && net.ParseIP(r.host) == nil
}

// refresh resolves the host and reports whether the client should be
// recreated: the address set changed, or force was set and the lookup
// succeeded. Lookups are throttled to one per minute unless forced.
func (r *resolver) refresh(ctx context.Context, force bool) bool {
	if r.host == "" || net.ParseIP(r.host) != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !force && time.Since(r.lastResolve) < time.Minute {
		return false
	}

	if ce, ok := r.cache[r.host]; ok && !force && time.Now().Before(ce.ttl) {
		r.lastResolve = time.Now()
		if slices.Equal(ce.ips, r.resolved) {
			return false
		}
		r.resolved = ce.ips
		r.logger.Info("DNS cache hit with new addresses",
			zap.String("host", r.host), zap.Strings("ips", ce.ips))
		return true
	}

	ips, err := r.lookup(ctx, r.host)
	r.lastResolve = time.Now()
	if err != nil || len(ips) == 0 {
		r.logger.Warn("DNS lookup failed", zap.String("host", r.host), zap.Error(err))
		return false
	}

	changed := !slices.Equal(ips, r.resolved)
	r.resolved = ips
	if r.custom {
		r.cache[r.host] = dnsCacheEntry{ips: ips, ttl: time.Now().Add(r.cacheTTL)}
	}
	return changed || force
}

func (r *resolver) systemLookup(ctx context.Context, host string) ([]string, error) {
	netIPs, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	ips := make([]string, 0, len(netIPs))
	for _, ip := range netIPs {
		ips = append(ips, ip.String())
	}
	return ips, nil
}

// resolveFastest queries every configured resolver and the system
// resolver concurrently and returns the first non-empty answer.
func (r *resolver) resolveFastest(ctx context.Context, host string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		ips []string
		err error
	}

	queries := []func(context.Context) ([]string, error){r.systemLookupFor(host)}
	for _, srv := range r.udpServers {
		queries = append(queries, func(ctx context.Context) ([]string, error) {
			return exchange(ctx, host, "udp", srv, r.timeout)
		})
	}
	for _, srv := range r.tlsServers {
		queries = append(queries, func(ctx context.Context) ([]string, error) {
			return exchange(ctx, host, "tcp-tls", srv, r.timeout)
		})
	}
	for _, ep := range r.dohEndpoints {
		queries = append(queries, func(ctx context.Context) ([]string, error) {
			return resolveDoH(ctx, host, ep)
		})
	}

	ch := make(chan result, len(queries))
	for _, q := range queries {
		go func() {
			ips, err := q(ctx)
			ch <- result{ips, err}
		}()
	}

	var firstErr error
	for range queries {
		select {
		case res := <-ch:
			if res.err == nil && len(res.ips) > 0 {
				return res.ips, nil
			}
			if firstErr == nil {
				firstErr = res.err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if firstErr == nil {
		firstErr = fmt.Errorf("no dns result for %s", host)
	}
	return nil, firstErr
}

func (r *resolver) systemLookupFor(host string) func(context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		return r.systemLookup(ctx, host)
	}
}

// exchange sends an A query over a classic DNS transport ("udp" or
// "tcp-tls").
func exchange(ctx context.Context, host, network, server string, timeout time.Duration) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	c := &dns.Client{Net: network, Timeout: timeout}
	resp, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, fmt.Errorf("%s dns query to %s failed: %w", network, server, err)
	}
	return answerIPs(resp)
}

func resolveDoH(ctx context.Context, host, endpoint string) ([]string, error) {
	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn(host), dns.TypeA)
	payload, err := q.Pack()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/dns-message")
	req.Header.Set("Accept", "application/dns-message")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("doh status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var msg dns.Msg
	if err := msg.Unpack(body); err != nil {
		return nil, err
	}
	return answerIPs(&msg)
}

func answerIPs(msg *dns.Msg) ([]string, error) {
	if msg == nil {
		return nil, fmt.Errorf("empty dns response")
	}
	if msg.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns rcode: %s", dns.RcodeToString[msg.Rcode])
	}
	ips := make([]string, 0, len(msg.Answer))
	for _, ans := range msg.Answer {
		if a, ok := ans.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}
	return ips, nil
}
