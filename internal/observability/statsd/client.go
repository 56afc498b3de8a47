// Package statsd emits chain submission metrics using the DogStatsD line protocol.
package statsd

import (
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink receives the counters, gauges and timings emitted by the metrics package.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Nop discards every metric. It is used when metrics are disabled.
type Nop struct{}

func (Nop) Count(string, int64, map[string]string) {}
func (Nop) Gauge(string, float64, map[string]string) {}
func (Nop) Timing(string, time.Duration, map[string]string) {}

// Config describes the StatsD endpoint and the tags stamped on every line.
type Config struct {
	Address string
	// Prefix namespaces metric names, e.g. "ivt" gives "ivt.chain.submit".
	Prefix string
	// Backend and Site become the backend and site tags. A per-metric tag with the same key wins.
	Backend string
	Site    string
	Logger  *slog.Logger
}

// Client writes one UDP datagram per metric. It is safe for concurrent use.
type Client struct {
	prefix string
	base   map[string]string
	logger *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

var _ Sink = (*Client)(nil)

// NewClient dials the StatsD address. UDP dialing only resolves the address; nothing is sent.
func NewClient(cfg Config) (*Client, error) {
	address := strings.TrimSpace(cfg.Address)
	if address == "" {
		return nil, fmt.Errorf("statsd address is required")
	}
	conn, err := net.DialTimeout("udp", address, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := make(map[string]string, 2)
	if b := strings.TrimSpace(cfg.Backend); b != "" {
		base["backend"] = b
	}
	if s := strings.TrimSpace(cfg.Site); s != "" {
		base["site"] = s
	}

	return &Client{
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "."),
		base:   base,
		logger: logger.With("component", "statsd"),
		conn:   conn,
	}, nil
}

// Count implements Sink.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	c.send(name, strconv.FormatInt(value, 10), "c", tags)
}

// Gauge implements Sink.
func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	c.send(name, strconv.FormatFloat(value, 'f', -1, 64), "g", tags)
}

// Timing implements Sink. Durations are sent in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	ms := float64(value) / float64(time.Millisecond)
	c.send(name, strconv.FormatFloat(ms, 'f', -1, 64), "ms", tags)
}

// Close releases the UDP socket. Later writes are dropped.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) send(name, value, kind string, tags map[string]string) {
	if c == nil {
		return
	}
	line := c.line(name, value, kind, tags)
	if line == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.logger.Debug("statsd write failed", "metric", name, "error", err)
	}
}

// line renders "prefix.name:value|kind|#k:v,..." with tags sorted by key.
func (c *Client) line(name, value, kind string, tags map[string]string) string {
	name = metricName(name)
	if name == "" {
		return ""
	}

	var b strings.Builder
	if c.prefix != "" {
		b.WriteString(c.prefix)
		b.WriteByte('.')
	}
	b.WriteString(name)
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteByte('|')
	b.WriteString(kind)

	merged := make(map[string]string, len(c.base)+len(tags))
	for k, v := range c.base {
		merged[k] = v
	}
	for k, v := range tags {
		if k = tagText(k); k != "" {
			merged[k] = tagText(v)
		}
	}
	if len(merged) == 0 {
		return b.String()
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("|#")
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(merged[k])
	}
	return b.String()
}

// nameReplacer strips characters with meaning in the line protocol.
var nameReplacer = strings.NewReplacer(" ", "_", "/", "_", ":", "_", "|", "_", "@", "_", "#", "_")

func metricName(name string) string {
	n := nameReplacer.Replace(strings.TrimSpace(name))
	for strings.Contains(n, "..") {
		n = strings.ReplaceAll(n, "..", ".")
	}
	return strings.Trim(n, ".")
}

// tagReplacer keeps model names like "CESM1-CAM5, r2" from splitting the tag list.
var tagReplacer = strings.NewReplacer(",", "_", "|", "_", "#", "_", " ", "_")

func tagText(s string) string {
	return tagReplacer.Replace(strings.TrimSpace(s))
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	cp := make(map[string]string, len(tags))
	for k, v := range tags {
		cp[k] = v
	}
	return cp
}
