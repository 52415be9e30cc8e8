// Package natsx carries normalized chat snapshots to other gateway nodes.
// Publishing is best-effort: a nil client or a publish failure never blocks
// the subscription that produced the snapshot.
package natsx

import (
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"BPortal/logger"
)

type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

type Client struct {
	mu sync.RWMutex
	nc *nats.Conn
}

func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(joinServers(cfg.Servers), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}
	return &Client{nc: nc}, nil
}

func joinServers(servers []string) string {
	out := servers[0]
	for _, s := range servers[1:] {
		out += "," + s
	}
	return out
}

// Publish is nil-safe so the sync layer can run without a bus in tests.
func (c *Client) Publish(subject string, data []byte) {
	if c == nil {
		return
	}
	c.mu.RLock()
	nc := c.nc
	c.mu.RUnlock()
	if nc == nil {
		return
	}
	if err := nc.Publish(subject, data); err != nil {
		logger.Warnf("natsx publish %s failed: %v", subject, err)
	}
}

// Subscribe wires another node's snapshots into fn; returns an unsubscribe.
func (c *Client) Subscribe(subject string, fn func(data []byte)) (func(), error) {
	if c == nil {
		return func() {}, nil
	}
	sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) { fn(m.Data) })
	if err != nil {
		return nil, errors.Wrapf(err, "subscribe %s", subject)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc != nil {
		c.nc.Close()
		c.nc = nil
	}
}
