package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/virtual-shiksha/shiksha/internal/log"
	"github.com/virtual-shiksha/shiksha/pkg/version"
)

// Probe is a Source backed by periodic HEAD requests against the origin.
// Any HTTP response counts as online; transport errors count as offline.
type Probe struct {
	url      string
	client   *http.Client
	interval time.Duration

	mu      sync.Mutex
	online  bool
	changes chan bool
}

// NewProbe creates a probe. The client must not be the cache router, or
// cached responses would mask an unreachable origin. A nil client gets a
// plain client with a timeout of one interval.
func NewProbe(url string, interval time.Duration, client *http.Client) *Probe {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: interval}
	}
	return &Probe{
		url:      url,
		client:   client,
		interval: interval,
		changes:  make(chan bool, 8),
	}
}

// Online reports the result of the last check.
func (p *Probe) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// Changes returns the transition channel.
func (p *Probe) Changes() <-chan bool {
	return p.changes
}

// Check probes once and records the result.
func (p *Probe) Check(ctx context.Context) bool {
	online := p.reachable(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if online != p.online {
		p.online = online
		if online {
			log.Infof("origin %s is reachable", p.url)
		} else {
			log.Warnf("origin %s is unreachable", p.url)
		}
		notify(p.changes, online)
	}
	return online
}

func (p *Probe) reachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := p.client.Do(req)
	if err != nil {
		log.Debugf("probe %s: %v", p.url, err)
		return false
	}
	_ = resp.Body.Close()
	return true
}

// Run checks immediately and then every interval until ctx is done.
func (p *Probe) Run(ctx context.Context) {
	p.Check(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
