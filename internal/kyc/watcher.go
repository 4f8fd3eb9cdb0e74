package kyc

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval paces the status polls while a review is pending.
const DefaultPollInterval = 10 * time.Second

// Update is one observed change of the organization's verification status.
type Update struct {
	Status     Status    `json:"status"`
	ObservedAt time.Time `json:"observed_at"`
}

// FetchFunc retrieves the current verification status upstream.
type FetchFunc func(ctx context.Context) (Status, error)

// Poller watches the verification status while a review is in flight and
// fan-outs changes to all subscribers (SSE clients). Polling stops on its
// own once the status turns terminal.
type Poller struct {
	mu       sync.RWMutex
	subs     map[int]chan Update
	next     int
	fetch    FetchFunc
	interval time.Duration
	last     Status
	haveLast bool
}

// PollerOption configures the poller.
type PollerOption func(*Poller)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// NewPoller wires a poller over the given fetch function.
func NewPoller(fetch FetchFunc, opts ...PollerOption) *Poller {
	p := &Poller{
		subs:     make(map[int]chan Update),
		fetch:    fetch,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers a subscriber and returns a channel which will receive
// updates. The channel is closed when the provided context ends. The last
// observed status, if any, is delivered immediately.
func (p *Poller) Subscribe(ctx context.Context) <-chan Update {
	ch := make(chan Update, 16)

	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = ch
	if p.haveLast {
		ch <- Update{Status: p.last, ObservedAt: time.Now().UTC()}
	}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.subs, id)
		close(ch)
		p.mu.Unlock()
	}()

	return ch
}

// Run polls until the context ends or the status turns terminal. Fetch
// errors are skipped; the next tick retries.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := p.poll(ctx); done {
				return
			}
		}
	}
}

func (p *Poller) poll(ctx context.Context) bool {
	status, err := p.fetch(ctx)
	if err != nil {
		return false
	}
	p.observe(status)
	return status.Terminal()
}

// observe records the status and publishes it to subscribers when changed.
func (p *Poller) observe(status Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.haveLast && p.last == status {
		return
	}
	p.last = status
	p.haveLast = true
	evt := Update{Status: status, ObservedAt: time.Now().UTC()}
	for _, ch := range p.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Last returns the most recently observed status.
func (p *Poller) Last() (Status, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.haveLast
}
