package stats

import "sync"

// NoopProvider counts updates in memory without an expvar surface. Used in
// tests that only need to assert a counter moved.
type NoopProvider struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewNoopProvider() *NoopProvider {
	return &NoopProvider{counts: make(map[string]int)}
}

func (p *NoopProvider) Incr(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[name]++
}

func (p *NoopProvider) Decr(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[name]--
}

func (p *NoopProvider) RegisterMetric(name string) {}

func (p *NoopProvider) Run() {}

func (p *NoopProvider) Count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[name]
}
