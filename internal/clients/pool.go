package clients

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout bounds a whole request, including reading the body
const DefaultTimeout = 60 * time.Second

// HTTPClientPool hands out one HTTP client per provider so connections are reused
type HTTPClientPool struct {
	clients   map[string]*http.Client
	mu        sync.RWMutex
	maxConns  int
	timeout   time.Duration
	keepAlive time.Duration
}

// NewHTTPClientPool creates a pool whose clients give up after timeout.
// A zero timeout uses DefaultTimeout.
func NewHTTPClientPool(timeout time.Duration) *HTTPClientPool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClientPool{
		clients:   make(map[string]*http.Client),
		maxConns:  20,
		timeout:   timeout,
		keepAlive: 30 * time.Second,
	}
}

// GetClient returns the client for provider, creating it on first use
func (p *HTTPClientPool) GetClient(provider string) *http.Client {
	p.mu.RLock()
	if client, exists := p.clients[provider]; exists {
		p.mu.RUnlock()
		return client
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if client, exists := p.clients[provider]; exists {
		return client
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: p.keepAlive,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          p.maxConns,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   p.timeout,
	}

	p.clients[provider] = client
	return client
}

// CloseIdle closes idle connections of every client in the pool
func (p *HTTPClientPool) CloseIdle() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range p.clients {
		c.CloseIdleConnections()
	}
}
