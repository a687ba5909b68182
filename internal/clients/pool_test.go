package clients

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPClientPool_ReusesClients(t *testing.T) {
	pool := NewHTTPClientPool(5 * time.Second)

	a := pool.GetClient("anthropic")
	b := pool.GetClient("anthropic")
	c := pool.GetClient("other")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 5*time.Second, a.Timeout)

	pool.CloseIdle()
}

func TestHTTPClientPool_DefaultTimeout(t *testing.T) {
	pool := NewHTTPClientPool(0)
	assert.Equal(t, DefaultTimeout, pool.GetClient("x").Timeout)
}
