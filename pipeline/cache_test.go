package pipeline

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestShouldSkip(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewTTLCache("test", clock, 10)

	assert.False(t, c.ShouldSkip("a", time.Minute), "first call claims")
	assert.True(t, c.ShouldSkip("a", time.Minute))

	clock.Advance(59 * time.Second)
	assert.True(t, c.ShouldSkip("a", time.Minute))

	clock.Advance(time.Second)
	assert.False(t, c.ShouldSkip("a", time.Minute), "entry at age == ttl is expired")
	assert.True(t, c.ShouldSkip("a", time.Minute))
}

func TestShouldSkipEmptyKey(t *testing.T) {
	c := NewTTLCache("test", clockwork.NewFakeClock(), 10)
	assert.False(t, c.ShouldSkip("", time.Minute))
	assert.False(t, c.ShouldSkip("", time.Minute))
	assert.Equal(t, 0, c.Len())
}

func TestForget(t *testing.T) {
	c := NewTTLCache("test", clockwork.NewFakeClock(), 10)
	assert.False(t, c.ShouldSkip("a", time.Minute))
	c.Forget("a")
	assert.False(t, c.ShouldSkip("a", time.Minute))
}

func TestCacheStaysBounded(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewTTLCache("test", clock, 3)

	for i := 0; i < 3; i++ {
		c.ShouldSkip("k"+strconv.Itoa(i), time.Hour)
		clock.Advance(time.Second)
	}
	assert.Equal(t, 3, c.Len())

	// nada expirou: o mais antigo sai
	assert.False(t, c.ShouldSkip("k3", time.Hour))
	assert.Equal(t, 3, c.Len())
	assert.False(t, c.ShouldSkip("k0", time.Hour), "oldest entry was evicted")

	// tudo expira: a varredura limpa antes de inserir
	clock.Advance(2 * time.Hour)
	assert.False(t, c.ShouldSkip("fresh", time.Hour))
	assert.Equal(t, 1, c.Len())
}

func TestShouldSkipConcurrentClaims(t *testing.T) {
	c := NewTTLCache("test", clockwork.NewFakeClock(), 100)

	var claimed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.ShouldSkip("5546999999999", time.Minute) {
				claimed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), claimed.Load())
}
