package passes

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_Start(t *testing.T) {
	assert.Equal(t, int64(0), NewClock().Current())
	assert.Equal(t, int64(41), NewClockAt(41).Current())
}

func TestClock_Next(t *testing.T) {
	c := NewClockAt(10)
	assert.Equal(t, int64(11), c.Next())
	assert.Equal(t, int64(12), c.Next())
	assert.Equal(t, int64(12), c.Current())
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClock()
	const workers, calls = 16, 200

	var (
		mu   sync.Mutex
		seen = make(map[int64]bool)
		wg   sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range calls {
				seq := c.Next()
				mu.Lock()
				seen[seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*calls)
	assert.Equal(t, int64(workers*calls), c.Current())
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte('7'), a[14], "version nibble")
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("run-a", "run-b")
	assert.Equal(t, "run-a", g.Generate())
	assert.Equal(t, "run-b", g.Generate())
	assert.PanicsWithValue(t, "FixedGenerator: all run IDs exhausted", func() { g.Generate() })
}
