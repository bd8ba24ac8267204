package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoalescesBursts(t *testing.T) {
	d := New(20 * time.Millisecond)
	var fired int64
	var lastGen uint64

	for i := 0; i < 5; i++ {
		lastGen = d.Do(func(uint64) { atomic.AddInt64(&fired, 1) })
	}

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&fired) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&fired), "only the last call fires")
	assert.True(t, d.Latest(lastGen))
}

func TestLatestRejectsSuperseded(t *testing.T) {
	d := New(0)
	first := d.Do(func(uint64) {})
	second := d.Do(func(uint64) {})

	assert.False(t, d.Latest(first))
	assert.True(t, d.Latest(second))
}

func TestBumpInvalidatesOutstanding(t *testing.T) {
	d := New(0)
	gen := d.Do(func(uint64) {})
	d.Bump()
	assert.False(t, d.Latest(gen))
}
