package ephemeral

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCancelRetractsOnce(t *testing.T) {
	tr := New()
	var count atomic.Int32
	key := tr.Watch(func() { count.Add(1) }, 100*time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.True(t, tr.Cancel(key))
	assert.Equal(t, int32(1), count.Load())
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), count.Load())
	assert.Equal(t, 0, tr.Len())
}

func TestTimerFires(t *testing.T) {
	tr := New()
	done := make(chan struct{})
	key := tr.Watch(func() { close(done) }, 10*time.Millisecond)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retract never ran")
	}
	assert.False(t, tr.Cancel(key))
	assert.Equal(t, 0, tr.Len())
}

func TestCancelUnknown(t *testing.T) {
	tr := New()
	assert.False(t, tr.Cancel("zz"))
}

func TestCancelTwice(t *testing.T) {
	tr := New()
	var count atomic.Int32
	key := tr.Watch(func() { count.Add(1) }, time.Minute)
	assert.True(t, tr.Cancel(key))
	assert.False(t, tr.Cancel(key))
	assert.Equal(t, int32(1), count.Load())
}

func TestKeysAreBase36Sequence(t *testing.T) {
	tr := New()
	keys := []string{}
	for i := 0; i < 37; i++ {
		keys = append(keys, tr.Watch(func() {}, time.Minute))
	}
	assert.Equal(t, "0", keys[0])
	assert.Equal(t, "a", keys[10])
	assert.Equal(t, "z", keys[35])
	assert.Equal(t, "10", keys[36])
	assert.Equal(t, 37, tr.Len())
	for _, k := range keys {
		tr.Cancel(k)
	}
}
