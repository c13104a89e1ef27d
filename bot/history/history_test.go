package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var sampleKeys []string

func init() {
	for i := 0; i < 100; i++ {
		sampleKeys = append(sampleKeys, fmt.Sprintf("G1 m%d", i))
	}
}

func TestAppend(t *testing.T) {
	h := New(10, 0)
	for i := 0; i < 10; i++ {
		assert.False(t, h.CheckOrAdd(sampleKeys[i]))
	}
	assert.Equal(t, sampleKeys[9], h.Last())
	assert.Equal(t, 10, h.Len())
}

func TestDuplicate(t *testing.T) {
	h := New(10, 0)
	assert.False(t, h.CheckOrAdd(sampleKeys[0]))
	assert.True(t, h.CheckOrAdd(sampleKeys[0]))
	assert.True(t, h.Seen(sampleKeys[0]))
	assert.False(t, h.Seen(sampleKeys[1]))
}

func TestOldestFallsOut(t *testing.T) {
	h := New(2, 0)
	h.CheckOrAdd(sampleKeys[0])
	h.CheckOrAdd(sampleKeys[1])
	h.CheckOrAdd(sampleKeys[2])
	assert.Equal(t, 2, h.Len())
	assert.False(t, h.Seen(sampleKeys[0]))
	assert.False(t, h.CheckOrAdd(sampleKeys[0]))
	assert.True(t, h.CheckOrAdd(sampleKeys[2]))
}

func TestExpiry(t *testing.T) {
	h := New(4, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.Now = func() time.Time { return now }

	assert.False(t, h.CheckOrAdd(sampleKeys[0]))
	assert.True(t, h.CheckOrAdd(sampleKeys[0]))

	now = now.Add(2 * time.Minute)
	assert.False(t, h.Seen(sampleKeys[0]))
	assert.False(t, h.CheckOrAdd(sampleKeys[0]))
	assert.True(t, h.CheckOrAdd(sampleKeys[0]))
}

func TestEmpty(t *testing.T) {
	h := New(3, 0)
	assert.Equal(t, "", h.Last())
	assert.Equal(t, 0, h.Len())
}
