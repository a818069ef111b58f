package shutdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSleepOrShutdownReturnsFalseOnTimeout(t *testing.T) {
	c := New()
	flipped := SleepOrShutdown(c, 10*time.Millisecond)
	assert.False(t, flipped)
}

func TestSleepOrShutdownReturnsTrueOnFlip(t *testing.T) {
	c := New()
	go func() {
		time.Sleep(5 * time.Millisecond)
		c.Shutdown()
	}()
	flipped := SleepOrShutdown(c, time.Second)
	assert.True(t, flipped)
}

func TestShutdownIsIdempotent(t *testing.T) {
	c := New()
	c.Shutdown()
	assert.NotPanics(t, func() { c.Shutdown() })
	assert.True(t, c.Flipped())
}

func TestJoinWaitsForTasks(t *testing.T) {
	c := New()
	done := false
	c.Go(func() {
		time.Sleep(10 * time.Millisecond)
		done = true
	})
	c.Join(time.Second)
	assert.True(t, done)
}

func TestJoinAbandonsAfterTimeout(t *testing.T) {
	c := New()
	c.Go(func() {
		time.Sleep(time.Hour)
	})
	start := time.Now()
	c.Join(20 * time.Millisecond)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
