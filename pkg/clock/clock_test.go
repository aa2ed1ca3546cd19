package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeStepsOnNow(t *testing.T) {
	c := NewFake(time.Millisecond)
	t0 := c.Now()
	t1 := c.Now()
	require.Equal(t, time.Millisecond, t1.Sub(t0))
}

func TestFakeSleepAndAfter(t *testing.T) {
	c := NewFake(0)
	start := c.Now()
	c.Sleep(3 * time.Second)
	fired := <-c.After(2 * time.Second)
	require.Equal(t, 5*time.Second, fired.Sub(start))
	require.Equal(t, 5*time.Second, c.Slept())
	require.Equal(t, []time.Duration{3 * time.Second, 2 * time.Second}, c.Waits())

	c.Advance(time.Minute)
	require.Equal(t, 5*time.Second+time.Minute, c.Now().Sub(start))
	require.Equal(t, 5*time.Second, c.Slept())
}
