package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockNowIsUTCAndCurrent(t *testing.T) {
	t.Parallel()

	clk := New()
	require.NotNil(t, clk)

	before := time.Now().Add(-time.Second)
	got := clk.Now()

	assert.Equal(t, time.UTC, got.Location())
	assert.WithinDuration(t, before.Add(time.Second), got, 2*time.Second)
}

func TestClockMeasuresElapsedSteps(t *testing.T) {
	t.Parallel()

	clk := New()
	start := clk.Now()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, clk.Now().Sub(start), 5*time.Millisecond)
}
