package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRollingCounterSumAccumulatesWithinWindow(t *testing.T) {
	c := NewRollingCounter(DefaultGridCount, 1)
	c.Add(100)
	c.Add(50)
	require.Equal(t, int64(150), c.Sum())
}

func TestRollingCounterAvgExcludesZeroState(t *testing.T) {
	c := NewRollingCounter(DefaultGridCount, 1)
	require.Equal(t, int64(0), c.Avg())
	c.Add(200)
	require.Equal(t, int64(200), c.Sum())
}
