package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSparkline(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", sparkline(nil))
	assert.Equal(t, "▁▁▁", sparkline([]int{0, 0, 0}))
	assert.Equal(t, "▁█", sparkline([]int{0, 5}))

	got := sparkline([]int{1, 2, 4, 8})
	assert.Len(t, []rune(got), 4)
	runes := []rune(got)
	assert.Equal(t, '█', runes[3], "max value renders the tallest bar")
}

func TestRelAge(t *testing.T) {
	t.Parallel()

	now := time.Now()
	assert.Equal(t, "-", relAge(time.Time{}))
	assert.Equal(t, "now", relAge(now.Add(-10*time.Second)))
	assert.Equal(t, "5m", relAge(now.Add(-5*time.Minute)))
	assert.Equal(t, "3h", relAge(now.Add(-3*time.Hour)))
	assert.Equal(t, "2d", relAge(now.Add(-49*time.Hour)))
}

func TestUntilLabel(t *testing.T) {
	t.Parallel()

	now := time.Now()
	assert.Equal(t, "due", untilLabel(now.Add(-time.Second)))
	assert.Equal(t, "under a minute", untilLabel(now.Add(30*time.Second)))
	assert.Equal(t, "in 9m", untilLabel(now.Add(9*time.Minute+30*time.Second)))
	assert.Equal(t, "in 2h05m", untilLabel(now.Add(2*time.Hour+5*time.Minute+30*time.Second)))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-10", truncate("exactly-10", 10))
	assert.Equal(t, "too lon...", truncate("too long for this", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
