package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("every tuesday", time.UTC, func(context.Context) {})
	assert.ErrorContains(t, err, "parsing schedule")
}

func TestNextAfter_WeeklyInTimezone(t *testing.T) {
	eastern, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	s, err := New("18 6 * * MON", eastern, func(context.Context) {})
	require.NoError(t, err)

	// Friday 2026-10-16 -> Monday 2026-10-19 06:18 Eastern (EDT, UTC-4).
	from := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	next := s.NextAfter(from)
	assert.Equal(t, time.Date(2026, 10, 19, 10, 18, 0, 0, time.UTC), next.UTC())
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s, err := New("0 0 * * MON", time.UTC, func(context.Context) {})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
