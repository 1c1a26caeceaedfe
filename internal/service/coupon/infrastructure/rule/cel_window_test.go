package rule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCELWindow_DefaultHour(t *testing.T) {
	w, err := NewCELWindow("", time.UTC)
	require.NoError(t, err)

	for at, want := range map[time.Time]bool{
		time.Date(2024, 3, 1, 16, 59, 59, 0, time.UTC): false,
		time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC):   true,
		time.Date(2024, 3, 1, 17, 59, 59, 0, time.UTC): true,
		time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC):   false,
	} {
		open, err := w.IsOpen(at)
		require.NoError(t, err)
		assert.Equal(t, want, open, at.String())
	}
}

func TestCELWindow_UsesLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	w, err := NewCELWindow("hour == 17", seoul)
	require.NoError(t, err)

	open, err := w.IsOpen(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, open)
}

func TestCELWindow_WeekdayAndTimestamp(t *testing.T) {
	w, err := NewCELWindow(`weekday == 5 && now > timestamp("2024-01-01T00:00:00Z")`, time.UTC)
	require.NoError(t, err)

	open, err := w.IsOpen(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) // 周五
	require.NoError(t, err)
	assert.True(t, open)

	open, err = w.IsOpen(time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, open)
}

func TestCELWindow_RejectsInvalidExpressions(t *testing.T) {
	_, err := NewCELWindow("hour >=", time.UTC)
	assert.Error(t, err)

	_, err = NewCELWindow("hour + 1", time.UTC)
	assert.Error(t, err)

	_, err = NewCELWindow("unknown_var == 1", time.UTC)
	assert.Error(t, err)
}
