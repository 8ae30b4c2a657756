package holiday

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolidaysWithoutAPIKeyReturnsEmptyNotError(t *testing.T) {
	c := New("")
	names, err := c.Holidays(context.Background(), "BD", time.Now())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFormatLineJoinsMultipleNames(t *testing.T) {
	line := FormatLine([]string{"Eid al-Fitr", "Independence Day"})
	assert.Equal(t, "🎉 Eid al-Fitr, Independence Day", line)
}

func TestFormatLineEmptyWhenNoHolidays(t *testing.T) {
	assert.Equal(t, "", FormatLine(nil))
}

func TestUntilMidnightUTCNeverNonPositive(t *testing.T) {
	d := untilMidnightUTC(time.Now().UTC())
	assert.Greater(t, int64(d), int64(0))
}

func TestHolidaysCachesWithinDay(t *testing.T) {
	c := New("")
	now := time.Now()
	key := "BD|" + now.Format("2006-01-02")
	c.cache.Set(key, []string{"Test Day"}, time.Hour)
	names, err := c.Holidays(context.Background(), "BD", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"Test Day"}, names)
}
