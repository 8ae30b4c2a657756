package weather

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentWithoutAPIKeyReturnsUpstreamUnavailable(t *testing.T) {
	c := New("")
	_, err := c.Current(context.Background(), "Dhaka")
	require.Error(t, err)
}

func TestFormatLineRendersAllFields(t *testing.T) {
	line := FormatLine(Current{TempCMin: 20, TempCMax: 30, Condition: "clear sky", AQI: 42, UV: 5.5})
	assert.Contains(t, line, "20")
	assert.Contains(t, line, "30")
	assert.Contains(t, line, "clear sky")
	assert.Contains(t, line, "42")
	assert.Contains(t, line, "5.5")
}

func TestCurrentCachesWithinTTL(t *testing.T) {
	c := New("")
	c.cache.Set("Dhaka", Current{Condition: "sunny"}, cacheTTL)
	got, err := c.Current(context.Background(), "Dhaka")
	require.NoError(t, err)
	assert.Equal(t, "sunny", got.Condition)
}
