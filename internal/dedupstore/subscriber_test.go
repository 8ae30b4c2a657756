package dedupstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimezoneInputExactIANA(t *testing.T) {
	tz, err := ParseTimezoneInput("Asia/Dhaka")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Dhaka", tz)
}

func TestParseTimezoneInputCityName(t *testing.T) {
	tz, err := ParseTimezoneInput("  Dhaka ")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Dhaka", tz)
}

func TestParseTimezoneInputUTCOffset(t *testing.T) {
	tz, err := ParseTimezoneInput("+6")
	require.NoError(t, err)
	assert.Equal(t, "Etc/GMT-6", tz)

	tz, err = ParseTimezoneInput("UTC-5")
	require.NoError(t, err)
	assert.Equal(t, "Etc/GMT+5", tz)
}

func TestParseTimezoneInputRejectsFractionalOffset(t *testing.T) {
	_, err := ParseTimezoneInput("+5:30")
	assert.Error(t, err)
}

func TestParseTimezoneInputRejectsGarbage(t *testing.T) {
	_, err := ParseTimezoneInput("not a timezone")
	assert.Error(t, err)
}

func TestSlotsCoverAllFourFixedTimes(t *testing.T) {
	require.Len(t, Slots, 4)
	hours := map[int]bool{}
	for _, s := range Slots {
		hours[s.Hour] = true
	}
	assert.True(t, hours[8])
	assert.True(t, hours[13])
	assert.True(t, hours[19])
	assert.True(t, hours[23])
}
