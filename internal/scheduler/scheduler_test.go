package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shanchoynoor/choynews-digest-bot/internal/dedupstore"
	"github.com/shanchoynoor/choynews-digest-bot/internal/item"
)

func TestWithinSlotWindowMatchesExactMinute(t *testing.T) {
	local := time.Date(2026, 8, 3, 8, 0, 15, 0, time.UTC)
	assert.True(t, withinSlotWindow(local, 8, 60))
}

func TestWithinSlotWindowRejectsWrongHour(t *testing.T) {
	local := time.Date(2026, 8, 3, 9, 0, 15, 0, time.UTC)
	assert.False(t, withinSlotWindow(local, 8, 60))
}

func TestWithinSlotWindowRejectsNonZeroMinute(t *testing.T) {
	local := time.Date(2026, 8, 3, 8, 1, 0, 0, time.UTC)
	assert.False(t, withinSlotWindow(local, 8, 60))
}

func TestAlreadySentTodayZeroValueIsFalse(t *testing.T) {
	assert.False(t, alreadySentToday(time.Time{}, time.Now()))
}

func TestAlreadySentTodaySameDateIsTrue(t *testing.T) {
	now := time.Now()
	assert.True(t, alreadySentToday(now, now))
}

func TestAlreadySentTodayDifferentDateIsFalse(t *testing.T) {
	now := time.Now()
	yesterday := now.AddDate(0, 0, -1)
	assert.False(t, alreadySentToday(yesterday, now))
}

func TestEnabledCategoriesRespectsOptInFlags(t *testing.T) {
	sub := dedupstore.Subscriber{CryptoAlerts: false, TechNews: true, WorldNews: false}
	got := enabledCategories(sub)
	assert.False(t, got[item.FinanceCrypto])
	assert.True(t, got[item.Tech])
	assert.False(t, got[item.Global])
}

func TestSlotLabelOnDemandIsDistinct(t *testing.T) {
	assert.Equal(t, "On-demand", slotLabel(""))
	assert.Equal(t, "Morning", slotLabel(dedupstore.Morning))
}

func TestTruncateToDateZeroesTime(t *testing.T) {
	in := time.Date(2026, 8, 3, 14, 30, 0, 0, time.UTC)
	got := truncateToDate(in)
	assert.Equal(t, 0, got.Hour())
	assert.Equal(t, 0, got.Minute())
	assert.Equal(t, in.Day(), got.Day())
}
