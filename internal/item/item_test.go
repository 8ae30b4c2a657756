package item

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStableUnderWhitespaceAndCase(t *testing.T) {
	a := Fingerprint("bbc-world", "Markets  Rally  On  Rate Cut")
	b := Fingerprint("bbc-world", "markets rally on rate cut")
	assert.Equal(t, a, b)
}

func TestFingerprintDiffersBySource(t *testing.T) {
	a := Fingerprint("bbc-world", "Markets rally")
	b := Fingerprint("cnn-world", "Markets rally")
	assert.NotEqual(t, a, b)
}

func TestFingerprintDiffersByTitle(t *testing.T) {
	a := Fingerprint("bbc-world", "Markets rally")
	b := Fingerprint("bbc-world", "Markets fall")
	assert.NotEqual(t, a, b)
}

func TestNewSetsTimeEstimatedAndCategory(t *testing.T) {
	now := time.Now()
	src := Source{ID: "bbc-world", Category: Global}
	it := New(src, "Headline", "https://example.com/a", now, now, true)
	assert.Equal(t, Global, it.Category)
	assert.True(t, it.TimeEstimated)
	assert.NotEmpty(t, it.Fingerprint)
}
