package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoinGeckoIDMapsKnownSymbol(t *testing.T) {
	assert.Equal(t, "bitcoin", coinGeckoID("BTC"))
}

func TestCoinGeckoIDFallsBackToLowercase(t *testing.T) {
	assert.Equal(t, "somecoin", coinGeckoID("SOMECOIN"))
}

func TestLowercaseOnlyAffectsUppercaseASCII(t *testing.T) {
	assert.Equal(t, "abc123", lowercase("ABC123"))
}
