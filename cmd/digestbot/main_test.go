package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoinSymbolArgDefaultsToBTC(t *testing.T) {
	assert.Equal(t, "BTC", coinSymbolArg("/btcstats"))
}

func TestCoinSymbolArgUppercasesGivenSymbol(t *testing.T) {
	assert.Equal(t, "ETH", coinSymbolArg("/coin eth"))
}
