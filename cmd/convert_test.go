package cmd

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3link/internal/chain"
)

// ---------------------------------------------------------------------------
// convertAmount
// ---------------------------------------------------------------------------

func pairValue(pairs [][2]string, key string) string {
	for _, p := range pairs {
		if p[0] == key {
			return p[1]
		}
	}
	return ""
}

func TestConvertDecimalToRaw(t *testing.T) {
	pairs, err := convertAmount("12.5", 6, false)
	require.NoError(t, err)
	assert.Contains(t, pairValue(pairs, "Raw"), "12500000")
	assert.Contains(t, pairValue(pairs, "Hex"), "0xbebc20")
}

func TestConvertOneEther(t *testing.T) {
	pairs, err := convertAmount("1", 18, false)
	require.NoError(t, err)
	assert.Contains(t, pairValue(pairs, "Raw"), "1000000000000000000")
}

func TestConvertRawToDecimal(t *testing.T) {
	pairs, err := convertAmount("12500000", 6, true)
	require.NoError(t, err)
	assert.Contains(t, pairValue(pairs, "Amount"), "12.5")
	assert.Equal(t, "12.5000", pairValue(pairs, "Display"))
}

func TestConvertRawHex(t *testing.T) {
	pairs, err := convertAmount("0xbebc20", 6, true)
	require.NoError(t, err)
	assert.Contains(t, pairValue(pairs, "Amount"), "12.5")
}

func TestConvertTooManyDecimals(t *testing.T) {
	_, err := convertAmount("0.0000001", 6, false)
	assert.ErrorIs(t, err, chain.ErrInvalidAmount)
}

func TestConvertRejectsNegativeRaw(t *testing.T) {
	_, err := convertAmount("-5", 6, true)
	assert.Error(t, err)
}

func TestParseRaw(t *testing.T) {
	n, ok := parseRaw("0xff")
	require.True(t, ok)
	assert.Equal(t, big.NewInt(255), n)

	_, ok = parseRaw("12.5")
	assert.False(t, ok)
}

func TestConvertCommand(t *testing.T) {
	out, err := run(t, "convert", "1.5", "--decimals", "6")
	require.NoError(t, err)
	assert.Contains(t, out, "1500000")
}
