package orca

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigFromString(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "invalid integer %q", s)
	return v
}

func TestSqrtPriceFromTickIndex(t *testing.T) {
	cases := []struct {
		tick int32
		want string
	}{
		{0, "18446744073709551616"},
		{1, "18447666387855959850"},
		{-1, "18445821805675392311"},
		{64, "18505865242158250041"},
		{-64, "18387811781193591352"},
		{MAX_TICK, "79226673515401279992447579055"},
		{MIN_TICK, "4295048016"},
	}
	for _, tc := range cases {
		got, err := SqrtPriceFromTickIndex(tc.tick)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.String(), "tick %d", tc.tick)
	}

	assert.Equal(t, MAX_SQRT_PRICE_X64.BigInt().String(), mustSqrtPrice(t, MAX_TICK).String())
	assert.Equal(t, MIN_SQRT_PRICE_X64.BigInt().String(), mustSqrtPrice(t, MIN_TICK).String())

	_, err := SqrtPriceFromTickIndex(MAX_TICK + 1)
	assert.Error(t, err)
	_, err = SqrtPriceFromTickIndex(MIN_TICK - 1)
	assert.Error(t, err)
}

func mustSqrtPrice(t *testing.T, tick int32) *big.Int {
	t.Helper()
	p, err := SqrtPriceFromTickIndex(tick)
	require.NoError(t, err)
	return p
}

func TestTickIndexFromSqrtPrice(t *testing.T) {
	for _, tick := range []int32{MIN_TICK, -443635, -6400, -64, -1, 0, 1, 64, 6400, 443635, MAX_TICK} {
		got, err := TickIndexFromSqrtPrice(mustSqrtPrice(t, tick))
		require.NoError(t, err)
		assert.Equal(t, tick, got)
	}

	// a price strictly between two ticks maps to the lower one
	between := new(big.Int).Add(mustSqrtPrice(t, -64), bigOne)
	got, err := TickIndexFromSqrtPrice(between)
	require.NoError(t, err)
	assert.Equal(t, int32(-64), got)

	got, err = TickIndexFromSqrtPrice(bigFromString(t, "18446560161504741414"))
	require.NoError(t, err)
	assert.Equal(t, int32(-1), got)

	_, err = TickIndexFromSqrtPrice(big.NewInt(4295048015))
	assert.Error(t, err)
}
