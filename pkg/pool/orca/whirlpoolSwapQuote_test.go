package orca

import (
	"math/big"
	"testing"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

func newTestPool() *WhirlpoolPool {
	return &WhirlpoolPool{
		TickSpacing:      64,
		FeeRate:          3000,
		Liquidity:        uint128.From64(100_000_000_000),
		SqrtPrice:        uint128.FromBig(new(big.Int).Lsh(bigOne, 64)),
		TickCurrentIndex: 0,
		TokenMintA:       solana.NewWallet().PublicKey(),
		TokenMintB:       solana.NewWallet().PublicKey(),
		TokenVaultA:      solana.NewWallet().PublicKey(),
		TokenVaultB:      solana.NewWallet().PublicKey(),
		PoolId:           solana.NewWallet().PublicKey(),
	}
}

func initTick(ta *WhirlpoolTickArray, tickIndex int32, spacing uint16, liquidityNet int64) {
	offset := ta.tickOffset(tickIndex, spacing)
	ta.Ticks[offset] = WhirlpoolTick{Initialized: true, LiquidityNet: big.NewInt(liquidityNet)}
}

// arrays for a swap away from tick 0, with liquidity dropping 4e10 at +-128
// and 5e10 at +-6400
func testTickArrays(aToB bool) []*WhirlpoolTickArray {
	var arrays []*WhirlpoolTickArray
	if aToB {
		arrays = []*WhirlpoolTickArray{{StartTickIndex: 0}, {StartTickIndex: -5632}, {StartTickIndex: -11264}}
		initTick(arrays[1], -128, 64, 40_000_000_000)
		initTick(arrays[2], -6400, 64, 50_000_000_000)
	} else {
		arrays = []*WhirlpoolTickArray{{StartTickIndex: 0}, {StartTickIndex: 5632}, {StartTickIndex: 11264}}
		initTick(arrays[0], 128, 64, -40_000_000_000)
		initTick(arrays[1], 6400, 64, -50_000_000_000)
	}
	for i, ta := range arrays {
		ta.Address = solana.PublicKey{byte(i + 1)}
	}
	return arrays
}

func TestWhirlpoolSwapStepCompute(t *testing.T) {
	current := new(big.Int).Lsh(bigOne, 64)
	liquidity := big.NewInt(100_000_000_000)

	cases := []struct {
		name      string
		amount    int64
		target    int32
		isInput   bool
		aToB      bool
		wantPrice string
		wantIn    int64
		wantOut   int64
		wantFee   int64
	}{
		{"exact in stays inside range", 1_000_000, -64, true, true, "18446560161504741414", 997_000, 996_990, 3_000},
		{"exact in reaches target", 1_000_000_000, -64, true, true, "18387811781193591352", 320_496_497, 319_472_597, 964_383},
		{"exact out", 1_000_000, -64, false, true, "18446559606268814520", 1_000_011, 1_000_000, 3_010},
		{"b to a exact in", 1_000_000, 64, true, false, "18446927987747966500", 997_000, 996_990, 3_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			step, err := whirlpoolSwapStepCompute(big.NewInt(tc.amount), 3000, liquidity, current, mustSqrtPrice(t, tc.target), tc.isInput, tc.aToB)
			require.NoError(t, err)
			assert.Equal(t, tc.wantPrice, step.SqrtPriceX64Next.String())
			assert.Equal(t, tc.wantIn, step.AmountIn.Int64())
			assert.Equal(t, tc.wantOut, step.AmountOut.Int64())
			assert.Equal(t, tc.wantFee, step.FeeAmount.Int64())
		})
	}
}

func TestSimulateSwapCrossesInitializedTicks(t *testing.T) {
	cases := []struct {
		name     string
		aToB     bool
		wantOut  int64
		wantTick int32
		wantSqrt string
	}{
		{"a to b", true, 986_341_632, -246, "18221948420979021890"},
		{"b to a", false, 986_341_632, 245, "18674312925239632652"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pool := newTestPool()
			seq, err := NewTickSequence(pool.TickSpacing, testTickArrays(tc.aToB)...)
			require.NoError(t, err)

			quote, err := pool.SimulateSwap(seq, SwapParams{
				Amount:                 1_000_000_000,
				AmountSpecifiedIsInput: true,
				AToB:                   tc.aToB,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1_000_000_000), quote.EstimatedAmountIn.Int64())
			assert.Equal(t, tc.wantOut, quote.EstimatedAmountOut.Int64())
			assert.Equal(t, int64(3_000_001), quote.EstimatedFeeAmount.Int64())
			assert.Equal(t, tc.wantTick, quote.EstimatedEndTickIndex)
			assert.Equal(t, tc.wantSqrt, quote.EstimatedEndSqrtPrice.String())
		})
	}
}

func TestSimulateSwapExactOutput(t *testing.T) {
	pool := newTestPool()
	seq, err := NewTickSequence(pool.TickSpacing, testTickArrays(true)...)
	require.NoError(t, err)

	quote, err := pool.SimulateSwap(seq, SwapParams{
		Amount:                 1_000_000,
		AmountSpecifiedIsInput: false,
		AToB:                   true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1_003_021), quote.EstimatedAmountIn.Int64())
	assert.Equal(t, int64(1_000_000), quote.EstimatedAmountOut.Int64())
	assert.Equal(t, int32(-1), quote.EstimatedEndTickIndex)
}

func TestSimulateSwapRejectsBadInput(t *testing.T) {
	pool := newTestPool()
	seq, err := NewTickSequence(pool.TickSpacing, testTickArrays(true)...)
	require.NoError(t, err)

	_, err = pool.SimulateSwap(seq, SwapParams{Amount: 0, AmountSpecifiedIsInput: true, AToB: true})
	assert.ErrorIs(t, err, ErrZeroTradableAmount)

	// a->b moves the price down, so a limit above the current price is invalid
	_, err = pool.SimulateSwap(seq, SwapParams{
		Amount:                 1000,
		SqrtPriceLimit:         uint128.FromBig(mustSqrtPrice(t, 64)),
		AmountSpecifiedIsInput: true,
		AToB:                   true,
	})
	assert.ErrorIs(t, err, ErrInvalidPriceLimit)
}

func TestSimulateSwapStopsAtPriceLimit(t *testing.T) {
	pool := newTestPool()
	seq, err := NewTickSequence(pool.TickSpacing, testTickArrays(true)...)
	require.NoError(t, err)

	// FromBig shifts its argument in place
	limit := mustSqrtPrice(t, -64)
	quote, err := pool.SimulateSwap(seq, SwapParams{
		Amount:                 1_000_000_000,
		SqrtPriceLimit:         uint128.FromBig(new(big.Int).Set(limit)),
		AmountSpecifiedIsInput: true,
		AToB:                   true,
	})
	require.NoError(t, err)
	// same as a single step to tick -64: input plus fee is what was consumed
	assert.Equal(t, int64(320_496_497+964_383), quote.EstimatedAmountIn.Int64())
	assert.Equal(t, int64(319_472_597), quote.EstimatedAmountOut.Int64())
	assert.Equal(t, limit.String(), quote.EstimatedEndSqrtPrice.String())
	assert.Equal(t, int32(-64), quote.EstimatedEndTickIndex)
}

func TestSimulateSwapCrossesIntoLiquidity(t *testing.T) {
	pool := newTestPool()
	pool.Liquidity = uint128.Zero
	arrays := testTickArrays(true)
	initTick(arrays[1], -64, 64, -100_000_000_000)

	quote, err := pool.SwapQuoteByInputToken(pool.TokenMintA, 1_000_000_000, ZeroSlippage(), arrays)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), quote.EstimatedAmountIn.Int64())
	assert.True(t, quote.EstimatedAmountOut.IsPositive())
	// nothing is bought between tick 0 and -64, so the price ends lower
	// than the same swap against a pool in range
	assert.Less(t, quote.EstimatedAmountOut.Int64(), int64(986_341_632))
	assert.Less(t, quote.EstimatedEndTickIndex, int32(-246))
}

func TestSwapQuoteByInputToken(t *testing.T) {
	pool := newTestPool()
	arrays := testTickArrays(true)

	quote, err := pool.SwapQuoteByInputToken(pool.TokenMintA, 1_000_000, ZeroSlippage(), arrays)
	require.NoError(t, err)
	assert.True(t, quote.Params.AToB)
	assert.Equal(t, int64(996_990), quote.EstimatedAmountOut.Int64())
	assert.True(t, quote.OtherAmountThreshold.Equal(quote.EstimatedAmountOut))
	assert.Equal(t, arrays[0].Address, quote.TickArrays[0])
	assert.Equal(t, arrays[2].Address, quote.TickArrays[2])

	withSlippage, err := pool.SwapQuoteByInputToken(pool.TokenMintA, 1_000_000, Percentage{Numerator: 1, Denominator: 100}, arrays)
	require.NoError(t, err)
	assert.Equal(t, int64(987_118), withSlippage.OtherAmountThreshold.Int64())

	_, err = pool.SwapQuoteByInputToken(solana.NewWallet().PublicKey(), 1_000_000, ZeroSlippage(), arrays)
	assert.ErrorIs(t, err, ErrInputMintNotInPool)
}

func TestSwapQuoteByOutputToken(t *testing.T) {
	pool := newTestPool()
	quote, err := pool.SwapQuoteByOutputToken(pool.TokenMintB, 1_000_000, Percentage{Numerator: 1, Denominator: 100}, testTickArrays(true))
	require.NoError(t, err)
	assert.True(t, quote.Params.AToB)
	assert.False(t, quote.Params.AmountSpecifiedIsInput)
	assert.Equal(t, int64(1_003_021), quote.EstimatedAmountIn.Int64())
	assert.Equal(t, int64(1_013_051), quote.OtherAmountThreshold.Int64())
}

func TestAdjustForSlippage(t *testing.T) {
	n := cosmath.NewInt(996_990)
	assert.Equal(t, int64(996_990), AdjustForSlippage(n, ZeroSlippage(), false).Int64())
	assert.Equal(t, int64(996_990), AdjustForSlippage(n, ZeroSlippage(), true).Int64())
	assert.Equal(t, int64(987_118), AdjustForSlippage(n, Percentage{1, 100}, false).Int64())
	assert.Equal(t, int64(1_006_959), AdjustForSlippage(n, Percentage{1, 100}, true).Int64())
}

func TestLiquidityAfterCrossing(t *testing.T) {
	l, err := liquidityAfterCrossing(big.NewInt(100), big.NewInt(40), true)
	require.NoError(t, err)
	assert.Equal(t, int64(60), l.Int64())

	l, err = liquidityAfterCrossing(big.NewInt(100), big.NewInt(40), false)
	require.NoError(t, err)
	assert.Equal(t, int64(140), l.Int64())

	_, err = liquidityAfterCrossing(big.NewInt(10), big.NewInt(40), true)
	assert.ErrorIs(t, err, ErrLiquidityUnderflow)
}
