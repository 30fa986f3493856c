package orca

import (
	"errors"
	"fmt"
	"math/big"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

var (
	ErrZeroTradableAmount = errors.New("zero tradable amount")
	ErrInvalidPriceLimit  = errors.New("invalid sqrt price limit direction")
	ErrPartialFill        = errors.New("swap could not be fully filled")
	ErrInputMintNotInPool = errors.New("input mint not found in pool")
	ErrLiquidityUnderflow = errors.New("liquidity underflow while crossing tick")
)

// SwapParams are the arguments of a whirlpool swap.
type SwapParams struct {
	Amount                 uint64
	SqrtPriceLimit         uint128.Uint128 // zero selects the protocol bound for the direction
	AmountSpecifiedIsInput bool
	AToB                   bool
}

// Percentage is a slippage tolerance expressed as a fraction.
type Percentage struct {
	Numerator   uint64
	Denominator uint64
}

// ZeroSlippage tolerates no deviation from the estimate.
func ZeroSlippage() Percentage { return Percentage{Numerator: 0, Denominator: 1000} }

// AdjustForSlippage widens n by the tolerance: up multiplies by (1 + p), down divides by it.
func AdjustForSlippage(n cosmath.Int, slippage Percentage, adjustUp bool) cosmath.Int {
	if slippage.Denominator == 0 {
		return n
	}
	num := cosmath.NewIntFromUint64(slippage.Numerator)
	den := cosmath.NewIntFromUint64(slippage.Denominator)
	if adjustUp {
		return n.Mul(den.Add(num)).Quo(den)
	}
	return n.Mul(den).Quo(den.Add(num))
}

// SwapQuote is the expected outcome of a swap against one pool snapshot.
type SwapQuote struct {
	Params                SwapParams
	EstimatedAmountIn     cosmath.Int
	EstimatedAmountOut    cosmath.Int
	EstimatedFeeAmount    cosmath.Int
	EstimatedEndTickIndex int32
	EstimatedEndSqrtPrice uint128.Uint128
	OtherAmountThreshold  cosmath.Int
	TickArrays            [3]solana.PublicKey
}

// DefaultSqrtPriceLimit returns the protocol price bound for a direction.
func DefaultSqrtPriceLimit(aToB bool) uint128.Uint128 {
	if aToB {
		return MinSqrtPrice()
	}
	return MaxSqrtPrice()
}

// SimulateSwap walks the tick sequence the same way the program does and
// returns the amounts the swap would move.
// Reference: whirlpools/programs/whirlpool/src/manager/swap_manager.rs swap
func (pool *WhirlpoolPool) SimulateSwap(seq *TickSequence, params SwapParams) (*SwapQuote, error) {
	if params.Amount == 0 {
		return nil, ErrZeroTradableAmount
	}
	if pool.Liquidity.IsZero() && pool.SqrtPrice.IsZero() {
		return nil, ErrZeroLiquidity
	}

	priceLimit := params.SqrtPriceLimit
	if priceLimit.IsZero() {
		priceLimit = DefaultSqrtPriceLimit(params.AToB)
	}
	limit := priceLimit.Big()
	if err := checkSqrtPriceBounds(limit); err != nil {
		return nil, err
	}
	currSqrtPrice := pool.SqrtPrice.Big()
	if (params.AToB && limit.Cmp(currSqrtPrice) > 0) || (!params.AToB && limit.Cmp(currSqrtPrice) < 0) {
		return nil, fmt.Errorf("%w: limit %s, current %s", ErrInvalidPriceLimit, limit.String(), currSqrtPrice.String())
	}

	amount := new(big.Int).SetUint64(params.Amount)
	amountRemaining := new(big.Int).Set(amount)
	amountCalculated := new(big.Int)
	feeTotal := new(big.Int)
	currTickIndex := pool.TickCurrentIndex
	currLiquidity := pool.Liquidity.Big()
	arrayIndex := 0

	for amountRemaining.Sign() > 0 && limit.Cmp(currSqrtPrice) != 0 {
		nextArrayIndex, nextTickIndex, err := seq.nextInitializedTickIndex(currTickIndex, params.AToB, arrayIndex)
		if err != nil {
			return nil, err
		}
		nextTickSqrtPrice, err := SqrtPriceFromTickIndex(nextTickIndex)
		if err != nil {
			return nil, err
		}
		target := nextTickSqrtPrice
		if (params.AToB && limit.Cmp(nextTickSqrtPrice) > 0) || (!params.AToB && limit.Cmp(nextTickSqrtPrice) < 0) {
			target = limit
		}

		step, err := whirlpoolSwapStepCompute(amountRemaining, pool.FeeRate, currLiquidity, currSqrtPrice, target, params.AmountSpecifiedIsInput, params.AToB)
		if err != nil {
			return nil, fmt.Errorf("swap step at tick %d failed: %w", currTickIndex, err)
		}

		if params.AmountSpecifiedIsInput {
			amountRemaining.Sub(amountRemaining, step.AmountIn)
			amountRemaining.Sub(amountRemaining, step.FeeAmount)
			amountCalculated.Add(amountCalculated, step.AmountOut)
		} else {
			amountRemaining.Sub(amountRemaining, step.AmountOut)
			amountCalculated.Add(amountCalculated, step.AmountIn)
			amountCalculated.Add(amountCalculated, step.FeeAmount)
		}
		if amountRemaining.Sign() < 0 {
			return nil, fmt.Errorf("amount remaining underflow at tick %d", currTickIndex)
		}
		feeTotal.Add(feeTotal, step.FeeAmount)

		switch {
		case step.SqrtPriceX64Next.Cmp(nextTickSqrtPrice) == 0:
			// an unreadable tick counts as uninitialized, as on-chain
			if tick, err := seq.tick(nextArrayIndex, nextTickIndex); err == nil && tick.Initialized {
				currLiquidity, err = liquidityAfterCrossing(currLiquidity, tick.LiquidityNet, params.AToB)
				if err != nil {
					return nil, err
				}
			}
			arrayIndex = nextArrayIndex
			if nextArrayIndex < seq.Len() {
				offset := seq.arrays[nextArrayIndex].tickOffset(nextTickIndex, seq.tickSpacing)
				if (params.AToB && offset == 0) || (!params.AToB && offset == TICK_ARRAY_SIZE-1) {
					arrayIndex = nextArrayIndex + 1
				}
			}
			if params.AToB {
				currTickIndex = nextTickIndex - 1
			} else {
				currTickIndex = nextTickIndex
			}
		case step.SqrtPriceX64Next.Cmp(currSqrtPrice) != 0:
			currTickIndex, err = TickIndexFromSqrtPrice(step.SqrtPriceX64Next)
			if err != nil {
				return nil, err
			}
		}
		currSqrtPrice = step.SqrtPriceX64Next
	}

	if amountRemaining.Sign() > 0 && !params.AmountSpecifiedIsInput && params.SqrtPriceLimit.IsZero() {
		return nil, fmt.Errorf("%w: %s of %d left", ErrPartialFill, amountRemaining.String(), params.Amount)
	}

	filled := new(big.Int).Sub(amount, amountRemaining)
	quote := &SwapQuote{
		Params:                params,
		EstimatedFeeAmount:    cosmath.NewIntFromBigInt(feeTotal),
		EstimatedEndTickIndex: currTickIndex,
		EstimatedEndSqrtPrice: uint128.FromBig(new(big.Int).Set(currSqrtPrice)),
	}
	if params.AmountSpecifiedIsInput {
		quote.EstimatedAmountIn = cosmath.NewIntFromBigInt(filled)
		quote.EstimatedAmountOut = cosmath.NewIntFromBigInt(amountCalculated)
	} else {
		quote.EstimatedAmountIn = cosmath.NewIntFromBigInt(amountCalculated)
		quote.EstimatedAmountOut = cosmath.NewIntFromBigInt(filled)
	}
	return quote, nil
}

// liquidityAfterCrossing applies a tick's liquidity_net; a->b crossings subtract it.
func liquidityAfterCrossing(liquidity, liquidityNet *big.Int, aToB bool) (*big.Int, error) {
	delta := new(big.Int).Set(liquidityNet)
	if aToB {
		delta.Neg(delta)
	}
	next := new(big.Int).Add(liquidity, delta)
	if next.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s + %s", ErrLiquidityUnderflow, liquidity.String(), delta.String())
	}
	return next, nil
}

// SwapQuoteByInputToken quotes an exact-input swap of inputMint and applies
// the slippage tolerance to the minimum output.
func (pool *WhirlpoolPool) SwapQuoteByInputToken(inputMint solana.PublicKey, amount uint64, slippage Percentage, tickArrays []*WhirlpoolTickArray) (*SwapQuote, error) {
	aToB, err := pool.directionForInput(inputMint)
	if err != nil {
		return nil, err
	}
	seq, err := NewTickSequence(pool.TickSpacing, tickArrays...)
	if err != nil {
		return nil, err
	}
	quote, err := pool.SimulateSwap(seq, SwapParams{
		Amount:                 amount,
		AmountSpecifiedIsInput: true,
		AToB:                   aToB,
	})
	if err != nil {
		return nil, err
	}
	quote.OtherAmountThreshold = AdjustForSlippage(quote.EstimatedAmountOut, slippage, false)
	for i, ta := range tickArrays {
		if i < len(quote.TickArrays) && ta != nil {
			quote.TickArrays[i] = ta.Address
		}
	}
	return quote, nil
}

// SwapQuoteByOutputToken quotes an exact-output swap yielding amount of outputMint.
func (pool *WhirlpoolPool) SwapQuoteByOutputToken(outputMint solana.PublicKey, amount uint64, slippage Percentage, tickArrays []*WhirlpoolTickArray) (*SwapQuote, error) {
	outIsA, err := pool.directionForInput(outputMint)
	if err != nil {
		return nil, err
	}
	seq, err := NewTickSequence(pool.TickSpacing, tickArrays...)
	if err != nil {
		return nil, err
	}
	quote, err := pool.SimulateSwap(seq, SwapParams{
		Amount:                 amount,
		AmountSpecifiedIsInput: false,
		AToB:                   !outIsA,
	})
	if err != nil {
		return nil, err
	}
	quote.OtherAmountThreshold = AdjustForSlippage(quote.EstimatedAmountIn, slippage, true)
	for i, ta := range tickArrays {
		if i < len(quote.TickArrays) && ta != nil {
			quote.TickArrays[i] = ta.Address
		}
	}
	return quote, nil
}

// directionForInput returns true when mint is token A.
func (pool *WhirlpoolPool) directionForInput(mint solana.PublicKey) (bool, error) {
	switch {
	case mint.Equals(pool.TokenMintA):
		return true, nil
	case mint.Equals(pool.TokenMintB):
		return false, nil
	}
	return false, fmt.Errorf("%w: %s not in pool %s", ErrInputMintNotInPool, mint, pool.PoolId)
}
