package orca

import (
	"errors"
	"fmt"
	"math/big"

	cosmath "cosmossdk.io/math"
)

var (
	ErrZeroLiquidity       = errors.New("liquidity is zero")
	ErrAmountExceedsU64    = errors.New("amount exceeds u64")
	ErrSqrtPriceOutOfRange = errors.New("sqrt price out of bounds")
	ErrDivideByZero        = errors.New("division by zero")
)

var (
	bigOne    = big.NewInt(1)
	maxU64    = new(big.Int).SetUint64(^uint64(0))
	lowU64Bit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, U64Resolution), bigOne)
)

// WhirlpoolSwapStep is the outcome of a swap inside a single liquidity range.
type WhirlpoolSwapStep struct {
	SqrtPriceX64Next *big.Int
	AmountIn         *big.Int
	AmountOut        *big.Int
	FeeAmount        *big.Int
}

// whirlpoolMulDivFloor - floor(a * b / denominator)
func whirlpoolMulDivFloor(a, b, denominator cosmath.Int) (cosmath.Int, error) {
	if denominator.IsZero() {
		return cosmath.Int{}, ErrDivideByZero
	}
	return a.Mul(b).Quo(denominator), nil
}

// whirlpoolMulDivCeil - ceil(a * b / denominator)
func whirlpoolMulDivCeil(a, b, denominator cosmath.Int) (cosmath.Int, error) {
	if denominator.IsZero() {
		return cosmath.Int{}, ErrDivideByZero
	}
	numerator := a.Mul(b).Add(denominator.Sub(cosmath.OneInt()))
	return numerator.Quo(denominator), nil
}

// whirlpoolDivRoundUpIf divides and rounds up when roundUp is set and there is a remainder.
func whirlpoolDivRoundUpIf(numerator, denominator *big.Int, roundUp bool) (*big.Int, error) {
	if denominator.Sign() == 0 {
		return nil, ErrDivideByZero
	}
	q, r := new(big.Int).QuoRem(numerator, denominator, new(big.Int))
	if roundUp && r.Sign() != 0 {
		q.Add(q, bigOne)
	}
	return q, nil
}

func orderedPrices(p0, p1 *big.Int) (*big.Int, *big.Int) {
	if p0.Cmp(p1) > 0 {
		return p1, p0
	}
	return p0, p1
}

// whirlpoolGetTokenAmountAFromLiquidity returns liquidity * (upper - lower) * 2^64 / (upper * lower).
// The result may exceed u64; callers decide whether that is an error.
func whirlpoolGetTokenAmountAFromLiquidity(sqrtPrice0, sqrtPrice1, liquidity *big.Int, roundUp bool) (*big.Int, error) {
	lower, upper := orderedPrices(sqrtPrice0, sqrtPrice1)
	if lower.Sign() <= 0 {
		return nil, fmt.Errorf("%w: lower sqrt price must be positive", ErrSqrtPriceOutOfRange)
	}
	diff := new(big.Int).Sub(upper, lower)
	numerator := new(big.Int).Mul(liquidity, diff)
	numerator.Lsh(numerator, U64Resolution)
	denominator := new(big.Int).Mul(upper, lower)
	return whirlpoolDivRoundUpIf(numerator, denominator, roundUp)
}

// whirlpoolGetTokenAmountBFromLiquidity returns liquidity * (upper - lower) / 2^64.
func whirlpoolGetTokenAmountBFromLiquidity(sqrtPrice0, sqrtPrice1, liquidity *big.Int, roundUp bool) *big.Int {
	lower, upper := orderedPrices(sqrtPrice0, sqrtPrice1)
	p := new(big.Int).Mul(liquidity, new(big.Int).Sub(upper, lower))
	result := new(big.Int).Rsh(p, U64Resolution)
	if roundUp && new(big.Int).And(p, lowU64Bit).Sign() > 0 {
		result.Add(result, bigOne)
	}
	return result
}

// whirlpoolGetNextSqrtPriceFromTokenAmountARoundingUp
// price' = L * P * 2^64 / (L * 2^64 +- amount * P), rounded up
func whirlpoolGetNextSqrtPriceFromTokenAmountARoundingUp(sqrtPrice, liquidity, amount *big.Int, add bool) (*big.Int, error) {
	if amount.Sign() == 0 {
		return new(big.Int).Set(sqrtPrice), nil
	}
	product := new(big.Int).Mul(sqrtPrice, amount)
	numerator := new(big.Int).Mul(liquidity, sqrtPrice)
	numerator.Lsh(numerator, U64Resolution)
	liquidityShiftLeft := new(big.Int).Lsh(liquidity, U64Resolution)

	var denominator *big.Int
	if add {
		denominator = new(big.Int).Add(liquidityShiftLeft, product)
	} else {
		if liquidityShiftLeft.Cmp(product) <= 0 {
			return nil, fmt.Errorf("%w: liquidity too small for output amount", ErrDivideByZero)
		}
		denominator = new(big.Int).Sub(liquidityShiftLeft, product)
	}
	price, err := whirlpoolDivRoundUpIf(numerator, denominator, true)
	if err != nil {
		return nil, err
	}
	if err := checkSqrtPriceBounds(price); err != nil {
		return nil, err
	}
	return price, nil
}

// whirlpoolGetNextSqrtPriceFromTokenAmountBRoundingDown
// price' = P +- amount * 2^64 / L (rounded up when subtracting)
func whirlpoolGetNextSqrtPriceFromTokenAmountBRoundingDown(sqrtPrice, liquidity, amount *big.Int, add bool) (*big.Int, error) {
	amountX64 := new(big.Int).Lsh(amount, U64Resolution)
	delta, err := whirlpoolDivRoundUpIf(amountX64, liquidity, !add)
	if err != nil {
		return nil, err
	}
	if add {
		return new(big.Int).Add(sqrtPrice, delta), nil
	}
	if sqrtPrice.Cmp(delta) < 0 {
		return nil, fmt.Errorf("%w: sqrt price underflow", ErrSqrtPriceOutOfRange)
	}
	return new(big.Int).Sub(sqrtPrice, delta), nil
}

func checkSqrtPriceBounds(price *big.Int) error {
	if price.Cmp(MIN_SQRT_PRICE_X64.BigInt()) < 0 || price.Cmp(MAX_SQRT_PRICE_X64.BigInt()) > 0 {
		return fmt.Errorf("%w: %s", ErrSqrtPriceOutOfRange, price.String())
	}
	return nil
}

func whirlpoolGetNextSqrtPrice(sqrtPrice, liquidity, amount *big.Int, amountSpecifiedIsInput, aToB bool) (*big.Int, error) {
	if amountSpecifiedIsInput == aToB {
		return whirlpoolGetNextSqrtPriceFromTokenAmountARoundingUp(sqrtPrice, liquidity, amount, amountSpecifiedIsInput)
	}
	return whirlpoolGetNextSqrtPriceFromTokenAmountBRoundingDown(sqrtPrice, liquidity, amount, amountSpecifiedIsInput)
}

// fixed delta: the token whose amount the caller specified
func whirlpoolGetAmountFixedDelta(current, target, liquidity *big.Int, amountSpecifiedIsInput, aToB bool) (*big.Int, error) {
	if aToB == amountSpecifiedIsInput {
		return whirlpoolGetTokenAmountAFromLiquidity(current, target, liquidity, amountSpecifiedIsInput)
	}
	return whirlpoolGetTokenAmountBFromLiquidity(current, target, liquidity, amountSpecifiedIsInput), nil
}

// unfixed delta: the other token, rounded against the trader
func whirlpoolGetAmountUnfixedDelta(current, target, liquidity *big.Int, amountSpecifiedIsInput, aToB bool) (*big.Int, error) {
	var delta *big.Int
	var err error
	if aToB == amountSpecifiedIsInput {
		delta = whirlpoolGetTokenAmountBFromLiquidity(current, target, liquidity, !amountSpecifiedIsInput)
	} else {
		delta, err = whirlpoolGetTokenAmountAFromLiquidity(current, target, liquidity, !amountSpecifiedIsInput)
		if err != nil {
			return nil, err
		}
	}
	if delta.Cmp(maxU64) > 0 {
		return nil, fmt.Errorf("%w: unfixed delta %s", ErrAmountExceedsU64, delta.String())
	}
	return delta, nil
}

// whirlpoolSwapStepCompute computes one step of a swap, moving the price from
// current towards target within a single liquidity range.
// Reference: whirlpools/programs/whirlpool/src/math/swap_math.rs compute_swap
func whirlpoolSwapStepCompute(
	amountRemaining *big.Int,
	feeRate uint16,
	liquidity *big.Int,
	sqrtPriceCurrent *big.Int,
	sqrtPriceTarget *big.Int,
	amountSpecifiedIsInput bool,
	aToB bool,
) (*WhirlpoolSwapStep, error) {
	initialFixedDelta, err := whirlpoolGetAmountFixedDelta(sqrtPriceCurrent, sqrtPriceTarget, liquidity, amountSpecifiedIsInput, aToB)
	if err != nil {
		return nil, err
	}

	amountCalc := new(big.Int).Set(amountRemaining)
	if amountSpecifiedIsInput {
		fee := cosmath.NewInt(int64(feeRate))
		calc, err := whirlpoolMulDivFloor(cosmath.NewIntFromBigInt(amountRemaining), FEE_RATE_MUL_VALUE.Sub(fee), FEE_RATE_MUL_VALUE)
		if err != nil {
			return nil, err
		}
		amountCalc = calc.BigInt()
	}

	var nextSqrtPrice *big.Int
	if initialFixedDelta.Cmp(amountCalc) <= 0 {
		nextSqrtPrice = new(big.Int).Set(sqrtPriceTarget)
	} else {
		nextSqrtPrice, err = whirlpoolGetNextSqrtPrice(sqrtPriceCurrent, liquidity, amountCalc, amountSpecifiedIsInput, aToB)
		if err != nil {
			return nil, err
		}
	}
	isMaxSwap := nextSqrtPrice.Cmp(sqrtPriceTarget) == 0

	amountUnfixedDelta, err := whirlpoolGetAmountUnfixedDelta(sqrtPriceCurrent, nextSqrtPrice, liquidity, amountSpecifiedIsInput, aToB)
	if err != nil {
		return nil, err
	}

	amountFixedDelta := initialFixedDelta
	if !isMaxSwap {
		amountFixedDelta, err = whirlpoolGetAmountFixedDelta(sqrtPriceCurrent, nextSqrtPrice, liquidity, amountSpecifiedIsInput, aToB)
		if err != nil {
			return nil, err
		}
	}
	if amountFixedDelta.Cmp(maxU64) > 0 {
		return nil, fmt.Errorf("%w: fixed delta %s", ErrAmountExceedsU64, amountFixedDelta.String())
	}

	step := &WhirlpoolSwapStep{SqrtPriceX64Next: nextSqrtPrice}
	if amountSpecifiedIsInput {
		step.AmountIn, step.AmountOut = amountFixedDelta, amountUnfixedDelta
	} else {
		step.AmountIn, step.AmountOut = amountUnfixedDelta, amountFixedDelta
	}

	// cap output when the caller fixed the output amount
	if !amountSpecifiedIsInput && step.AmountOut.Cmp(amountRemaining) > 0 {
		step.AmountOut = new(big.Int).Set(amountRemaining)
	}

	if amountSpecifiedIsInput && !isMaxSwap {
		step.FeeAmount = new(big.Int).Sub(amountRemaining, step.AmountIn)
	} else {
		fee := cosmath.NewInt(int64(feeRate))
		feeAmount, err := whirlpoolMulDivCeil(cosmath.NewIntFromBigInt(step.AmountIn), fee, FEE_RATE_MUL_VALUE.Sub(fee))
		if err != nil {
			return nil, err
		}
		step.FeeAmount = feeAmount.BigInt()
	}
	return step, nil
}
