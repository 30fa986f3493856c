package orca

import (
	"fmt"
	"math/big"
)

// Q96 multipliers for positive ticks, one per bit starting at 2.
// Reference: whirlpools/programs/whirlpool/src/math/tick_math.rs
var positiveTickRatios = mustBigInts(
	"79236085330515764027303304731",
	"79244008939048815603706035061",
	"79259858533276714757314932305",
	"79291567232598584799939703904",
	"79355022692464371645785046466",
	"79482085999252804386437311141",
	"79736823300114093921829183326",
	"80248749790819932309965073892",
	"81282483887344747381513967011",
	"83390072131320151908154831281",
	"87770609709833776024991924138",
	"97234110755111693312479820773",
	"119332217159966728226237229890",
	"179736315981702064433883588727",
	"407748233172238350107850275304",
	"2098478828474011932436660412517",
	"55581415166113811149459800483533",
	"38992368544603139932233054999993551",
)

// Q64 multipliers for negative ticks, one per bit starting at 2.
var negativeTickRatios = mustBigInts(
	"18444899583751176498",
	"18443055278223354162",
	"18439367220385604838",
	"18431993317065449817",
	"18417254355718160513",
	"18387811781193591352",
	"18329067761203520168",
	"18212142134806087854",
	"17980523815641551639",
	"17526086738831147013",
	"16651378430235024244",
	"15030750278693429944",
	"12247334978882834399",
	"8131365268884726200",
	"3584323654723342297",
	"696457651847595233",
	"26294789957452057",
	"37481735321082",
)

var (
	positiveTickOdd  = mustBigInts("79232123823359799118286999567")[0]
	positiveTickEven = mustBigInts("79228162514264337593543950336")[0]
	negativeTickOdd  = mustBigInts("18445821805675392311")[0]
	negativeTickEven = mustBigInts("18446744073709551616")[0]
)

func mustBigInts(values ...string) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			panic(fmt.Sprintf("invalid integer constant %q", v))
		}
		out[i] = n
	}
	return out
}

// SqrtPriceFromTickIndex returns the Q64.64 sqrt price at a tick, bit-exact with the on-chain program.
func SqrtPriceFromTickIndex(tick int32) (*big.Int, error) {
	if tick < MIN_TICK || tick > MAX_TICK {
		return nil, fmt.Errorf("tick index %d out of bounds [%d, %d]", tick, MIN_TICK, MAX_TICK)
	}
	if tick >= 0 {
		return sqrtPricePositiveTick(tick), nil
	}
	return sqrtPriceNegativeTick(tick), nil
}

func sqrtPricePositiveTick(tick int32) *big.Int {
	ratio := new(big.Int)
	if tick&1 != 0 {
		ratio.Set(positiveTickOdd)
	} else {
		ratio.Set(positiveTickEven)
	}
	for i, mul := range positiveTickRatios {
		if tick&(1<<(i+1)) != 0 {
			ratio.Mul(ratio, mul)
			ratio.Rsh(ratio, 96)
		}
	}
	return ratio.Rsh(ratio, 32)
}

func sqrtPriceNegativeTick(tick int32) *big.Int {
	absTick := -tick
	ratio := new(big.Int)
	if absTick&1 != 0 {
		ratio.Set(negativeTickOdd)
	} else {
		ratio.Set(negativeTickEven)
	}
	for i, mul := range negativeTickRatios {
		if absTick&(1<<(i+1)) != 0 {
			ratio.Mul(ratio, mul)
			ratio.Rsh(ratio, 64)
		}
	}
	return ratio
}

// TickIndexFromSqrtPrice returns the greatest tick whose sqrt price is <= sqrtPrice.
func TickIndexFromSqrtPrice(sqrtPrice *big.Int) (int32, error) {
	if sqrtPrice.Cmp(MIN_SQRT_PRICE_X64.BigInt()) < 0 || sqrtPrice.Cmp(MAX_SQRT_PRICE_X64.BigInt()) > 0 {
		return 0, fmt.Errorf("sqrt price %s out of bounds", sqrtPrice.String())
	}
	lo, hi := int32(MIN_TICK), int32(MAX_TICK)
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		p, err := SqrtPriceFromTickIndex(mid)
		if err != nil {
			return 0, err
		}
		if p.Cmp(sqrtPrice) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}
