package orca

import (
	"math/big"

	"cosmossdk.io/math"
	"github.com/Solana-ZH/orcacpi/pkg/sol"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// Program IDs
var (
	// Orca Whirlpool Program ID (same address on mainnet and devnet)
	ORCA_WHIRLPOOL_PROGRAM_ID = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")

	// Mainnet WhirlpoolsConfig owned by Orca
	ORCA_WHIRLPOOLS_CONFIG = solana.MustPublicKeyFromBase58("2LecshUwdy9xi7meFgHtFJQNSKk4KdTrcpvaB56dP2NQ")
	// Devnet WhirlpoolsConfig owned by Orca
	ORCA_WHIRLPOOLS_CONFIG_DEVNET = solana.MustPublicKeyFromBase58("FcrweFY1G9HJAHG5inkGB6pKg1HZ6x9UC2WioAfWrGkR")

	TOKEN_PROGRAM_ID = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
)

// Tick configuration
// Reference: whirlpools/programs/whirlpool/src/state/tick.rs
const (
	TICK_ARRAY_SIZE = 88
	MAX_TICK        = 443636
	MIN_TICK        = -443636

	// Bytes per tick: initialized(1) + liquidity_net(16) + liquidity_gross(16) +
	// fee_growth_outside_a(16) + fee_growth_outside_b(16) + reward_growths_outside(3*16)
	TICK_SIZE = 113

	// discriminator(8) + start_tick_index(4) + ticks(88*113) + whirlpool(32)
	TICK_ARRAY_ACCOUNT_SIZE = 8 + 4 + TICK_ARRAY_SIZE*TICK_SIZE + 32

	U64Resolution = 64
)

// Price bounds
// Reference: whirlpools/programs/whirlpool/src/math/tick_math.rs
var (
	MIN_SQRT_PRICE_X64    = math.NewIntFromBigInt(big.NewInt(4295048016))
	MAX_SQRT_PRICE_X64, _ = math.NewIntFromString("79226673515401279992447579055")

	// Fee rates are expressed in hundredths of a basis point
	FEE_RATE_MUL_VALUE = math.NewInt(1_000_000)
)

// MinSqrtPrice and MaxSqrtPrice are the u128 forms used in instruction args.
func MinSqrtPrice() uint128.Uint128 { return uint128.FromBig(MIN_SQRT_PRICE_X64.BigInt()) }
func MaxSqrtPrice() uint128.Uint128 { return uint128.FromBig(MAX_SQRT_PRICE_X64.BigInt()) }

// Seeds and discriminators
var (
	WHIRLPOOL_SEED  = "whirlpool"
	TICK_ARRAY_SEED = "tick_array"
	ORACLE_SEED     = "oracle"

	// Anchor account discriminators
	WhirlpoolDiscriminator = sol.AnchorDiscriminator(sol.AnchorAccountNamespace, "Whirlpool")
	TickArrayDiscriminator = sol.AnchorDiscriminator(sol.AnchorAccountNamespace, "TickArray")

	// Whirlpool swap instruction discriminator (from IDL)
	SwapDiscriminator = []byte{248, 198, 158, 145, 225, 117, 135, 200}
)

// Whirlpool-specific constants
const (
	// Whirlpool account data size (653 bytes including discriminator)
	WHIRLPOOL_SIZE = 653

	TICK_SPACING_STABLE   = 1
	TICK_SPACING_STANDARD = 64
	TICK_SPACING_VOLATILE = 128
)

// Q64 format constant (2^64)
var Q64 = math.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), 64))
