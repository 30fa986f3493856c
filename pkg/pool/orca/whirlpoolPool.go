package orca

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	cosmath "cosmossdk.io/math"
	"github.com/Solana-ZH/orcacpi/pkg"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"lukechampine.com/uint128"
)

// ErrInvalidPoolState is returned when a decoded whirlpool cannot be traded against.
var ErrInvalidPoolState = errors.New("invalid whirlpool state")

var _ pkg.Pool = (*WhirlpoolPool)(nil)

// WhirlpoolPool struct - Mapped from Orca Whirlpool account structure
//
// Total account size: 653 bytes (including 8-byte discriminator)
type WhirlpoolPool struct {
	// 8 bytes discriminator
	Discriminator [8]uint8 `bin:"skip"`

	// Core configuration
	WhirlpoolsConfig solana.PublicKey // whirlpoolsConfig
	WhirlpoolBump    [1]uint8         // whirlpoolBump
	TickSpacing      uint16           // tickSpacing
	FeeTierIndexSeed [2]uint8         // feeTierIndexSeed
	FeeRate          uint16           // feeRate, hundredths of a basis point
	ProtocolFeeRate  uint16           // protocolFeeRate

	// Liquidity state
	Liquidity        uint128.Uint128 // liquidity
	SqrtPrice        uint128.Uint128 // sqrtPrice, Q64.64
	TickCurrentIndex int32           // tickCurrentIndex

	// Protocol fees
	ProtocolFeeOwedA uint64 // protocolFeeOwedA
	ProtocolFeeOwedB uint64 // protocolFeeOwedB

	// Token configuration
	TokenMintA       solana.PublicKey // tokenMintA
	TokenVaultA      solana.PublicKey // tokenVaultA
	FeeGrowthGlobalA uint128.Uint128  // feeGrowthGlobalA

	TokenMintB       solana.PublicKey // tokenMintB
	TokenVaultB      solana.PublicKey // tokenVaultB
	FeeGrowthGlobalB uint128.Uint128  // feeGrowthGlobalB

	// Reward information
	RewardLastUpdatedTimestamp uint64                 // rewardLastUpdatedTimestamp
	RewardInfos                [3]WhirlpoolRewardInfo // rewardInfos

	// Not part of the account data
	PoolId    solana.PublicKey
	ProgramID solana.PublicKey
}

// WhirlpoolRewardInfo reward information structure
type WhirlpoolRewardInfo struct {
	Mint                  solana.PublicKey // mint
	Vault                 solana.PublicKey // vault
	Authority             solana.PublicKey // authority
	EmissionsPerSecondX64 uint128.Uint128  // emissionsPerSecondX64
	GrowthGlobalX64       uint128.Uint128  // growthGlobalX64
}

// Implement basic methods of Pool interface
func (pool *WhirlpoolPool) ProtocolName() pkg.ProtocolName {
	return pkg.ProtocolNameOrcaWhirlpool
}

func (pool *WhirlpoolPool) GetProgramID() solana.PublicKey {
	if pool.ProgramID.IsZero() {
		return ORCA_WHIRLPOOL_PROGRAM_ID
	}
	return pool.ProgramID
}

func (pool *WhirlpoolPool) GetID() string {
	return pool.PoolId.String()
}

// GetTokens returns token pair as (A, B)
func (pool *WhirlpoolPool) GetTokens() (baseMint, quoteMint string) {
	return pool.TokenMintA.String(), pool.TokenMintB.String()
}

// Decode parses Whirlpool account data, discriminator included
func (pool *WhirlpoolPool) Decode(data []byte) error {
	if len(data) < WHIRLPOOL_SIZE {
		return fmt.Errorf("whirlpool data too short: %d < %d", len(data), WHIRLPOOL_SIZE)
	}
	copy(pool.Discriminator[:], data[:8])
	if pool.Discriminator != WhirlpoolDiscriminator {
		return fmt.Errorf("account is not a whirlpool (discriminator %v)", pool.Discriminator)
	}
	data = data[8:]

	offset := 0

	pool.WhirlpoolsConfig = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	copy(pool.WhirlpoolBump[:], data[offset:offset+1])
	offset += 1

	pool.TickSpacing = binary.LittleEndian.Uint16(data[offset : offset+2])
	offset += 2

	copy(pool.FeeTierIndexSeed[:], data[offset:offset+2])
	offset += 2

	pool.FeeRate = binary.LittleEndian.Uint16(data[offset : offset+2])
	offset += 2

	pool.ProtocolFeeRate = binary.LittleEndian.Uint16(data[offset : offset+2])
	offset += 2

	pool.Liquidity = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	pool.SqrtPrice = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	pool.TickCurrentIndex = int32(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	pool.ProtocolFeeOwedA = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	pool.ProtocolFeeOwedB = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	pool.TokenMintA = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	pool.TokenVaultA = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	pool.FeeGrowthGlobalA = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	pool.TokenMintB = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	pool.TokenVaultB = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	pool.FeeGrowthGlobalB = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	pool.RewardLastUpdatedTimestamp = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	for i := 0; i < 3; i++ {
		pool.RewardInfos[i].Mint = solana.PublicKeyFromBytes(data[offset : offset+32])
		offset += 32
		pool.RewardInfos[i].Vault = solana.PublicKeyFromBytes(data[offset : offset+32])
		offset += 32
		pool.RewardInfos[i].Authority = solana.PublicKeyFromBytes(data[offset : offset+32])
		offset += 32
		pool.RewardInfos[i].EmissionsPerSecondX64 = uint128.FromBytes(data[offset : offset+16])
		offset += 16
		pool.RewardInfos[i].GrowthGlobalX64 = uint128.FromBytes(data[offset : offset+16])
		offset += 16
	}

	return nil
}

// Span returns account data size
func (pool *WhirlpoolPool) Span() uint64 {
	// discriminator(8) + fixed fields(261) + 3 reward infos of 128 bytes
	return uint64(8 + 32 + 1 + 2 + 2 + 2 + 2 + 16 + 16 + 4 + 8 + 8 + 32 + 32 + 16 + 32 + 32 + 16 + 8 + 3*128)
}

// Offset returns the absolute field offset, used for memcmp filters
func (pool *WhirlpoolPool) Offset(field string) uint64 {
	const (
		config      = 8
		tickSpacing = config + 32 + 1
		feeRate     = tickSpacing + 2 + 2
		liquidity   = feeRate + 2 + 2
		sqrtPrice   = liquidity + 16
		tickCurrent = sqrtPrice + 16
		mintA       = tickCurrent + 4 + 8 + 8
		vaultA      = mintA + 32
		mintB       = vaultA + 32 + 16
		vaultB      = mintB + 32
	)
	switch field {
	case "WhirlpoolsConfig":
		return config
	case "TickSpacing":
		return tickSpacing // 41
	case "FeeRate":
		return feeRate // 45
	case "Liquidity":
		return liquidity // 49
	case "SqrtPrice":
		return sqrtPrice // 65
	case "TickCurrentIndex":
		return tickCurrent // 81
	case "TokenMintA":
		return mintA // 101
	case "TokenVaultA":
		return vaultA // 133
	case "TokenMintB":
		return mintB // 181
	case "TokenVaultB":
		return vaultB // 213
	}
	return 0
}

// ValidatePoolState checks the decoded account describes a usable pool.
// Zero in-range liquidity is valid: a swap crosses into the next initialized tick.
func (pool *WhirlpoolPool) ValidatePoolState() error {
	if pool.SqrtPrice.IsZero() {
		return fmt.Errorf("%w: zero sqrt price", ErrInvalidPoolState)
	}
	if pool.TickSpacing == 0 {
		return fmt.Errorf("%w: zero tick spacing", ErrInvalidPoolState)
	}
	if pool.TokenMintA.IsZero() || pool.TokenMintB.IsZero() {
		return fmt.Errorf("%w: invalid token mint addresses", ErrInvalidPoolState)
	}
	if pool.TokenVaultA.IsZero() || pool.TokenVaultB.IsZero() {
		return fmt.Errorf("%w: invalid token vault addresses", ErrInvalidPoolState)
	}
	return nil
}

// DeriveWhirlpoolPDA derives the whirlpool address
// seeds = ["whirlpool", whirlpools_config, mint_a, mint_b, tick_spacing (u16 LE)]
func DeriveWhirlpoolPDA(programID, whirlpoolsConfig, mintA, mintB solana.PublicKey, tickSpacing uint16) (solana.PublicKey, error) {
	spacing := make([]byte, 2)
	binary.LittleEndian.PutUint16(spacing, tickSpacing)
	seeds := [][]byte{
		[]byte(WHIRLPOOL_SEED),
		whirlpoolsConfig.Bytes(),
		mintA.Bytes(),
		mintB.Bytes(),
		spacing,
	}
	pda, _, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to find program address for whirlpool: %w", err)
	}
	return pda, nil
}

// TickArrayAddresses returns the three tick arrays a swap in the given direction traverses.
func (pool *WhirlpoolPool) TickArrayAddresses(aToB bool) ([3]solana.PublicKey, error) {
	return DeriveMultipleWhirlpoolTickArrayPDAs(pool.GetProgramID(), pool.PoolId, pool.TickCurrentIndex, pool.TickSpacing, aToB)
}

// OracleAddress returns the pool's oracle PDA.
func (pool *WhirlpoolPool) OracleAddress() (solana.PublicKey, error) {
	return DeriveWhirlpoolOraclePDA(pool.GetProgramID(), pool.PoolId)
}

// FetchTickArrays loads the swap window for a direction in one request.
// Missing arrays come back as nil; the first one must exist.
func (pool *WhirlpoolPool) FetchTickArrays(ctx context.Context, solClient *rpc.Client, aToB bool, commitment rpc.CommitmentType) ([]*WhirlpoolTickArray, uint64, error) {
	addrs, err := pool.TickArrayAddresses(aToB)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to derive tick array PDAs: %w", err)
	}
	results, err := solClient.GetMultipleAccountsWithOpts(ctx, addrs[:], &rpc.GetMultipleAccountsOpts{
		Commitment: commitment,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get tick arrays: %w", err)
	}
	if results == nil || len(results.Value) != len(addrs) {
		return nil, 0, fmt.Errorf("%w: unexpected tick array response", ErrTickArraySequence)
	}
	if results.Value[0] == nil {
		return nil, 0, fmt.Errorf("%w: primary tick array %s missing", ErrTickArraySequence, addrs[0])
	}

	arrays := make([]*WhirlpoolTickArray, len(addrs))
	for i, v := range results.Value {
		if v == nil {
			continue
		}
		ta := &WhirlpoolTickArray{Address: addrs[i]}
		if err := ta.Decode(v.Data.GetBinary()); err != nil {
			return nil, 0, fmt.Errorf("failed to decode tick array %s: %w", addrs[i], err)
		}
		arrays[i] = ta
	}
	return arrays, results.Context.Slot, nil
}

// Quote returns the exact-input output amount for inputAmount of inputMint,
// fetching the tick arrays it needs.
func (pool *WhirlpoolPool) Quote(ctx context.Context, solClient *rpc.Client, inputMint string, inputAmount cosmath.Int) (cosmath.Int, error) {
	mint, amount, err := pool.validateQuoteInputs(inputMint, inputAmount)
	if err != nil {
		return cosmath.Int{}, fmt.Errorf("quote input validation failed: %w", err)
	}
	if err := pool.ValidatePoolState(); err != nil {
		return cosmath.Int{}, fmt.Errorf("pool state validation failed: %w", err)
	}
	aToB, err := pool.directionForInput(mint)
	if err != nil {
		return cosmath.Int{}, err
	}
	arrays, _, err := pool.FetchTickArrays(ctx, solClient, aToB, rpc.CommitmentProcessed)
	if err != nil {
		return cosmath.Int{}, err
	}
	quote, err := pool.SwapQuoteByInputToken(mint, amount, ZeroSlippage(), arrays)
	if err != nil {
		return cosmath.Int{}, fmt.Errorf("failed to compute whirlpool swap amount: %w", err)
	}
	return quote.EstimatedAmountOut, nil
}

func (pool *WhirlpoolPool) validateQuoteInputs(inputMint string, inputAmount cosmath.Int) (solana.PublicKey, uint64, error) {
	if inputAmount.IsNil() || inputAmount.IsZero() {
		return solana.PublicKey{}, 0, ErrZeroTradableAmount
	}
	if inputAmount.IsNegative() {
		return solana.PublicKey{}, 0, fmt.Errorf("input amount cannot be negative")
	}
	if !inputAmount.IsUint64() {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: input %s", ErrAmountExceedsU64, inputAmount.String())
	}
	mint, err := solana.PublicKeyFromBase58(inputMint)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("invalid mint address format: %s, error: %w", inputMint, err)
	}
	return mint, inputAmount.Uint64(), nil
}
