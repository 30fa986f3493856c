// Package orcatest builds whirlpool fixtures served through rpctest.
package orcatest

import (
	"encoding/binary"
	"math/big"

	"github.com/Solana-ZH/orcacpi/internal/rpctest"
	"github.com/Solana-ZH/orcacpi/pkg/pool/orca"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// Swapping SwapAmount of either token through NewPool with the arrays of
// TickArrays yields SwapAmountOut.
const (
	SwapAmount    = uint64(1_000_000_000)
	SwapAmountOut = uint64(986_341_632)
	TickSpacing   = uint16(64)
)

// NewPool returns a pool at tick 0 (price 1) with 1e11 liquidity and a 0.3% fee.
func NewPool(mintA, mintB solana.PublicKey) *orca.WhirlpoolPool {
	pool := &orca.WhirlpoolPool{
		WhirlpoolsConfig: orca.ORCA_WHIRLPOOLS_CONFIG,
		TickSpacing:      TickSpacing,
		FeeRate:          3000,
		Liquidity:        uint128.From64(100_000_000_000),
		SqrtPrice:        uint128.FromBig(new(big.Int).Lsh(big.NewInt(1), 64)),
		TickCurrentIndex: 0,
		TokenMintA:       mintA,
		TokenMintB:       mintB,
		TokenVaultA:      solana.NewWallet().PublicKey(),
		TokenVaultB:      solana.NewWallet().PublicKey(),
		ProgramID:        orca.ORCA_WHIRLPOOL_PROGRAM_ID,
	}
	pool.PoolId, _ = orca.DeriveWhirlpoolPDA(orca.ORCA_WHIRLPOOL_PROGRAM_ID, pool.WhirlpoolsConfig, mintA, mintB, TickSpacing)
	return pool
}

// TickArrays returns the swap window of pool for a direction, with liquidity
// dropping by 4e10 at +-128 and by 5e10 at +-6400.
func TickArrays(pool *orca.WhirlpoolPool, aToB bool) []*orca.WhirlpoolTickArray {
	starts, err := orca.TickArrayStartIndexes(pool.TickCurrentIndex, pool.TickSpacing, aToB)
	if err != nil {
		panic(err)
	}
	addrs, err := pool.TickArrayAddresses(aToB)
	if err != nil {
		panic(err)
	}
	arrays := make([]*orca.WhirlpoolTickArray, 3)
	for i := range arrays {
		arrays[i] = &orca.WhirlpoolTickArray{Address: addrs[i], StartTickIndex: starts[i], Whirlpool: pool.PoolId}
	}
	if aToB {
		InitTick(arrays[1], -128, pool.TickSpacing, 40_000_000_000)
		InitTick(arrays[2], -6400, pool.TickSpacing, 50_000_000_000)
	} else {
		InitTick(arrays[0], 128, pool.TickSpacing, -40_000_000_000)
		InitTick(arrays[1], 6400, pool.TickSpacing, -50_000_000_000)
	}
	return arrays
}

// InitTick marks tickIndex of ta initialized with the given net liquidity.
func InitTick(ta *orca.WhirlpoolTickArray, tickIndex int32, spacing uint16, liquidityNet int64) {
	offset := (tickIndex - ta.StartTickIndex) / int32(spacing)
	ta.Ticks[offset] = orca.WhirlpoolTick{Initialized: true, LiquidityNet: big.NewInt(liquidityNet)}
}

// EncodeWhirlpool lays out the fields of pool that the decoder reads.
func EncodeWhirlpool(pool *orca.WhirlpoolPool) []byte {
	data := make([]byte, orca.WHIRLPOOL_SIZE)
	copy(data, orca.WhirlpoolDiscriminator[:])
	copy(data[pool.Offset("WhirlpoolsConfig"):], pool.WhirlpoolsConfig.Bytes())
	binary.LittleEndian.PutUint16(data[pool.Offset("TickSpacing"):], pool.TickSpacing)
	binary.LittleEndian.PutUint16(data[pool.Offset("FeeRate"):], pool.FeeRate)
	pool.Liquidity.PutBytes(data[pool.Offset("Liquidity"):])
	pool.SqrtPrice.PutBytes(data[pool.Offset("SqrtPrice"):])
	binary.LittleEndian.PutUint32(data[pool.Offset("TickCurrentIndex"):], uint32(pool.TickCurrentIndex))
	copy(data[pool.Offset("TokenMintA"):], pool.TokenMintA.Bytes())
	copy(data[pool.Offset("TokenVaultA"):], pool.TokenVaultA.Bytes())
	copy(data[pool.Offset("TokenMintB"):], pool.TokenMintB.Bytes())
	copy(data[pool.Offset("TokenVaultB"):], pool.TokenVaultB.Bytes())
	return data
}

// EncodeTickArray lays out a tick array account.
func EncodeTickArray(ta *orca.WhirlpoolTickArray) []byte {
	data := make([]byte, 0, orca.TICK_ARRAY_ACCOUNT_SIZE)
	data = append(data, orca.TickArrayDiscriminator[:]...)
	data = binary.LittleEndian.AppendUint32(data, uint32(ta.StartTickIndex))
	for _, tick := range ta.Ticks {
		raw := make([]byte, orca.TICK_SIZE)
		if tick.Initialized {
			raw[0] = 1
		}
		if tick.LiquidityNet != nil {
			v := new(big.Int).Set(tick.LiquidityNet)
			if v.Sign() < 0 {
				v.Add(v, new(big.Int).Lsh(big.NewInt(1), 128))
			}
			uint128.FromBig(v).PutBytes(raw[1:17])
		}
		tick.LiquidityGross.PutBytes(raw[17:33])
		data = append(data, raw...)
	}
	return append(data, ta.Whirlpool.Bytes()...)
}

// Install serves pool and the non-nil arrays from srv.
func Install(srv *rpctest.Server, pool *orca.WhirlpoolPool, arrays ...*orca.WhirlpoolTickArray) {
	srv.SetAccount(pool.PoolId, rpctest.Account(EncodeWhirlpool(pool), orca.ORCA_WHIRLPOOL_PROGRAM_ID, 5_000_000))
	for _, ta := range arrays {
		if ta == nil {
			continue
		}
		srv.SetAccount(ta.Address, rpctest.Account(EncodeTickArray(ta), orca.ORCA_WHIRLPOOL_PROGRAM_ID, 70_000_000))
	}
}
