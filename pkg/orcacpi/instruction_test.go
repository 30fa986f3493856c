package orcacpi

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/Solana-ZH/orcacpi/pkg/pool/orca"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

func testPool() *orca.WhirlpoolPool {
	return &orca.WhirlpoolPool{
		TickSpacing:      64,
		FeeRate:          3000,
		Liquidity:        uint128.From64(1_000_000_000),
		SqrtPrice:        uint128.FromBig(new(big.Int).Lsh(big.NewInt(1), 64)),
		TickCurrentIndex: -19_000,
		TokenMintA:       solana.SolMint,
		TokenMintB:       solana.NewWallet().PublicKey(),
		TokenVaultA:      solana.NewWallet().PublicKey(),
		TokenVaultB:      solana.NewWallet().PublicKey(),
		PoolId:           solana.NewWallet().PublicKey(),
	}
}

func TestProxySwapDiscriminator(t *testing.T) {
	assert.Equal(t, [8]byte{19, 44, 130, 148, 72, 56, 44, 238}, ProxySwapDiscriminator)
}

func TestBuildProxySwap(t *testing.T) {
	pool := testPool()
	authority := solana.NewWallet().PublicKey()
	ownerA := solana.NewWallet().PublicKey()
	ownerB := solana.NewWallet().PublicKey()

	ix, err := BuildProxySwap(PROGRAM_ID, pool, authority, ownerA, ownerB, orca.SwapArgs{
		Amount:                 1_000_000_000_000,
		AmountSpecifiedIsInput: true,
		AToB:                   true,
	})
	require.NoError(t, err)
	assert.Equal(t, PROGRAM_ID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 42)
	assert.Equal(t, ProxySwapDiscriminator[:], data[:8])
	assert.Equal(t, uint64(1_000_000_000_000), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(data[16:24]))
	// zero limit is replaced by the protocol minimum for a->b
	assert.Equal(t, orca.MinSqrtPrice().Lo, binary.LittleEndian.Uint64(data[24:32]))
	assert.Equal(t, orca.MinSqrtPrice().Hi, binary.LittleEndian.Uint64(data[32:40]))
	assert.Equal(t, byte(1), data[40])
	assert.Equal(t, byte(1), data[41])

	tickArrays, err := orca.DeriveMultipleWhirlpoolTickArrayPDAs(orca.ORCA_WHIRLPOOL_PROGRAM_ID, pool.PoolId, pool.TickCurrentIndex, pool.TickSpacing, true)
	require.NoError(t, err)
	oracle, err := orca.DeriveWhirlpoolOraclePDA(orca.ORCA_WHIRLPOOL_PROGRAM_ID, pool.PoolId)
	require.NoError(t, err)

	want := []struct {
		key      solana.PublicKey
		writable bool
		signer   bool
	}{
		{orca.ORCA_WHIRLPOOL_PROGRAM_ID, false, false},
		{orca.TOKEN_PROGRAM_ID, false, false},
		{authority, false, true},
		{pool.PoolId, true, false},
		{ownerA, true, false},
		{pool.TokenVaultA, true, false},
		{ownerB, true, false},
		{pool.TokenVaultB, true, false},
		{tickArrays[0], true, false},
		{tickArrays[1], true, false},
		{tickArrays[2], true, false},
		{oracle, true, false},
	}
	metas := ix.Accounts()
	require.Len(t, metas, len(want))
	for i, w := range want {
		assert.Equal(t, w.key, metas[i].PublicKey, "account %d", i)
		assert.Equal(t, w.writable, metas[i].IsWritable, "account %d writable", i)
		assert.Equal(t, w.signer, metas[i].IsSigner, "account %d signer", i)
	}
}

func TestBuildProxySwapDirectionSelectsTickArrays(t *testing.T) {
	pool := testPool()
	args := orca.SwapArgs{Amount: 10, AmountSpecifiedIsInput: true}

	args.AToB = true
	down, err := BuildProxySwap(PROGRAM_ID, pool, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), args)
	require.NoError(t, err)
	args.AToB = false
	up, err := BuildProxySwap(PROGRAM_ID, pool, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), args)
	require.NoError(t, err)

	assert.Equal(t, orca.MaxSqrtPrice(), up.Args.SqrtPriceLimit)
	assert.NotEqual(t, down.Keys.TickArrays[1], up.Keys.TickArrays[1])
}

func TestBuildProxySwapRejectsInvalidRequests(t *testing.T) {
	pool := testPool()
	authority := solana.NewWallet().PublicKey()

	_, err := BuildProxySwap(PROGRAM_ID, pool, authority, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), orca.SwapArgs{AToB: true})
	assert.ErrorIs(t, err, ErrInvalidProxySwap)
	assert.ErrorIs(t, err, orca.ErrZeroTradableAmount)

	_, err = BuildProxySwap(PROGRAM_ID, pool, solana.PublicKey{}, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), orca.SwapArgs{Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidProxySwap)

	noSpacing := testPool()
	noSpacing.TickSpacing = 0
	_, err = BuildProxySwap(PROGRAM_ID, noSpacing, authority, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), orca.SwapArgs{Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidProxySwap)

	_, err = BuildProxySwap(solana.PublicKey{}, pool, authority, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), orca.SwapArgs{Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidProxySwap)
}
