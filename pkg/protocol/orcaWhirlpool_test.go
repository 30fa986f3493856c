package protocol

import (
	"context"
	"testing"

	"github.com/Solana-ZH/orcacpi/internal/orcatest"
	"github.com/Solana-ZH/orcacpi/internal/rpctest"
	"github.com/Solana-ZH/orcacpi/pkg/pool/orca"
	"github.com/Solana-ZH/orcacpi/pkg/sol"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mintA = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	mintB = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
)

func newTestProtocol(t *testing.T) (*OrcaWhirlpoolProtocol, *rpctest.Server) {
	t.Helper()
	srv := rpctest.New(t)
	return NewOrcaWhirlpool(sol.NewClientFromRPC(srv.Client(), nil)), srv
}

func testKey() MarketKey {
	return MarketKey{
		ConfigID:    orca.ORCA_WHIRLPOOLS_CONFIG,
		MintA:       mintA,
		MintB:       mintB,
		TickSpacing: orcatest.TickSpacing,
	}
}

func TestResolveMarket(t *testing.T) {
	p, srv := newTestProtocol(t)
	pool := orcatest.NewPool(mintA, mintB)
	pool.TickCurrentIndex = -19_000
	orcatest.Install(srv, pool)
	srv.SetSlot(4242)

	market, err := p.ResolveMarket(context.Background(), testKey(), FetchIgnoreCache)
	require.NoError(t, err)
	assert.Equal(t, pool.PoolId, market.Address)
	assert.Equal(t, uint64(4242), market.Slot)
	assert.Equal(t, int32(-19_000), market.Pool.TickCurrentIndex)
	assert.Equal(t, pool.TokenVaultA, market.Pool.TokenVaultA)

	oracle, err := orca.DeriveWhirlpoolOraclePDA(orca.ORCA_WHIRLPOOL_PROGRAM_ID, pool.PoolId)
	require.NoError(t, err)
	assert.Equal(t, oracle, market.Oracle)
}

func TestResolveMarketFetchPolicy(t *testing.T) {
	p, srv := newTestProtocol(t)
	pool := orcatest.NewPool(mintA, mintB)
	orcatest.Install(srv, pool)

	first, err := p.ResolveMarket(context.Background(), testKey(), FetchUseCache)
	require.NoError(t, err)
	cached, err := p.ResolveMarket(context.Background(), testKey(), FetchUseCache)
	require.NoError(t, err)
	assert.Same(t, first, cached)
	assert.Equal(t, 1, srv.Calls("getAccountInfo"))

	pool.TickCurrentIndex = 77
	orcatest.Install(srv, pool)
	srv.SetSlot(2000)
	fresh, err := p.ResolveMarket(context.Background(), testKey(), FetchIgnoreCache)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls("getAccountInfo"))
	assert.Equal(t, int32(77), fresh.Pool.TickCurrentIndex)
	assert.Equal(t, uint64(2000), fresh.Slot)

	// the refetch replaces the cached entry
	again, err := p.ResolveMarket(context.Background(), testKey(), FetchUseCache)
	require.NoError(t, err)
	assert.Same(t, fresh, again)
}

func TestResolveMarketErrors(t *testing.T) {
	p, srv := newTestProtocol(t)
	_, err := p.ResolveMarket(context.Background(), testKey(), FetchIgnoreCache)
	assert.ErrorIs(t, err, ErrMarketNotFound)

	pool := orcatest.NewPool(mintA, mintB)
	srv.SetAccount(pool.PoolId, rpctest.Account(orcatest.EncodeWhirlpool(pool), solana.SystemProgramID, 1))
	_, err = p.ResolveMarket(context.Background(), testKey(), FetchIgnoreCache)
	assert.ErrorIs(t, err, orca.ErrInvalidPoolState)

	srv.SetAccount(pool.PoolId, rpctest.Account(make([]byte, 100), orca.ORCA_WHIRLPOOL_PROGRAM_ID, 1))
	_, err = p.ResolveMarket(context.Background(), testKey(), FetchIgnoreCache)
	assert.Error(t, err)

	key := testKey()
	key.TickSpacing = 0
	_, err = p.ResolveMarket(context.Background(), key, FetchIgnoreCache)
	assert.Error(t, err)
}

func TestFetchTickArrays(t *testing.T) {
	p, srv := newTestProtocol(t)
	pool := orcatest.NewPool(mintA, mintB)
	arrays := orcatest.TickArrays(pool, true)
	orcatest.Install(srv, pool, arrays[0], arrays[1])

	market, err := p.ResolveMarket(context.Background(), testKey(), FetchIgnoreCache)
	require.NoError(t, err)
	window, err := p.FetchTickArrays(context.Background(), market, true, FetchIgnoreCache)
	require.NoError(t, err)

	assert.True(t, window.AToB)
	assert.Equal(t, arrays[0].Address, window.Addresses[0])
	require.Len(t, window.Arrays, 3)
	assert.Equal(t, int32(-5632), window.Arrays[1].StartTickIndex)
	assert.Nil(t, window.Arrays[2])
	assert.Equal(t, []solana.PublicKey{arrays[2].Address}, window.Missing())

	_, err = p.FetchTickArrays(context.Background(), market, true, FetchUseCache)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Calls("getMultipleAccounts"))
}

func TestFetchTickArraysRequiresPrimary(t *testing.T) {
	p, srv := newTestProtocol(t)
	pool := orcatest.NewPool(mintA, mintB)
	orcatest.Install(srv, pool)

	market, err := p.ResolveMarket(context.Background(), testKey(), FetchIgnoreCache)
	require.NoError(t, err)
	_, err = p.FetchTickArrays(context.Background(), market, false, FetchIgnoreCache)
	assert.ErrorIs(t, err, orca.ErrTickArraySequence)
}

func TestFetchPoolByID(t *testing.T) {
	p, srv := newTestProtocol(t)
	pool := orcatest.NewPool(mintA, mintB)
	orcatest.Install(srv, pool)

	got, err := p.FetchPoolByID(context.Background(), pool.PoolId.String())
	require.NoError(t, err)
	assert.Equal(t, pool.PoolId.String(), got.GetID())
	base, quote := got.GetTokens()
	assert.Equal(t, mintA.String(), base)
	assert.Equal(t, mintB.String(), quote)

	_, err = p.FetchPoolByID(context.Background(), "bad")
	assert.Error(t, err)
}

func TestBoundedLRU(t *testing.T) {
	c := newBoundedLRU[int, string](2)
	c.Set(1, "a")
	c.Set(2, "b")
	_, _ = c.Get(1)
	c.Set(3, "c")

	_, ok := c.Get(2)
	assert.False(t, ok)
	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, 2, c.Len())
}
