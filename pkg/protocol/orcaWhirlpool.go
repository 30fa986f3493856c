package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Solana-ZH/orcacpi/pkg"
	"github.com/Solana-ZH/orcacpi/pkg/pool/orca"
	"github.com/Solana-ZH/orcacpi/pkg/sol"
	"github.com/Solana-ZH/orcacpi/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const defaultCacheSize = 128

// ErrMarketNotFound is returned when the derived whirlpool account does not exist
var ErrMarketNotFound = errors.New("market not found")

// FetchPolicy tells a fetch whether a cached account may be returned.
type FetchPolicy int

const (
	FetchUseCache FetchPolicy = iota
	FetchIgnoreCache
)

func (p FetchPolicy) String() string {
	if p == FetchIgnoreCache {
		return "ignore_cache"
	}
	return "use_cache"
}

// MarketKey identifies a whirlpool by the seeds of its address.
type MarketKey struct {
	ProgramID   solana.PublicKey
	ConfigID    solana.PublicKey
	MintA       solana.PublicKey
	MintB       solana.PublicKey
	TickSpacing uint16
}

// Address derives the whirlpool PDA.
func (k MarketKey) Address() (solana.PublicKey, error) {
	programID := k.ProgramID
	if programID.IsZero() {
		programID = orca.ORCA_WHIRLPOOL_PROGRAM_ID
	}
	return orca.DeriveWhirlpoolPDA(programID, k.ConfigID, k.MintA, k.MintB, k.TickSpacing)
}

// MarketSnapshot is a decoded whirlpool as of Slot.
type MarketSnapshot struct {
	Address   solana.PublicKey
	Oracle    solana.PublicKey
	Pool      *orca.WhirlpoolPool
	Slot      uint64
	FetchedAt time.Time
}

// TickArrayWindow holds the three tick arrays a swap in one direction may
// traverse. Arrays[i] is nil when Addresses[i] is not initialized.
type TickArrayWindow struct {
	AToB      bool
	Addresses [3]solana.PublicKey
	Arrays    []*orca.WhirlpoolTickArray
	Slot      uint64
}

// Missing lists the window addresses that are not initialized on chain.
func (w *TickArrayWindow) Missing() []solana.PublicKey {
	var missing []solana.PublicKey
	for i, addr := range w.Addresses {
		if i >= len(w.Arrays) || w.Arrays[i] == nil {
			missing = append(missing, addr)
		}
	}
	return missing
}

type windowKey struct {
	addresses [3]solana.PublicKey
}

var _ pkg.Protocol = (*OrcaWhirlpoolProtocol)(nil)

// OrcaWhirlpoolProtocol resolves Orca Whirlpool markets.
//
// Program ID: whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc
type OrcaWhirlpoolProtocol struct {
	SolClient  *sol.Client
	ProgramID  solana.PublicKey
	Commitment rpc.CommitmentType

	markets *boundedLRU[solana.PublicKey, *MarketSnapshot]
	windows *boundedLRU[windowKey, *TickArrayWindow]
}

// NewOrcaWhirlpool creates a new Orca Whirlpool protocol instance
func NewOrcaWhirlpool(solClient *sol.Client) *OrcaWhirlpoolProtocol {
	return &OrcaWhirlpoolProtocol{
		SolClient:  solClient,
		ProgramID:  orca.ORCA_WHIRLPOOL_PROGRAM_ID,
		Commitment: rpc.CommitmentConfirmed,
		markets:    newBoundedLRU[solana.PublicKey, *MarketSnapshot](defaultCacheSize),
		windows:    newBoundedLRU[windowKey, *TickArrayWindow](defaultCacheSize),
	}
}

func (p *OrcaWhirlpoolProtocol) Name() pkg.ProtocolName {
	return pkg.ProtocolNameOrcaWhirlpool
}

// ResolveMarket derives the whirlpool address for key and fetches it.
func (p *OrcaWhirlpoolProtocol) ResolveMarket(ctx context.Context, key MarketKey, policy FetchPolicy) (*MarketSnapshot, error) {
	if key.ProgramID.IsZero() {
		key.ProgramID = p.ProgramID
	}
	if key.TickSpacing == 0 {
		return nil, fmt.Errorf("tick spacing must be non-zero")
	}
	address, err := key.Address()
	if err != nil {
		return nil, fmt.Errorf("failed to derive whirlpool address: %w", err)
	}
	market, err := p.FetchMarket(ctx, address, policy)
	if err != nil {
		return nil, err
	}
	pool := market.Pool
	if !pool.TokenMintA.Equals(key.MintA) || !pool.TokenMintB.Equals(key.MintB) || pool.TickSpacing != key.TickSpacing {
		return nil, fmt.Errorf("whirlpool %s does not match requested market", address)
	}
	return market, nil
}

// FetchMarket loads and decodes the whirlpool at address.
func (p *OrcaWhirlpoolProtocol) FetchMarket(ctx context.Context, address solana.PublicKey, policy FetchPolicy) (*MarketSnapshot, error) {
	log := utils.Logger("protocol")
	if policy == FetchUseCache {
		if market, ok := p.markets.Get(address); ok {
			log.Debug().Str("whirlpool", address.String()).Uint64("slot", market.Slot).Msg("market cache hit")
			return market, nil
		}
	}

	info, err := p.SolClient.RpcClient.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: p.Commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (info == nil || info.Value == nil)) {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get whirlpool account %s: %w", address, err)
	}
	if !info.Value.Owner.Equals(p.programID()) {
		return nil, fmt.Errorf("%w: %s is owned by %s", orca.ErrInvalidPoolState, address, info.Value.Owner)
	}
	if info.Value.Data == nil {
		return nil, fmt.Errorf("%w: %s has no data", orca.ErrInvalidPoolState, address)
	}

	pool := &orca.WhirlpoolPool{}
	if err := pool.Decode(info.Value.Data.GetBinary()); err != nil {
		return nil, fmt.Errorf("failed to decode whirlpool %s: %w", address, err)
	}
	pool.PoolId = address
	pool.ProgramID = p.programID()

	oracle, err := pool.OracleAddress()
	if err != nil {
		return nil, err
	}
	market := &MarketSnapshot{
		Address:   address,
		Oracle:    oracle,
		Pool:      pool,
		Slot:      info.Context.Slot,
		FetchedAt: time.Now(),
	}
	p.markets.Set(address, market)
	log.Debug().
		Str("whirlpool", address.String()).
		Uint64("slot", market.Slot).
		Int32("tick_current_index", pool.TickCurrentIndex).
		Str("policy", policy.String()).
		Msg("market fetched")
	return market, nil
}

// FetchTickArrays loads the tick array window of market for a direction.
func (p *OrcaWhirlpoolProtocol) FetchTickArrays(ctx context.Context, market *MarketSnapshot, aToB bool, policy FetchPolicy) (*TickArrayWindow, error) {
	addrs, err := market.Pool.TickArrayAddresses(aToB)
	if err != nil {
		return nil, fmt.Errorf("failed to derive tick array PDAs: %w", err)
	}
	key := windowKey{addresses: addrs}
	if policy == FetchUseCache {
		if w, ok := p.windows.Get(key); ok {
			return w, nil
		}
	}

	arrays, slot, err := market.Pool.FetchTickArrays(ctx, p.SolClient.RpcClient, aToB, p.Commitment)
	if err != nil {
		return nil, err
	}
	w := &TickArrayWindow{AToB: aToB, Addresses: addrs, Arrays: arrays, Slot: slot}
	p.windows.Set(key, w)
	return w, nil
}

func (p *OrcaWhirlpoolProtocol) programID() solana.PublicKey {
	if p.ProgramID.IsZero() {
		return orca.ORCA_WHIRLPOOL_PROGRAM_ID
	}
	return p.ProgramID
}

// FetchPoolsByPair gets Whirlpool pool list by token pair, both mint orders
func (p *OrcaWhirlpoolProtocol) FetchPoolsByPair(ctx context.Context, baseMint string, quoteMint string) ([]pkg.Pool, error) {
	log := utils.Logger("protocol")
	accounts := make([]*rpc.KeyedAccount, 0)

	programAccounts, err := p.getWhirlpoolAccountsByTokenPair(ctx, baseMint, quoteMint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pools with base token %s: %w", baseMint, err)
	}
	accounts = append(accounts, programAccounts...)

	programAccounts, err = p.getWhirlpoolAccountsByTokenPair(ctx, quoteMint, baseMint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pools with base token %s: %w", quoteMint, err)
	}
	accounts = append(accounts, programAccounts...)

	res := make([]pkg.Pool, 0)
	for _, v := range accounts {
		if v == nil || v.Account == nil || v.Account.Data == nil {
			continue
		}
		layout := &orca.WhirlpoolPool{}
		if err := layout.Decode(v.Account.Data.GetBinary()); err != nil {
			log.Debug().Err(err).Str("whirlpool", v.Pubkey.String()).Msg("skipping undecodable pool")
			continue
		}
		layout.PoolId = v.Pubkey
		layout.ProgramID = p.programID()

		if err := layout.ValidatePoolState(); err != nil {
			log.Debug().Err(err).Str("whirlpool", v.Pubkey.String()).Msg("skipping invalid pool")
			continue
		}
		res = append(res, layout)
	}
	return res, nil
}

// getWhirlpoolAccountsByTokenPair queries Whirlpool accounts for specified token pair
func (p *OrcaWhirlpoolProtocol) getWhirlpoolAccountsByTokenPair(ctx context.Context, baseMint string, quoteMint string) (rpc.GetProgramAccountsResult, error) {
	baseKey, err := solana.PublicKeyFromBase58(baseMint)
	if err != nil {
		return nil, fmt.Errorf("invalid base mint address: %w", err)
	}
	quoteKey, err := solana.PublicKeyFromBase58(quoteMint)
	if err != nil {
		return nil, fmt.Errorf("invalid quote mint address: %w", err)
	}

	var knownPoolLayout orca.WhirlpoolPool
	result, err := p.SolClient.RpcClient.GetProgramAccountsWithOpts(ctx, p.programID(), &rpc.GetProgramAccountsOpts{
		Commitment: p.Commitment,
		Filters: []rpc.RPCFilter{
			{
				Memcmp: &rpc.RPCFilterMemcmp{
					Offset: 0,
					Bytes:  orca.WhirlpoolDiscriminator[:],
				},
			},
			{
				DataSize: knownPoolLayout.Span(),
			},
			{
				Memcmp: &rpc.RPCFilterMemcmp{
					Offset: knownPoolLayout.Offset("TokenMintA"),
					Bytes:  baseKey.Bytes(),
				},
			},
			{
				Memcmp: &rpc.RPCFilterMemcmp{
					Offset: knownPoolLayout.Offset("TokenMintB"),
					Bytes:  quoteKey.Bytes(),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pools: %w", err)
	}
	return result, nil
}

// FetchPoolByID gets single Whirlpool pool by pool ID, bypassing the cache
func (p *OrcaWhirlpoolProtocol) FetchPoolByID(ctx context.Context, poolId string) (pkg.Pool, error) {
	poolIdKey, err := solana.PublicKeyFromBase58(poolId)
	if err != nil {
		return nil, fmt.Errorf("invalid pool id: %w", err)
	}
	market, err := p.FetchMarket(ctx, poolIdKey, FetchIgnoreCache)
	if err != nil {
		return nil, err
	}
	return market.Pool, nil
}
