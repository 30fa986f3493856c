package router

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cosmossdk.io/math"
	"github.com/Solana-ZH/orcacpi/pkg"
	"github.com/Solana-ZH/orcacpi/utils"
	"github.com/gagliardetto/solana-go/rpc"
)

// SimpleRouter compares the single-hop pools of a pair by exact-input quote.
// It never splits an order.
type SimpleRouter struct {
	protocols []pkg.Protocol
	pools     []pkg.Pool
}

func NewSimpleRouter(protocols ...pkg.Protocol) *SimpleRouter {
	return &SimpleRouter{
		protocols: protocols,
		pools:     []pkg.Pool{},
	}
}

// QueryAllPools replaces the candidate set with every pool of the pair. A
// failing protocol is skipped; the call only fails when all of them do.
func (r *SimpleRouter) QueryAllPools(ctx context.Context, baseMint, quoteMint string) ([]pkg.Pool, error) {
	log := utils.Logger("router")
	r.pools = r.pools[:0]
	var errs []error
	for _, proto := range r.protocols {
		pools, err := proto.FetchPoolsByPair(ctx, baseMint, quoteMint)
		if err != nil {
			log.Warn().Err(err).Str("protocol", string(proto.Name())).Msg("failed to fetch pools")
			errs = append(errs, fmt.Errorf("%s: %w", proto.Name(), err))
			continue
		}
		log.Debug().Str("protocol", string(proto.Name())).Int("pools", len(pools)).Msg("fetched pools")
		r.pools = append(r.pools, pools...)
	}
	if len(errs) > 0 && len(errs) == len(r.protocols) {
		return nil, errors.Join(errs...)
	}
	return r.pools, nil
}

// Rank quotes amountIn of tokenIn on every candidate pool. Quotes come back
// best first; pools that failed to quote are kept at the end with Err set.
func (r *SimpleRouter) Rank(ctx context.Context, solClient *rpc.Client, tokenIn string, amountIn math.Int) []pkg.PoolQuote {
	log := utils.Logger("router")
	quotes := make([]pkg.PoolQuote, 0, len(r.pools))
	for _, pool := range r.pools {
		out, err := pool.Quote(ctx, solClient, tokenIn, amountIn)
		if err != nil {
			log.Debug().Err(err).Str("pool", pool.GetID()).Msg("error quoting")
			quotes = append(quotes, pkg.PoolQuote{Pool: pool, AmountOut: math.ZeroInt(), Err: err})
			continue
		}
		quotes = append(quotes, pkg.PoolQuote{Pool: pool, AmountOut: out})
	}
	sort.SliceStable(quotes, func(i, j int) bool {
		if (quotes[i].Err == nil) != (quotes[j].Err == nil) {
			return quotes[i].Err == nil
		}
		return quotes[i].AmountOut.GT(quotes[j].AmountOut)
	})
	return quotes
}

// Best picks the head of a ranking produced by Rank.
func Best(quotes []pkg.PoolQuote, tokenIn, tokenOut string) (pkg.Pool, math.Int, error) {
	if len(quotes) == 0 || quotes[0].Err != nil || !quotes[0].AmountOut.IsPositive() {
		return nil, math.ZeroInt(), fmt.Errorf("no route found for %s -> %s", tokenIn, tokenOut)
	}
	return quotes[0].Pool, quotes[0].AmountOut, nil
}
