package pkg

import (
	"context"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ProtocolName identifies the program family a pool belongs to.
type ProtocolName string

const ProtocolNameOrcaWhirlpool ProtocolName = "orca_whirlpool"

// Pool is a market that can quote an exact-input swap on its own, without
// the proxy program.
type Pool interface {
	ProtocolName() ProtocolName
	GetProgramID() solana.PublicKey
	GetID() string
	GetTokens() (baseMint, quoteMint string)
	Quote(ctx context.Context, solClient *rpc.Client, inputMint string, inputAmount math.Int) (math.Int, error)
}

// Protocol discovers the pools of one program.
type Protocol interface {
	Name() ProtocolName
	FetchPoolsByPair(ctx context.Context, baseMint, quoteMint string) ([]Pool, error)
	FetchPoolByID(ctx context.Context, poolID string) (Pool, error)
}

// PoolQuote is one pool's answer to an exact-input quote. Err is set when
// the pool could not quote, e.g. because a tick array is missing.
type PoolQuote struct {
	Pool      Pool
	AmountOut math.Int
	Err       error
}
