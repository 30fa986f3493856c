package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/Solana-ZH/orcacpi/pkg/orcacpi"
	"github.com/Solana-ZH/orcacpi/pkg/pool/orca"
	"github.com/Solana-ZH/orcacpi/pkg/protocol"
	"github.com/Solana-ZH/orcacpi/pkg/sol"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// QuoteSource selects how the expected output is computed.
type QuoteSource string

const (
	// QuoteSourceSDK runs the whirlpool swap math over the tick array window.
	QuoteSourceSDK QuoteSource = "sdk"
	// QuoteSourceSimulate simulates the assembled transaction and reads the
	// output account after it.
	QuoteSourceSimulate QuoteSource = "simulate"
)

// ParseQuoteSource accepts "sdk", "simulate" and "" (sdk).
func ParseQuoteSource(s string) (QuoteSource, error) {
	switch QuoteSource(strings.ToLower(strings.TrimSpace(s))) {
	case "", QuoteSourceSDK:
		return QuoteSourceSDK, nil
	case QuoteSourceSimulate:
		return QuoteSourceSimulate, nil
	}
	return "", fmt.Errorf("unknown quote source %q", s)
}

// Request is one exact-input swap to verify.
type Request struct {
	Market    protocol.MarketKey
	InputMint solana.PublicKey
	Amount    uint64
	// Slippage only affects the reported threshold unless EnforceThreshold is set.
	Slippage orca.Percentage
	// Zero selects the protocol bound for the direction.
	SqrtPriceLimit uint128.Uint128
	// EnforceThreshold submits the quote's threshold instead of zero.
	EnforceThreshold bool
	// Direct sends the whirlpool swap itself instead of the proxy instruction.
	Direct      bool
	QuoteSource QuoteSource
	// DryRun stops after the quote.
	DryRun bool
}

func (r *Request) validate() error {
	switch {
	case r == nil:
		return fmt.Errorf("request is nil")
	case r.Amount == 0:
		return orca.ErrZeroTradableAmount
	case r.InputMint.IsZero():
		return fmt.Errorf("input mint is not set")
	case r.Market.MintA.IsZero() || r.Market.MintB.IsZero():
		return fmt.Errorf("market mints are not set")
	case !r.InputMint.Equals(r.Market.MintA) && !r.InputMint.Equals(r.Market.MintB):
		return fmt.Errorf("%w: %s", orca.ErrInputMintNotInPool, r.InputMint)
	}
	return nil
}

// Market is the resolved whirlpool and the swap direction on it.
type Market struct {
	Snapshot   *protocol.MarketSnapshot
	AToB       bool
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
}

// Accounts are the signer's token accounts for both sides of the swap.
type Accounts struct {
	Owner  solana.PublicKey
	Input  *sol.ResolvedTokenAccount
	Output *sol.ResolvedTokenAccount
}

// OwnerAccounts returns the token owner accounts in pool order.
func (a *Accounts) OwnerAccounts(aToB bool) (ownerA, ownerB solana.PublicKey) {
	if aToB {
		return a.Input.Address, a.Output.Address
	}
	return a.Output.Address, a.Input.Address
}

// SwapPlan is a built swap ready to be quoted and submitted.
type SwapPlan struct {
	// Program is the program the swap instruction targets.
	Program          solana.PublicKey
	Direct           bool
	Args             orca.SwapArgs
	Instruction      solana.Instruction
	TickArrays       [3]solana.PublicKey
	TickCurrentIndex int32
	// MarketSlot is the slot of the snapshot the instruction was built from.
	MarketSlot    uint64
	InputAccount  solana.PublicKey
	OutputAccount solana.PublicKey
	OutputMint    solana.PublicKey
	Setup         []sol.Instruction
}

// Drift describes how the market moved between building and quoting.
type Drift struct {
	BuildSlot      uint64 `json:"build_slot" yaml:"build_slot"`
	QuoteSlot      uint64 `json:"quote_slot" yaml:"quote_slot"`
	BuildTickIndex int32  `json:"build_tick_index" yaml:"build_tick_index"`
	QuoteTickIndex int32  `json:"quote_tick_index" yaml:"quote_tick_index"`
	WindowChanged  bool   `json:"window_changed" yaml:"window_changed"`
}

// Moved reports whether the quote saw a different tick than the build.
func (d *Drift) Moved() bool {
	return d != nil && (d.WindowChanged || d.BuildTickIndex != d.QuoteTickIndex)
}

// Quote is the expected outcome of the plan.
type Quote struct {
	Source               QuoteSource `json:"source" yaml:"source"`
	EstimatedAmountIn    uint64      `json:"estimated_amount_in" yaml:"estimated_amount_in"`
	EstimatedAmountOut   uint64      `json:"estimated_amount_out" yaml:"estimated_amount_out"`
	EstimatedFeeAmount   uint64      `json:"estimated_fee_amount" yaml:"estimated_fee_amount"`
	OtherAmountThreshold uint64      `json:"other_amount_threshold" yaml:"other_amount_threshold"`
	EndTickIndex         int32       `json:"end_tick_index" yaml:"end_tick_index"`
	EndSqrtPrice         string      `json:"end_sqrt_price,omitempty" yaml:"end_sqrt_price,omitempty"`
	// Slot of the snapshot the quote was computed from.
	Slot          uint64 `json:"slot" yaml:"slot"`
	UnitsConsumed uint64 `json:"units_consumed,omitempty" yaml:"units_consumed,omitempty"`
	Drift         *Drift `json:"drift,omitempty" yaml:"drift,omitempty"`
}

// Toolkit is what the verifier needs from the chain. Each method is one
// blocking step; errors are classified by the stage that called it unless
// the toolkit returns an *Error itself.
type Toolkit interface {
	ResolveMarket(ctx context.Context, req *Request) (*Market, error)
	ResolveAccounts(ctx context.Context, req *Request, market *Market) (*Accounts, error)
	BuildSwap(ctx context.Context, req *Request, market *Market, accounts *Accounts) (*SwapPlan, error)
	Quote(ctx context.Context, req *Request, market *Market, plan *SwapPlan) (*Quote, error)
	Balance(ctx context.Context, account, mint solana.PublicKey) (*sol.BalanceSnapshot, error)
	Submit(ctx context.Context, plan *SwapPlan) (solana.Signature, error)
	Confirm(ctx context.Context, sig solana.Signature) (*sol.Confirmation, error)
	Logs(ctx context.Context, sig solana.Signature, plan *SwapPlan) (*orcacpi.ProxyLogs, error)
}
