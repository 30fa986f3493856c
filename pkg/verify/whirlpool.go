package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/Solana-ZH/orcacpi/pkg/orcacpi"
	"github.com/Solana-ZH/orcacpi/pkg/pool/orca"
	"github.com/Solana-ZH/orcacpi/pkg/protocol"
	"github.com/Solana-ZH/orcacpi/pkg/sol"
	"github.com/Solana-ZH/orcacpi/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// WhirlpoolOptions tune how WhirlpoolToolkit talks to the chain.
type WhirlpoolOptions struct {
	ProxyProgramID      solana.PublicKey
	WrapMethod          sol.WrapMethod
	CloseWrapped        bool
	ComputeBudget       sol.ComputeBudget
	BlockhashCommitment rpc.CommitmentType
	BalanceCommitment   rpc.CommitmentType
	ConfirmCommitment   rpc.CommitmentType
	ConfirmTimeout      time.Duration
	Send                sol.SendOptions
}

// DefaultWhirlpoolOptions targets the default proxy deployment.
func DefaultWhirlpoolOptions() WhirlpoolOptions {
	return WhirlpoolOptions{
		ProxyProgramID:      orcacpi.PROGRAM_ID,
		WrapMethod:          sol.WrapMethodKeypair,
		BlockhashCommitment: rpc.CommitmentConfirmed,
		BalanceCommitment:   rpc.CommitmentConfirmed,
		ConfirmCommitment:   rpc.CommitmentConfirmed,
		ConfirmTimeout:      60 * time.Second,
		Send:                sol.DefaultSendOptions(),
	}
}

// WhirlpoolToolkit verifies swaps on Orca Whirlpools.
type WhirlpoolToolkit struct {
	client   *sol.Client
	protocol *protocol.OrcaWhirlpoolProtocol
	signer   solana.PrivateKey
	opts     WhirlpoolOptions
}

var _ Toolkit = (*WhirlpoolToolkit)(nil)

func NewWhirlpoolToolkit(client *sol.Client, signer solana.PrivateKey, opts WhirlpoolOptions) *WhirlpoolToolkit {
	if opts.ProxyProgramID.IsZero() {
		opts.ProxyProgramID = orcacpi.PROGRAM_ID
	}
	if opts.BalanceCommitment == "" {
		opts.BalanceCommitment = rpc.CommitmentConfirmed
	}
	return &WhirlpoolToolkit{
		client:   client,
		protocol: protocol.NewOrcaWhirlpool(client),
		signer:   signer,
		opts:     opts,
	}
}

// Protocol exposes the market resolver.
func (w *WhirlpoolToolkit) Protocol() *protocol.OrcaWhirlpoolProtocol {
	return w.protocol
}

func (w *WhirlpoolToolkit) Options() WhirlpoolOptions {
	return w.opts
}

func (w *WhirlpoolToolkit) ResolveMarket(ctx context.Context, req *Request) (*Market, error) {
	snapshot, err := w.protocol.ResolveMarket(ctx, req.Market, protocol.FetchIgnoreCache)
	if err != nil {
		return nil, err
	}
	if err := snapshot.Pool.ValidatePoolState(); err != nil {
		return nil, fmt.Errorf("whirlpool %s: %w", snapshot.Address, err)
	}
	market := &Market{Snapshot: snapshot, InputMint: req.InputMint}
	switch {
	case req.InputMint.Equals(snapshot.Pool.TokenMintA):
		market.AToB = true
		market.OutputMint = snapshot.Pool.TokenMintB
	case req.InputMint.Equals(snapshot.Pool.TokenMintB):
		market.OutputMint = snapshot.Pool.TokenMintA
	default:
		return nil, fmt.Errorf("%w: %s", orca.ErrInputMintNotInPool, req.InputMint)
	}
	return market, nil
}

func (w *WhirlpoolToolkit) ResolveAccounts(ctx context.Context, req *Request, market *Market) (*Accounts, error) {
	owner := w.signer.PublicKey()
	opts := sol.ResolveOptions{
		WrapMethod:   w.opts.WrapMethod,
		CloseWrapped: w.opts.CloseWrapped,
		Commitment:   w.opts.BalanceCommitment,
	}
	if market.InputMint.Equals(sol.WSOL) {
		opts.WrapAmount = req.Amount
	}
	input, err := w.client.ResolveOrCreateATA(ctx, owner, market.InputMint, w.client.RentExemption, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input account: %w", err)
	}
	output, err := w.client.ResolveOrCreateATA(ctx, owner, market.OutputMint, w.client.RentExemption, sol.ResolveOptions{
		Commitment: w.opts.BalanceCommitment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output account: %w", err)
	}
	return &Accounts{Owner: owner, Input: input, Output: output}, nil
}

func (w *WhirlpoolToolkit) BuildSwap(ctx context.Context, req *Request, market *Market, accounts *Accounts) (*SwapPlan, error) {
	pool := market.Snapshot.Pool
	if !accounts.Input.Mint.Equals(market.InputMint) || !accounts.Output.Mint.Equals(market.OutputMint) {
		return nil, fmt.Errorf("token accounts do not hold the pool mints")
	}
	window, err := w.protocol.FetchTickArrays(ctx, market.Snapshot, market.AToB, protocol.FetchIgnoreCache)
	if err != nil {
		return nil, err
	}
	if missing := window.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: tick arrays %v are not initialized", orca.ErrTickArraySequence, missing)
	}

	plan := &SwapPlan{
		Direct: req.Direct,
		Args: orca.SwapArgs{
			Amount:                 req.Amount,
			SqrtPriceLimit:         req.SqrtPriceLimit,
			AmountSpecifiedIsInput: true,
			AToB:                   market.AToB,
		},
		TickArrays:       window.Addresses,
		TickCurrentIndex: pool.TickCurrentIndex,
		MarketSlot:       market.Snapshot.Slot,
		InputAccount:     accounts.Input.Address,
		OutputAccount:    accounts.Output.Address,
		OutputMint:       market.OutputMint,
		Setup:            []sol.Instruction{accounts.Input.Instruction(), accounts.Output.Instruction()},
	}
	if plan.Args.SqrtPriceLimit.IsZero() {
		plan.Args.SqrtPriceLimit = orca.DefaultSqrtPriceLimit(market.AToB)
	}
	ownerA, ownerB := accounts.OwnerAccounts(market.AToB)
	if err := w.buildInstruction(plan, pool, accounts.Owner, ownerA, ownerB); err != nil {
		return nil, err
	}

	log := utils.Logger("verify")
	log.Info().
		Str("program", plan.Program.String()).
		Str("whirlpool", pool.PoolId.String()).
		Bool("a_to_b", market.AToB).
		Uint64("amount", req.Amount).
		Int32("tick_current_index", pool.TickCurrentIndex).
		Msg("swap instruction built")
	return plan, nil
}

func (w *WhirlpoolToolkit) buildInstruction(plan *SwapPlan, pool *orca.WhirlpoolPool, authority, ownerA, ownerB solana.PublicKey) error {
	if plan.Direct {
		swapAccounts, err := pool.SwapAccountsFor(authority, ownerA, ownerB, plan.Args.AToB)
		if err != nil {
			return err
		}
		if err := swapAccounts.Validate(pool); err != nil {
			return err
		}
		ix, err := orca.NewSwapInstruction(pool.GetProgramID(), plan.Args, swapAccounts)
		if err != nil {
			return err
		}
		plan.Program = pool.GetProgramID()
		plan.Instruction = ix
		return nil
	}
	ix, err := orcacpi.BuildProxySwap(w.opts.ProxyProgramID, pool, authority, ownerA, ownerB, plan.Args)
	if err != nil {
		return err
	}
	plan.Program = w.opts.ProxyProgramID
	plan.Instruction = ix
	return nil
}

// Quote refetches the market without cache and quotes the plan against it.
// A market that moved since the plan was built is reported, not corrected.
func (w *WhirlpoolToolkit) Quote(ctx context.Context, req *Request, market *Market, plan *SwapPlan) (*Quote, error) {
	log := utils.Logger("verify")
	fresh, err := w.protocol.FetchMarket(ctx, market.Snapshot.Address, protocol.FetchIgnoreCache)
	if err != nil {
		return nil, err
	}
	window, err := w.protocol.FetchTickArrays(ctx, fresh, market.AToB, protocol.FetchIgnoreCache)
	if err != nil {
		return nil, err
	}
	drift := &Drift{
		BuildSlot:      plan.MarketSlot,
		QuoteSlot:      fresh.Slot,
		BuildTickIndex: plan.TickCurrentIndex,
		QuoteTickIndex: fresh.Pool.TickCurrentIndex,
		WindowChanged:  window.Addresses != plan.TickArrays,
	}
	if drift.Moved() {
		log.Warn().
			Int32("build_tick_index", drift.BuildTickIndex).
			Int32("quote_tick_index", drift.QuoteTickIndex).
			Bool("window_changed", drift.WindowChanged).
			Msg("market moved between build and quote")
	}

	var quote *Quote
	switch req.QuoteSource {
	case QuoteSourceSimulate:
		quote, err = w.simulateQuote(ctx, plan)
	default:
		quote, err = sdkQuote(fresh.Pool, plan.Args, req.Slippage, window.Arrays)
		if quote != nil {
			quote.Slot = fresh.Slot
		}
	}
	if err != nil {
		return nil, err
	}
	quote.Drift = drift

	if req.EnforceThreshold && plan.Args.OtherAmountThreshold != quote.OtherAmountThreshold {
		plan.Args.OtherAmountThreshold = quote.OtherAmountThreshold
		ownerA, ownerB := plan.InputAccount, plan.OutputAccount
		if !plan.Args.AToB {
			ownerA, ownerB = ownerB, ownerA
		}
		if err := w.buildInstruction(plan, market.Snapshot.Pool, w.signer.PublicKey(), ownerA, ownerB); err != nil {
			return nil, err
		}
	}
	return quote, nil
}

func sdkQuote(pool *orca.WhirlpoolPool, args orca.SwapArgs, slippage orca.Percentage, arrays []*orca.WhirlpoolTickArray) (*Quote, error) {
	seq, err := orca.NewTickSequence(pool.TickSpacing, arrays...)
	if err != nil {
		return nil, err
	}
	est, err := pool.SimulateSwap(seq, orca.SwapParams{
		Amount:                 args.Amount,
		SqrtPriceLimit:         args.SqrtPriceLimit,
		AmountSpecifiedIsInput: args.AmountSpecifiedIsInput,
		AToB:                   args.AToB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute whirlpool swap amount: %w", err)
	}
	if !est.EstimatedAmountOut.IsUint64() || !est.EstimatedAmountIn.IsUint64() {
		return nil, fmt.Errorf("%w: quote exceeds u64", orca.ErrAmountExceedsU64)
	}
	threshold := orca.AdjustForSlippage(est.EstimatedAmountOut, slippage, false)
	return &Quote{
		Source:               QuoteSourceSDK,
		EstimatedAmountIn:    est.EstimatedAmountIn.Uint64(),
		EstimatedAmountOut:   est.EstimatedAmountOut.Uint64(),
		EstimatedFeeAmount:   est.EstimatedFeeAmount.Uint64(),
		OtherAmountThreshold: threshold.Uint64(),
		EndTickIndex:         est.EstimatedEndTickIndex,
		EndSqrtPrice:         est.EstimatedEndSqrtPrice.String(),
	}, nil
}

func (w *WhirlpoolToolkit) simulateQuote(ctx context.Context, plan *SwapPlan) (*Quote, error) {
	pre, err := w.Balance(ctx, plan.OutputAccount, plan.OutputMint)
	if err != nil {
		return nil, err
	}
	tx, err := w.transaction(plan).Build(ctx)
	if err != nil {
		return nil, err
	}
	sim, err := w.client.SimulateTransaction(ctx, tx, []solana.PublicKey{plan.OutputAccount}, w.opts.BalanceCommitment)
	if err != nil {
		return nil, err
	}
	post, ok := sim.TokenAmounts[plan.OutputAccount]
	if !ok {
		return nil, fmt.Errorf("simulation did not return output account %s", plan.OutputAccount)
	}
	if post < pre.Amount {
		return nil, fmt.Errorf("simulated output balance %d is below current balance %d", post, pre.Amount)
	}
	return &Quote{
		Source:               QuoteSourceSimulate,
		EstimatedAmountIn:    plan.Args.Amount,
		EstimatedAmountOut:   post - pre.Amount,
		OtherAmountThreshold: post - pre.Amount,
		Slot:                 sim.Slot,
		UnitsConsumed:        sim.UnitsConsumed,
	}, nil
}

func (w *WhirlpoolToolkit) transaction(plan *SwapPlan) *sol.TransactionBuilder {
	builder := w.client.NewTransactionBuilder(w.signer).
		SetComputeBudget(w.opts.ComputeBudget).
		SetBlockhashCommitment(w.opts.BlockhashCommitment)
	for _, setup := range plan.Setup {
		builder.AddInstruction(setup)
	}
	return builder.AddInstruction(sol.Instruction{Instructions: []solana.Instruction{plan.Instruction}})
}

func (w *WhirlpoolToolkit) Balance(ctx context.Context, account, mint solana.PublicKey) (*sol.BalanceSnapshot, error) {
	return w.client.SnapshotTokenBalance(ctx, account, mint, w.opts.BalanceCommitment)
}

func (w *WhirlpoolToolkit) Submit(ctx context.Context, plan *SwapPlan) (solana.Signature, error) {
	return w.transaction(plan).Execute(ctx, w.opts.Send)
}

func (w *WhirlpoolToolkit) Confirm(ctx context.Context, sig solana.Signature) (*sol.Confirmation, error) {
	return w.client.ConfirmTransaction(ctx, sig, w.opts.ConfirmCommitment, w.opts.ConfirmTimeout)
}

func (w *WhirlpoolToolkit) Logs(ctx context.Context, sig solana.Signature, plan *SwapPlan) (*orcacpi.ProxyLogs, error) {
	logs, err := w.client.FetchTransactionLogs(ctx, sig)
	if err != nil {
		return nil, err
	}
	parsed := orcacpi.ParseProxyLogs(w.opts.ProxyProgramID, orca.ORCA_WHIRLPOOL_PROGRAM_ID, logs)
	return &parsed, nil
}
