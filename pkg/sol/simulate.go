package sol

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// SimulationResult is the outcome of a transaction simulation.
type SimulationResult struct {
	Slot          uint64
	Logs          []string
	UnitsConsumed uint64
	Err           interface{}
	// TokenAmounts holds the post-simulation amount of each watched token account
	// that exists after the simulation
	TokenAmounts map[solana.PublicKey]uint64
}

// SimulateTransaction runs tx without committing it and reports the
// post-state token amounts of watch.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction, watch []solana.PublicKey, commitment rpc.CommitmentType) (*SimulationResult, error) {
	opts := &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		Commitment:             commitment,
		ReplaceRecentBlockhash: true,
	}
	if len(watch) > 0 {
		opts.Accounts = &rpc.SimulateTransactionAccountsOpts{
			Encoding:  solana.EncodingJSONParsed,
			Addresses: watch,
		}
	}

	resp, err := c.RpcClient.SimulateTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to simulate transaction: %w", err)
	}
	if resp == nil || resp.Value == nil {
		return nil, fmt.Errorf("empty simulation response")
	}

	out := &SimulationResult{
		Slot:         resp.Context.Slot,
		Logs:         resp.Value.Logs,
		Err:          resp.Value.Err,
		TokenAmounts: make(map[solana.PublicKey]uint64),
	}
	if resp.Value.UnitsConsumed != nil {
		out.UnitsConsumed = *resp.Value.UnitsConsumed
	}
	if out.Err != nil {
		return out, fmt.Errorf("%w: simulation: %v", ErrTransactionFailed, out.Err)
	}
	for i, acc := range resp.Value.Accounts {
		if i >= len(watch) || acc == nil || acc.Data == nil {
			continue
		}
		amount, err := parseTokenAmount(acc.Data.GetRawJSON(), solana.PublicKey{})
		if err != nil {
			return out, fmt.Errorf("simulated account %s: %w", watch[i], err)
		}
		out.TokenAmounts[watch[i]] = amount.Amount
	}
	return out, nil
}
