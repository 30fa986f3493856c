package sol

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/tidwall/gjson"
)

// BalanceSnapshot is the token amount of an account at a slot. A missing
// account reads as zero.
type BalanceSnapshot struct {
	Account  solana.PublicKey `json:"account" yaml:"account"`
	Mint     solana.PublicKey `json:"mint" yaml:"mint"`
	Amount   uint64           `json:"amount" yaml:"amount"`
	Decimals uint8            `json:"decimals" yaml:"decimals"`
	Exists   bool             `json:"exists" yaml:"exists"`
	Slot     uint64           `json:"slot" yaml:"slot"`
	TakenAt  time.Time        `json:"taken_at" yaml:"taken_at"`
}

// SnapshotTokenBalance reads the token amount of account.
func (c *Client) SnapshotTokenBalance(ctx context.Context, account, mint solana.PublicKey, commitment rpc.CommitmentType) (*BalanceSnapshot, error) {
	resp, err := c.RpcClient.GetMultipleAccountsWithOpts(ctx, []solana.PublicKey{account}, &rpc.GetMultipleAccountsOpts{
		Encoding:   solana.EncodingJSONParsed,
		Commitment: commitment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get token account %s: %w", account, err)
	}
	if resp == nil || len(resp.Value) != 1 {
		return nil, fmt.Errorf("unexpected response for token account %s", account)
	}

	snap := &BalanceSnapshot{
		Account: account,
		Mint:    mint,
		Slot:    resp.Context.Slot,
		TakenAt: time.Now(),
	}
	if resp.Value[0] == nil {
		return snap, nil
	}
	if resp.Value[0].Data == nil {
		return nil, fmt.Errorf("%w: %s has no data", ErrNotTokenAccount, account)
	}
	amount, err := parseTokenAmount(resp.Value[0].Data.GetRawJSON(), mint)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", account, err)
	}
	snap.Exists = true
	snap.Amount = amount.Amount
	snap.Decimals = amount.Decimals
	return snap, nil
}

type tokenAmount struct {
	Amount   uint64
	Decimals uint8
}

// parseTokenAmount reads a jsonParsed SPL token account.
func parseTokenAmount(raw json.RawMessage, mint solana.PublicKey) (*tokenAmount, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no parsed data", ErrNotTokenAccount)
	}
	if t := gjson.GetBytes(raw, "parsed.type").String(); t != "account" {
		return nil, fmt.Errorf("%w: parsed type %q", ErrNotTokenAccount, t)
	}
	if got := gjson.GetBytes(raw, "parsed.info.mint").String(); !mint.IsZero() && got != mint.String() {
		return nil, fmt.Errorf("%w: holds mint %s, want %s", ErrNotTokenAccount, got, mint)
	}
	amountField := gjson.GetBytes(raw, "parsed.info.tokenAmount.amount")
	if !amountField.Exists() {
		return nil, fmt.Errorf("%w: token amount missing", ErrNotTokenAccount)
	}
	amount, err := strconv.ParseUint(amountField.String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid token amount %q: %w", amountField.String(), err)
	}
	return &tokenAmount{
		Amount:   amount,
		Decimals: uint8(gjson.GetBytes(raw, "parsed.info.tokenAmount.decimals").Uint()),
	}, nil
}
