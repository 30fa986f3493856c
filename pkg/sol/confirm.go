package sol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Solana-ZH/orcacpi/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
	ErrTransactionFailed   = errors.New("transaction failed")
)

// Confirmation is the observed status of a landed transaction.
type Confirmation struct {
	Signature  solana.Signature
	Slot       uint64
	Commitment rpc.CommitmentType
}

// ConfirmTransaction waits until sig reaches commitment. It listens on the
// WebSocket connection when there is one and polls signature statuses
// otherwise.
func (c *Client) ConfirmTransaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType, timeout time.Duration) (*Confirmation, error) {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	log := utils.Logger("sol")

	var (
		conf *Confirmation
		err  error
	)
	if c.WsClient != nil {
		conf, err = c.waitSignature(waitCtx, sig, commitment)
		if err != nil && !errors.Is(err, ErrTransactionFailed) && waitCtx.Err() == nil {
			log.Warn().Err(err).Str("signature", sig.String()).Msg("signature subscription failed, polling instead")
			conf, err = c.pollSignature(waitCtx, sig, commitment)
		}
	} else {
		conf, err = c.pollSignature(waitCtx, sig, commitment)
	}
	if err != nil {
		if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrConfirmationTimeout, sig, timeout)
		}
		return nil, err
	}
	log.Info().Str("signature", sig.String()).Uint64("slot", conf.Slot).Str("commitment", string(commitment)).Msg("transaction confirmed")
	return conf, nil
}

func (c *Client) waitSignature(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (*Confirmation, error) {
	sub, err := c.WsClient.SignatureSubscribe(sig, commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to signature: %w", err)
	}
	defer sub.Unsubscribe()

	res, err := sub.Recv(ctx)
	if err != nil {
		return nil, fmt.Errorf("signature subscription: %w", err)
	}
	if res.Value.Err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransactionFailed, sig, res.Value.Err)
	}
	return &Confirmation{Signature: sig, Slot: res.Context.Slot, Commitment: commitment}, nil
}

func (c *Client) pollSignature(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (*Confirmation, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		resp, err := c.RpcClient.GetSignatureStatuses(ctx, true, sig)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get signature status: %w", err)
		}
		if resp != nil && len(resp.Value) > 0 && resp.Value[0] != nil {
			status := resp.Value[0]
			if status.Err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrTransactionFailed, sig, status.Err)
			}
			if commitmentReached(status.ConfirmationStatus, commitment) {
				return &Confirmation{Signature: sig, Slot: status.Slot, Commitment: commitment}, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func commitmentRank(status string) int {
	switch status {
	case string(rpc.CommitmentProcessed):
		return 1
	case string(rpc.CommitmentConfirmed):
		return 2
	case string(rpc.CommitmentFinalized):
		return 3
	}
	return 0
}

func commitmentReached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	have := commitmentRank(string(status))
	return have > 0 && have >= commitmentRank(string(want))
}

// FetchTransactionLogs returns the log messages of a confirmed transaction.
func (c *Client) FetchTransactionLogs(ctx context.Context, sig solana.Signature) ([]string, error) {
	maxVersion := uint64(0)
	result, err := c.RpcClient.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", sig, err)
	}
	if result == nil || result.Meta == nil {
		return nil, fmt.Errorf("transaction %s has no metadata", sig)
	}
	return result.Meta.LogMessages, nil
}
