package sol

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Solana-ZH/orcacpi/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// SendOptions controls how a signed transaction is submitted.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
	MaxRetries          *uint
}

// DefaultSendOptions skips preflight and lets the caller own retries.
func DefaultSendOptions() SendOptions {
	noRetry := uint(0)
	return SendOptions{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentProcessed,
		MaxRetries:          &noRetry,
	}
}

// LoadSigner reads a private key given either as base58 or as the path of a
// solana-keygen JSON file.
func LoadSigner(value string) (solana.PrivateKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("signer is not configured")
	}
	if st, err := os.Stat(value); err == nil && !st.IsDir() {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(value)
		if err != nil {
			return nil, fmt.Errorf("failed to read keypair file %s: %w", value, err)
		}
		return key, nil
	}
	key, err := solana.PrivateKeyFromBase58(value)
	if err != nil {
		return nil, fmt.Errorf("invalid base58 private key: %w", err)
	}
	return key, nil
}

// signTransaction creates and signs a new transaction with the given instructions.
// The first signer pays the fee.
func signTransaction(blockhash solana.Hash, signers []solana.PrivateKey, instrs ...solana.Instruction) (*solana.Transaction, error) {
	if len(signers) == 0 {
		return nil, fmt.Errorf("at least one signer is required")
	}

	tx, err := solana.NewTransaction(
		instrs,
		blockhash,
		solana.TransactionPayer(signers[0].PublicKey()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.Sign(
		func(key solana.PublicKey) *solana.PrivateKey {
			for i := range signers {
				if signers[i].PublicKey().Equals(key) {
					return &signers[i]
				}
			}
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}

// SendTx submits a signed transaction.
func (c *Client) SendTx(ctx context.Context, tx *solana.Transaction, opts SendOptions) (solana.Signature, error) {
	log := utils.Logger("sol")

	sig, err := c.RpcClient.SendTransactionWithOpts(
		ctx, tx,
		rpc.TransactionOpts{
			SkipPreflight:       opts.SkipPreflight,
			PreflightCommitment: opts.PreflightCommitment,
			MaxRetries:          opts.MaxRetries,
		},
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	log.Debug().Str("signature", sig.String()).Bool("skip_preflight", opts.SkipPreflight).Msg("transaction sent")
	return sig, nil
}
