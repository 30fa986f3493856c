package sol

import (
	"context"
	"fmt"

	"github.com/Solana-ZH/orcacpi/utils"
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

// Instruction groups instructions that must travel together: setup and
// primary instructions, the cleanup that follows every primary instruction,
// and any extra signers.
type Instruction struct {
	Instructions        []solana.Instruction
	CleanupInstructions []solana.Instruction
	Signers             []solana.PrivateKey
}

// ComputeBudget is prepended when either field is set.
type ComputeBudget struct {
	UnitLimit uint32
	UnitPrice uint64 // micro-lamports per compute unit
}

// TransactionBuilder assembles one legacy transaction. Instructions keep the
// order they were added in, cleanup instructions run last.
type TransactionBuilder struct {
	client              *Client
	payer               solana.PrivateKey
	items               []Instruction
	budget              ComputeBudget
	blockhashCommitment rpc.CommitmentType
}

func (c *Client) NewTransactionBuilder(payer solana.PrivateKey) *TransactionBuilder {
	return &TransactionBuilder{
		client:              c,
		payer:               payer,
		blockhashCommitment: rpc.CommitmentConfirmed,
	}
}

func (b *TransactionBuilder) AddInstruction(ix Instruction) *TransactionBuilder {
	b.items = append(b.items, ix)
	return b
}

func (b *TransactionBuilder) SetComputeBudget(budget ComputeBudget) *TransactionBuilder {
	b.budget = budget
	return b
}

func (b *TransactionBuilder) SetBlockhashCommitment(commitment rpc.CommitmentType) *TransactionBuilder {
	if commitment != "" {
		b.blockhashCommitment = commitment
	}
	return b
}

// Instructions returns the compiled instruction list. Duplicate associated
// token account creations and duplicate closes of the same account are dropped.
func (b *TransactionBuilder) Instructions() ([]solana.Instruction, error) {
	var out []solana.Instruction
	if b.budget.UnitLimit > 0 {
		ix, err := computebudget.NewSetComputeUnitLimitInstruction(b.budget.UnitLimit).ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("failed to build compute unit limit instruction: %w", err)
		}
		out = append(out, ix)
	}
	if b.budget.UnitPrice > 0 {
		ix, err := computebudget.NewSetComputeUnitPriceInstruction(b.budget.UnitPrice).ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("failed to build compute unit price instruction: %w", err)
		}
		out = append(out, ix)
	}

	created := make(map[solana.PublicKey]bool)
	closed := make(map[solana.PublicKey]bool)
	var cleanup []solana.Instruction
	for _, item := range b.items {
		for _, ix := range item.Instructions {
			if ata, ok := createdATA(ix); ok {
				if created[ata] {
					continue
				}
				created[ata] = true
			}
			out = append(out, ix)
		}
		for _, ix := range item.CleanupInstructions {
			if account, ok := closedAccount(ix); ok {
				if closed[account] {
					continue
				}
				closed[account] = true
			}
			cleanup = append(cleanup, ix)
		}
	}
	return append(out, cleanup...), nil
}

// Signers returns the payer followed by every distinct extra signer.
func (b *TransactionBuilder) Signers() []solana.PrivateKey {
	signers := []solana.PrivateKey{b.payer}
	seen := map[solana.PublicKey]bool{b.payer.PublicKey(): true}
	for _, item := range b.items {
		for _, s := range item.Signers {
			if seen[s.PublicKey()] {
				continue
			}
			seen[s.PublicKey()] = true
			signers = append(signers, s)
		}
	}
	return signers
}

// Build fetches a blockhash and signs the transaction.
func (b *TransactionBuilder) Build(ctx context.Context) (*solana.Transaction, error) {
	latest, err := b.client.RpcClient.GetLatestBlockhash(ctx, b.blockhashCommitment)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	return b.BuildWithBlockhash(latest.Value.Blockhash)
}

// BuildWithBlockhash signs the transaction against a known blockhash.
func (b *TransactionBuilder) BuildWithBlockhash(blockhash solana.Hash) (*solana.Transaction, error) {
	if len(b.payer) == 0 {
		return nil, fmt.Errorf("transaction payer is not set")
	}
	instrs, err := b.Instructions()
	if err != nil {
		return nil, err
	}
	if len(instrs) == 0 {
		return nil, fmt.Errorf("transaction has no instructions")
	}
	return signTransaction(blockhash, b.Signers(), instrs...)
}

// Execute builds, signs and sends the transaction. It does not wait for
// the transaction to land.
func (b *TransactionBuilder) Execute(ctx context.Context, opts SendOptions) (solana.Signature, error) {
	tx, err := b.Build(ctx)
	if err != nil {
		return solana.Signature{}, err
	}
	log := utils.Logger("sol")
	log.Info().
		Int("instructions", len(tx.Message.Instructions)).
		Int("signers", len(tx.Signatures)).
		Msg("submitting transaction")
	return b.client.SendTx(ctx, tx, opts)
}

func createdATA(ix solana.Instruction) (solana.PublicKey, bool) {
	if !ix.ProgramID().Equals(solana.SPLAssociatedTokenAccountProgramID) {
		return solana.PublicKey{}, false
	}
	accounts := ix.Accounts()
	if len(accounts) < 2 {
		return solana.PublicKey{}, false
	}
	return accounts[1].PublicKey, true
}

func closedAccount(ix solana.Instruction) (solana.PublicKey, bool) {
	if !ix.ProgramID().Equals(solana.TokenProgramID) {
		return solana.PublicKey{}, false
	}
	data, err := ix.Data()
	if err != nil || len(data) == 0 || data[0] != token.Instruction_CloseAccount {
		return solana.PublicKey{}, false
	}
	accounts := ix.Accounts()
	if len(accounts) == 0 {
		return solana.PublicKey{}, false
	}
	return accounts[0].PublicKey, true
}
