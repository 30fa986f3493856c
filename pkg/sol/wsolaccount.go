package sol

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// WrapNativeInstructions moves lamports into an existing wrapped SOL account
// and syncs its token amount.
func WrapNativeInstructions(from, wsolAccount solana.PublicKey, lamports uint64) ([]solana.Instruction, error) {
	transferInst, err := system.NewTransferInstruction(
		lamports,
		from,
		wsolAccount,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer instruction: %w", err)
	}

	syncNativeInst, err := token.NewSyncNativeInstruction(
		wsolAccount,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build sync native instruction: %w", err)
	}
	return []solana.Instruction{transferInst, syncNativeInst}, nil
}

// CreateWrappedNativeAccountInstructions allocates account as a WSOL token
// account owned by owner holding lamports (rent included).
func CreateWrappedNativeAccountInstructions(payer, owner, account solana.PublicKey, lamports uint64) ([]solana.Instruction, error) {
	createInst, err := system.NewCreateAccountInstruction(
		lamports,
		TokenAccountSize,
		solana.TokenProgramID,
		payer,
		account,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build create account instruction: %w", err)
	}

	initInst, err := token.NewInitializeAccountInstruction(
		account,
		WSOL,
		owner,
		solana.SysVarRentPubkey,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build initialize account instruction: %w", err)
	}
	return []solana.Instruction{createInst, initInst}, nil
}

// CloseTokenAccountInstruction returns the remaining lamports of account to destination.
func CloseTokenAccountInstruction(account, destination, owner solana.PublicKey) (solana.Instruction, error) {
	closeInst, err := token.NewCloseAccountInstruction(
		account,
		destination,
		owner,
		[]solana.PublicKey{},
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build close account instruction: %w", err)
	}
	return closeInst, nil
}
