// Package orcacpi builds instructions for the proxy program that forwards
// swaps into the Orca Whirlpool program through a CPI.
package orcacpi

import (
	"errors"
	"fmt"

	"github.com/Solana-ZH/orcacpi/pkg/pool/orca"
	"github.com/Solana-ZH/orcacpi/pkg/sol"
	"github.com/gagliardetto/solana-go"
)

// Default proxy program deployment
var PROGRAM_ID = solana.MustPublicKeyFromBase58("3pQ97qmmc4ifb75ZCUvXwk9Q7DtSuymzKknd7CnroLD1")

// ProxySwapDiscriminator = sha256("global:proxy_swap")[:8]
var ProxySwapDiscriminator = sol.AnchorDiscriminator(sol.AnchorInstructionNamespace, "proxy_swap")

var ErrInvalidProxySwap = errors.New("invalid proxy swap")

// ProxySwapAccounts are the swap accounts prefixed by the whirlpool program
// the proxy invokes.
type ProxySwapAccounts struct {
	WhirlpoolProgram solana.PublicKey
	orca.SwapAccounts
}

// ProxySwapInstruction implements solana.Instruction.
type ProxySwapInstruction struct {
	programID solana.PublicKey
	Args      orca.SwapArgs
	Keys      ProxySwapAccounts
}

var _ solana.Instruction = (*ProxySwapInstruction)(nil)

func (ix *ProxySwapInstruction) ProgramID() solana.PublicKey {
	return ix.programID
}

// Accounts returns whirlpool_program followed by the whirlpool swap accounts.
func (ix *ProxySwapInstruction) Accounts() []*solana.AccountMeta {
	metas := solana.AccountMetaSlice{solana.NewAccountMeta(ix.Keys.WhirlpoolProgram, false, false)}
	return append(metas, ix.Keys.Metas()...)
}

func (ix *ProxySwapInstruction) Data() ([]byte, error) {
	return orca.EncodeSwapData(ProxySwapDiscriminator[:], ix.Args)
}

// NewProxySwapInstruction validates the request and builds the instruction.
func NewProxySwapInstruction(programID solana.PublicKey, args orca.SwapArgs, accounts ProxySwapAccounts) (*ProxySwapInstruction, error) {
	if programID.IsZero() {
		return nil, fmt.Errorf("%w: proxy program id is not set", ErrInvalidProxySwap)
	}
	if accounts.WhirlpoolProgram.IsZero() {
		return nil, fmt.Errorf("%w: whirlpool program id is not set", ErrInvalidProxySwap)
	}
	if args.Amount == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProxySwap, orca.ErrZeroTradableAmount)
	}
	if args.SqrtPriceLimit.IsZero() {
		args.SqrtPriceLimit = orca.DefaultSqrtPriceLimit(args.AToB)
	}
	return &ProxySwapInstruction{
		programID: programID,
		Args:      args,
		Keys:      accounts,
	}, nil
}

// BuildProxySwap derives the pool-side accounts for the swap direction,
// checks them against the pool and builds the proxy instruction.
func BuildProxySwap(programID solana.PublicKey, pool *orca.WhirlpoolPool, authority, ownerAccountA, ownerAccountB solana.PublicKey, args orca.SwapArgs) (*ProxySwapInstruction, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: pool is nil", ErrInvalidProxySwap)
	}
	if pool.TickSpacing == 0 {
		return nil, fmt.Errorf("%w: pool %s has zero tick spacing", ErrInvalidProxySwap, pool.PoolId)
	}
	swapAccounts, err := pool.SwapAccountsFor(authority, ownerAccountA, ownerAccountB, args.AToB)
	if err != nil {
		return nil, err
	}
	if err := swapAccounts.Validate(pool); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProxySwap, err)
	}
	return NewProxySwapInstruction(programID, args, ProxySwapAccounts{
		WhirlpoolProgram: pool.GetProgramID(),
		SwapAccounts:     swapAccounts,
	})
}
