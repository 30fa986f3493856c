package orca

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// SwapArgs are the borsh-encoded arguments shared by the whirlpool swap
// instruction and any program that forwards to it.
type SwapArgs struct {
	Amount                 uint64
	OtherAmountThreshold   uint64
	SqrtPriceLimit         uint128.Uint128
	AmountSpecifiedIsInput bool
	AToB                   bool
}

func (args SwapArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.Encode(args.Amount); err != nil {
		return fmt.Errorf("failed to encode amount: %w", err)
	}
	if err := enc.Encode(args.OtherAmountThreshold); err != nil {
		return fmt.Errorf("failed to encode otherAmountThreshold: %w", err)
	}
	// u128 little endian: low 64 bits first
	if err := enc.Encode(args.SqrtPriceLimit.Lo); err != nil {
		return fmt.Errorf("failed to encode sqrtPriceLimit lo: %w", err)
	}
	if err := enc.Encode(args.SqrtPriceLimit.Hi); err != nil {
		return fmt.Errorf("failed to encode sqrtPriceLimit hi: %w", err)
	}
	if err := enc.Encode(args.AmountSpecifiedIsInput); err != nil {
		return fmt.Errorf("failed to encode amountSpecifiedIsInput: %w", err)
	}
	if err := enc.Encode(args.AToB); err != nil {
		return fmt.Errorf("failed to encode aToB: %w", err)
	}
	return nil
}

// EncodeSwapData writes discriminator followed by the encoded args.
func EncodeSwapData(discriminator []byte, args SwapArgs) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(discriminator, false); err != nil {
		return nil, fmt.Errorf("failed to write discriminator: %w", err)
	}
	if err := args.MarshalWithEncoder(enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SwapAccounts lists the accounts of a whirlpool swap in instruction order.
type SwapAccounts struct {
	TokenProgram       solana.PublicKey
	TokenAuthority     solana.PublicKey
	Whirlpool          solana.PublicKey
	TokenOwnerAccountA solana.PublicKey
	TokenVaultA        solana.PublicKey
	TokenOwnerAccountB solana.PublicKey
	TokenVaultB        solana.PublicKey
	TickArrays         [3]solana.PublicKey
	Oracle             solana.PublicKey
}

// Metas returns the account metas in the order the swap instruction reads them.
func (a SwapAccounts) Metas() solana.AccountMetaSlice {
	accounts := solana.AccountMetaSlice{}
	accounts.Append(solana.NewAccountMeta(a.TokenProgram, false, false))      // 0: token_program
	accounts.Append(solana.NewAccountMeta(a.TokenAuthority, false, true))     // 1: token_authority (signer)
	accounts.Append(solana.NewAccountMeta(a.Whirlpool, true, false))          // 2: whirlpool
	accounts.Append(solana.NewAccountMeta(a.TokenOwnerAccountA, true, false)) // 3: token_owner_account_a
	accounts.Append(solana.NewAccountMeta(a.TokenVaultA, true, false))        // 4: token_vault_a
	accounts.Append(solana.NewAccountMeta(a.TokenOwnerAccountB, true, false)) // 5: token_owner_account_b
	accounts.Append(solana.NewAccountMeta(a.TokenVaultB, true, false))        // 6: token_vault_b
	accounts.Append(solana.NewAccountMeta(a.TickArrays[0], true, false))      // 7: tick_array_0
	accounts.Append(solana.NewAccountMeta(a.TickArrays[1], true, false))      // 8: tick_array_1
	accounts.Append(solana.NewAccountMeta(a.TickArrays[2], true, false))      // 9: tick_array_2
	accounts.Append(solana.NewAccountMeta(a.Oracle, true, false))             // 10: oracle
	return accounts
}

// Validate checks the accounts against the pool they are meant to swap on.
func (a SwapAccounts) Validate(pool *WhirlpoolPool) error {
	switch {
	case !a.Whirlpool.Equals(pool.PoolId):
		return fmt.Errorf("whirlpool %s does not match pool %s", a.Whirlpool, pool.PoolId)
	case !a.TokenVaultA.Equals(pool.TokenVaultA):
		return fmt.Errorf("token vault A %s does not match pool vault %s", a.TokenVaultA, pool.TokenVaultA)
	case !a.TokenVaultB.Equals(pool.TokenVaultB):
		return fmt.Errorf("token vault B %s does not match pool vault %s", a.TokenVaultB, pool.TokenVaultB)
	case a.TokenAuthority.IsZero():
		return fmt.Errorf("token authority is not set")
	case a.TokenOwnerAccountA.IsZero() || a.TokenOwnerAccountB.IsZero():
		return fmt.Errorf("token owner accounts are not set")
	case a.Oracle.IsZero():
		return fmt.Errorf("oracle is not set")
	}
	for i, ta := range a.TickArrays {
		if ta.IsZero() {
			return fmt.Errorf("%w: tick_array_%d is not set", ErrTickArraySequence, i)
		}
	}
	return nil
}

// SwapAccountsFor fills the pool-side accounts of a swap in the given direction.
func (pool *WhirlpoolPool) SwapAccountsFor(authority, ownerAccountA, ownerAccountB solana.PublicKey, aToB bool) (SwapAccounts, error) {
	tickArrays, err := pool.TickArrayAddresses(aToB)
	if err != nil {
		return SwapAccounts{}, fmt.Errorf("failed to derive tick array PDAs: %w", err)
	}
	oracle, err := pool.OracleAddress()
	if err != nil {
		return SwapAccounts{}, fmt.Errorf("failed to derive oracle PDA: %w", err)
	}
	return SwapAccounts{
		TokenProgram:       TOKEN_PROGRAM_ID,
		TokenAuthority:     authority,
		Whirlpool:          pool.PoolId,
		TokenOwnerAccountA: ownerAccountA,
		TokenVaultA:        pool.TokenVaultA,
		TokenOwnerAccountB: ownerAccountB,
		TokenVaultB:        pool.TokenVaultB,
		TickArrays:         tickArrays,
		Oracle:             oracle,
	}, nil
}

// NewSwapInstruction builds the whirlpool program's own swap instruction.
func NewSwapInstruction(programID solana.PublicKey, args SwapArgs, accounts SwapAccounts) (solana.Instruction, error) {
	if args.Amount == 0 {
		return nil, ErrZeroTradableAmount
	}
	data, err := EncodeSwapData(SwapDiscriminator, args)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, accounts.Metas(), data), nil
}
