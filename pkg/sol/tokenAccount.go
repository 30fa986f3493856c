package sol

import (
	"context"
	"errors"
	"fmt"

	"github.com/Solana-ZH/orcacpi/utils"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrNotTokenAccount is returned when an address holds something other than
// an SPL token account of the expected mint.
var ErrNotTokenAccount = errors.New("not a token account")

// RentExemptFunc returns the rent-exempt minimum for dataSize bytes.
type RentExemptFunc func(ctx context.Context, dataSize uint64) (uint64, error)

// ResolveOptions tunes ResolveOrCreateATA.
type ResolveOptions struct {
	// Payer funds account creation; defaults to the owner
	Payer solana.PublicKey
	// WrapAmount lamports are wrapped when the mint is native SOL
	WrapAmount uint64
	WrapMethod WrapMethod
	// CloseWrapped closes a wrapped ATA after the swap. Keypair accounts are always closed.
	CloseWrapped bool
	Commitment   rpc.CommitmentType
}

// ResolvedTokenAccount is a token account plus the instructions that make it usable.
type ResolvedTokenAccount struct {
	Address             solana.PublicKey
	Mint                solana.PublicKey
	Owner               solana.PublicKey
	Exists              bool
	Instructions        []solana.Instruction
	CleanupInstructions []solana.Instruction
	Signers             []solana.PrivateKey
}

// Instruction converts the resolution into a transaction builder entry.
func (r *ResolvedTokenAccount) Instruction() Instruction {
	return Instruction{
		Instructions:        r.Instructions,
		CleanupInstructions: r.CleanupInstructions,
		Signers:             r.Signers,
	}
}

// ResolveOrCreateATA returns the token account owner uses for mint. An existing
// associated account comes back with no instructions; a missing one comes
// back with its create instruction. A non-zero wrap amount on the native mint
// funds a WSOL account according to opts.WrapMethod.
func (c *Client) ResolveOrCreateATA(ctx context.Context, owner, mint solana.PublicKey, rentFn RentExemptFunc, opts ResolveOptions) (*ResolvedTokenAccount, error) {
	if owner.IsZero() || mint.IsZero() {
		return nil, fmt.Errorf("owner and mint are required")
	}
	if opts.Payer.IsZero() {
		opts.Payer = owner
	}
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	log := utils.Logger("sol")

	if mint.Equals(WSOL) && opts.WrapAmount > 0 {
		method, ok := ParseWrapMethod(string(opts.WrapMethod))
		if !ok {
			return nil, fmt.Errorf("unknown wrap method %q", opts.WrapMethod)
		}
		if method == WrapMethodKeypair {
			return c.createEphemeralWSOLAccount(ctx, owner, rentFn, opts)
		}
	}

	resolved, err := c.resolveATA(ctx, owner, mint, opts)
	if err != nil {
		return nil, err
	}
	if mint.Equals(WSOL) && opts.WrapAmount > 0 {
		wrap, err := WrapNativeInstructions(opts.Payer, resolved.Address, opts.WrapAmount)
		if err != nil {
			return nil, err
		}
		resolved.Instructions = append(resolved.Instructions, wrap...)
		if opts.CloseWrapped {
			closeInst, err := CloseTokenAccountInstruction(resolved.Address, owner, owner)
			if err != nil {
				return nil, err
			}
			resolved.CleanupInstructions = append(resolved.CleanupInstructions, closeInst)
		}
	}
	log.Debug().
		Str("mint", mint.String()).
		Str("account", resolved.Address.String()).
		Bool("exists", resolved.Exists).
		Int("instructions", len(resolved.Instructions)).
		Msg("token account resolved")
	return resolved, nil
}

func (c *Client) resolveATA(ctx context.Context, owner, mint solana.PublicKey, opts ResolveOptions) (*ResolvedTokenAccount, error) {
	ataAddress, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to find associated token address: %w", err)
	}
	resolved := &ResolvedTokenAccount{Address: ataAddress, Mint: mint, Owner: owner}

	exists, err := c.tokenAccountExists(ctx, ataAddress, mint, opts.Commitment)
	if err != nil {
		return nil, err
	}
	if exists {
		resolved.Exists = true
		return resolved, nil
	}

	createAtaInst, err := associatedtokenaccount.NewCreateInstruction(
		opts.Payer,
		owner,
		mint,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build create ATA instruction: %w", err)
	}
	resolved.Instructions = append(resolved.Instructions, createAtaInst)
	return resolved, nil
}

func (c *Client) createEphemeralWSOLAccount(ctx context.Context, owner solana.PublicKey, rentFn RentExemptFunc, opts ResolveOptions) (*ResolvedTokenAccount, error) {
	if rentFn == nil {
		rentFn = c.RentExemption
	}
	rent, err := rentFn(ctx, TokenAccountSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get token account rent: %w", err)
	}

	account := solana.NewWallet()
	createInsts, err := CreateWrappedNativeAccountInstructions(opts.Payer, owner, account.PublicKey(), opts.WrapAmount+rent)
	if err != nil {
		return nil, err
	}
	closeInst, err := CloseTokenAccountInstruction(account.PublicKey(), owner, owner)
	if err != nil {
		return nil, err
	}
	return &ResolvedTokenAccount{
		Address:             account.PublicKey(),
		Mint:                WSOL,
		Owner:               owner,
		Instructions:        createInsts,
		CleanupInstructions: []solana.Instruction{closeInst},
		Signers:             []solana.PrivateKey{account.PrivateKey},
	}, nil
}

func (c *Client) tokenAccountExists(ctx context.Context, address, mint solana.PublicKey, commitment rpc.CommitmentType) (bool, error) {
	info, err := c.RpcClient.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get account %s: %w", address, err)
	}
	if info == nil || info.Value == nil {
		return false, nil
	}
	if info.Value.Data == nil {
		return false, fmt.Errorf("%w: %s has no data", ErrNotTokenAccount, address)
	}
	if !info.Value.Owner.Equals(solana.TokenProgramID) {
		return false, fmt.Errorf("%w: %s is owned by %s", ErrNotTokenAccount, address, info.Value.Owner)
	}

	var account token.Account
	if err := bin.NewBinDecoder(info.Value.Data.GetBinary()).Decode(&account); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrNotTokenAccount, address, err)
	}
	if !account.Mint.Equals(mint) {
		return false, fmt.Errorf("%w: %s holds mint %s, want %s", ErrNotTokenAccount, address, account.Mint, mint)
	}
	return true, nil
}
