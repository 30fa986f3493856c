package sol

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/Solana-ZH/orcacpi/internal/rpctest"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionBuilderOrdering(t *testing.T) {
	c, _ := newTestClient(t)
	payer := solana.NewWallet()
	extra := solana.NewWallet()
	owner := payer.PublicKey()

	createA := associatedtokenaccount.NewCreateInstruction(owner, owner, usdcMint).Build()
	createB := associatedtokenaccount.NewCreateInstruction(owner, owner, usdcMint).Build()
	primary := system.NewTransferInstruction(1, owner, extra.PublicKey()).Build()
	closeA, err := CloseTokenAccountInstruction(extra.PublicKey(), owner, owner)
	require.NoError(t, err)
	closeB, err := CloseTokenAccountInstruction(extra.PublicKey(), owner, owner)
	require.NoError(t, err)

	b := c.NewTransactionBuilder(payer.PrivateKey).
		SetComputeBudget(ComputeBudget{UnitLimit: 400_000, UnitPrice: 1_000}).
		AddInstruction(Instruction{
			Instructions:        []solana.Instruction{createA},
			CleanupInstructions: []solana.Instruction{closeA},
			Signers:             []solana.PrivateKey{extra.PrivateKey},
		}).
		AddInstruction(Instruction{
			Instructions:        []solana.Instruction{createB},
			CleanupInstructions: []solana.Instruction{closeB},
			Signers:             []solana.PrivateKey{extra.PrivateKey, payer.PrivateKey},
		}).
		AddInstruction(Instruction{Instructions: []solana.Instruction{primary}})

	instrs, err := b.Instructions()
	require.NoError(t, err)
	require.Len(t, instrs, 5)
	computeBudget := solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")
	assert.Equal(t, computeBudget, instrs[0].ProgramID())
	assert.Equal(t, computeBudget, instrs[1].ProgramID())
	assert.Same(t, createA, instrs[2])
	assert.Same(t, primary, instrs[3])
	assert.Same(t, closeA, instrs[4])

	signers := b.Signers()
	require.Len(t, signers, 2)
	assert.Equal(t, payer.PublicKey(), signers[0].PublicKey())
	assert.Equal(t, extra.PublicKey(), signers[1].PublicKey())
}

func TestTransactionBuilderRejectsEmpty(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.NewTransactionBuilder(solana.NewWallet().PrivateKey).BuildWithBlockhash(rpctest.DefaultBlockhash)
	assert.Error(t, err)

	_, err = c.NewTransactionBuilder(nil).
		AddInstruction(Instruction{Instructions: []solana.Instruction{system.NewTransferInstruction(1, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()).Build()}}).
		BuildWithBlockhash(rpctest.DefaultBlockhash)
	assert.Error(t, err)
}

func TestTransactionBuilderExecute(t *testing.T) {
	c, srv := newTestClient(t)
	payer := solana.NewWallet()

	var sent *solana.Transaction
	srv.On("sendTransaction", func(params []json.RawMessage) (any, error) {
		raw, err := base64.StdEncoding.DecodeString(rpctest.String(params, 0))
		if err != nil {
			return nil, err
		}
		sent, err = solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
		if err != nil {
			return nil, err
		}
		return sent.Signatures[0].String(), nil
	})

	sig, err := c.NewTransactionBuilder(payer.PrivateKey).
		AddInstruction(Instruction{Instructions: []solana.Instruction{
			system.NewTransferInstruction(10, payer.PublicKey(), solana.NewWallet().PublicKey()).Build(),
		}}).
		Execute(context.Background(), DefaultSendOptions())
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, sent.Signatures[0], sig)
	assert.Equal(t, rpctest.DefaultBlockhash, sent.Message.RecentBlockhash)
	assert.Equal(t, payer.PublicKey(), sent.Message.AccountKeys[0])
	assert.Equal(t, 1, srv.Calls("getLatestBlockhash"))
	// confirmation is the caller's step
	assert.Equal(t, 0, srv.Calls("getSignatureStatuses"))
}
