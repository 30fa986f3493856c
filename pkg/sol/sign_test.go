package sol

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSigner(t *testing.T) {
	wallet := solana.NewWallet()

	key, err := LoadSigner(wallet.PrivateKey.String())
	require.NoError(t, err)
	assert.Equal(t, wallet.PublicKey(), key.PublicKey())

	raw := make([]int, len(wallet.PrivateKey))
	for i, b := range wallet.PrivateKey {
		raw[i] = int(b)
	}
	content, err := json.Marshal(raw)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	key, err = LoadSigner(path)
	require.NoError(t, err)
	assert.Equal(t, wallet.PublicKey(), key.PublicKey())

	_, err = LoadSigner("")
	assert.Error(t, err)
	_, err = LoadSigner("not-a-key")
	assert.Error(t, err)
}

func TestSignTransactionRequiresSigner(t *testing.T) {
	_, err := signTransaction(solana.Hash{}, nil)
	assert.Error(t, err)
}
