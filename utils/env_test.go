package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindEnvFileWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", ".env"), []byte("ORCACPI_TEST=1\n"), 0o600))

	assert.Equal(t, filepath.Join(root, "a", ".env"), findEnvFileFrom(nested))
}

func TestFindEnvFileStopsAfterThreeLevels(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("X=1\n"), 0o600))

	assert.Empty(t, findEnvFileFrom(nested))
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, InitLogger("debug", "json", os.Stderr))
	assert.NoError(t, InitLogger("", "console", nil))
	assert.Error(t, InitLogger("loud", "json", nil))
	assert.Error(t, InitLogger("info", "xml", nil))
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitLogger("info", "json", &buf))
	t.Cleanup(func() { _ = InitLogger("info", "console", nil) })

	log := Logger("sol")
	log.Info().Int("instructions", 3).Msg("submitting transaction")
	log.Debug().Msg("below level")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "sol", line["component"])
	assert.Equal(t, "submitting transaction", line["message"])
	assert.EqualValues(t, 3, line["instructions"])
}
