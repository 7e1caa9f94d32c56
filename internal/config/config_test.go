package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	path := filepath.Join(t.TempDir(), "missing.yaml")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini", c.DefaultProvider)
	assert.Equal(t, "gemini-2.5-pro", c.DefaultModel)
	assert.Equal(t, 3, c.CodeMinDigits)
	assert.Equal(t, 6, c.CodeMaxDigits)
	assert.Equal(t, 3, c.PreviewRows)
	assert.Equal(t, "management", c.DefaultPersona)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	in := &Global{DefaultProvider: "ollama", DefaultModel: "llama3.1:8b", CodeMinDigits: 4, CodeMaxDigits: 5, GeminiAPIKey: "g-key"}
	require.NoError(t, Save(in, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", out.DefaultProvider)
	assert.Equal(t, "llama3.1:8b", out.DefaultModel)
	assert.Equal(t, 4, out.CodeMinDigits)
	assert.Equal(t, "g-key", out.GeminiAPIKey)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EDUSIGHT_DEFAULT_PERSONA", "teachers")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "from-google")
	c, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "teachers", c.DefaultPersona)
	assert.Equal(t, "from-google", c.GeminiAPIKey)
}
