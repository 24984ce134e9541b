package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvFromFile(t *testing.T) {
	t.Run("Should load key/value pairs from a .env file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, ".env")
		require.NoError(t, os.WriteFile(path, []byte("FOO=bar\nBAZ=qux\n"), 0644))

		envMap, err := NewEnvFromFile(path)

		require.NoError(t, err)
		assert.Equal(t, "bar", envMap["FOO"])
		assert.Equal(t, "qux", envMap["BAZ"])
	})

	t.Run("Should return an empty map for a missing file", func(t *testing.T) {
		envMap, err := NewEnvFromFile("/non/existent/.env")

		require.NoError(t, err)
		assert.Empty(t, envMap)
	})
}

func TestEnvMapMerge(t *testing.T) {
	t.Run("Should let the receiver's keys take precedence over other's", func(t *testing.T) {
		current := EnvMap{"FOO": "current", "ONLY_CURRENT": "1"}
		fromFile := EnvMap{"FOO": "from-file", "ONLY_FILE": "2"}

		merged, err := current.Merge(fromFile)

		require.NoError(t, err)
		assert.Equal(t, "current", merged["FOO"])
		assert.Equal(t, "1", merged["ONLY_CURRENT"])
		assert.Equal(t, "2", merged["ONLY_FILE"])
	})
}

func TestDotenvProvider(t *testing.T) {
	t.Run("Should seed the process environment from the .env file without overriding existing vars", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, ".env")
		require.NoError(t, os.WriteFile(path, []byte("DOTENV_TEST_NEW=from-file\nDOTENV_TEST_EXISTING=from-file\n"), 0644))

		require.NoError(t, os.Setenv("DOTENV_TEST_EXISTING", "already-set"))
		defer os.Unsetenv("DOTENV_TEST_EXISTING")
		defer os.Unsetenv("DOTENV_TEST_NEW")

		provider := NewDotenvProvider(path)
		data, err := provider.Load()

		require.NoError(t, err)
		assert.Empty(t, data)
		assert.Equal(t, "from-file", os.Getenv("DOTENV_TEST_NEW"))
		assert.Equal(t, "already-set", os.Getenv("DOTENV_TEST_EXISTING"))
	})

	t.Run("Should report SourceEnv as its type", func(t *testing.T) {
		provider := NewDotenvProvider(".env")
		assert.Equal(t, SourceEnv, provider.Type())
	})

	t.Run("Should not support watching", func(t *testing.T) {
		provider := NewDotenvProvider(".env")
		assert.NoError(t, provider.Watch(t.Context(), func() {}))
	})
}
