package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "areagrid.yaml")

	f, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, path, f.Path())
	require.Empty(t, f.Keys())

	f.Set("worlds.arena.width", 256)
	require.NoError(t, f.Save())

	f2, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 256, f2.Int("worlds.arena.width", 0))

	require.NoError(t, os.WriteFile(path, []byte("worlds: 3\n"), 0o644))
	require.NoError(t, f2.Reload())
	require.Equal(t, 3, f2.Int("worlds", 0))
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: [b"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeConfig))
}
