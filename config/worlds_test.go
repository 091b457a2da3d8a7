package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestLoadWorlds(t *testing.T) {
	worlds, err := LoadWorlds(decodeTestYAML(t))
	require.NoError(t, err)
	require.Equal(t, []string{"arena"}, worlds.Names())

	arena, ok := worlds.Get("arena")
	require.True(t, ok)
	require.Equal(t, World{
		Name:       "arena",
		Width:      1024,
		Height:     512,
		CellLength: 64,
	}, arena)

	_, ok = worlds.Get("lobby")
	require.False(t, ok)
}

func TestLoadWorldsEmpty(t *testing.T) {
	worlds, err := LoadWorlds(NewSection(nil))
	require.NoError(t, err)
	require.Empty(t, worlds)
}

func TestLoadWorldsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "not a section", yaml: "worlds:\n  arena: 3\n"},
		{name: "cell length not a power of two", yaml: "worlds:\n  arena:\n    width: 10\n    height: 10\n    cell_length: 12\n"},
		{name: "missing size", yaml: "worlds:\n  arena:\n    cell_length: 16\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s, err := Decode([]byte(test.yaml))
			require.NoError(t, err)

			_, err = LoadWorlds(s)
			require.Error(t, err)
			require.True(t, errors.IsType(err, ErrTypeConfig))
		})
	}
}

func TestLoadWorldsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worlds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0o644))

	worlds, err := LoadWorldsFile(path)
	require.NoError(t, err)
	require.Len(t, worlds, 1)
}

func TestWorldsAdd(t *testing.T) {
	worlds := make(Worlds)
	require.NoError(t, worlds.Add(World{Name: "a", Width: 10, Height: 10, CellLength: 1}))
	require.Error(t, worlds.Add(World{Width: 10, Height: 10, CellLength: 1}))
	require.Len(t, worlds, 1)
}
