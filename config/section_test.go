package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  name: arena
  port: 8080
  ratio: 0.5
  debug: true
  verbose: 0
  timeout: 1m30s
  grace: 5
worlds:
  arena:
    width: 1024
    height: 512
    cell_length: 64
`

func decodeTestYAML(t *testing.T) *Section {
	s, err := Decode([]byte(testYAML))
	require.NoError(t, err)
	return s
}

func TestSectionGetters(t *testing.T) {
	s := decodeTestYAML(t)

	require.Equal(t, []string{"server", "worlds"}, s.Keys())
	require.Equal(t, "arena", s.String("server.name", ""))
	require.Equal(t, "8080", s.String("server.port", ""))
	require.Equal(t, 8080, s.Int("server.port", 0))
	require.Equal(t, 0.5, s.Float("server.ratio", 0))
	require.Equal(t, 8080.0, s.Float("server.port", 0))
	require.True(t, s.Bool("server.debug", false))
	require.False(t, s.Bool("server.verbose", true))
	require.Equal(t, 90*time.Second, s.Duration("server.timeout", 0))
	require.Equal(t, 5*time.Second, s.Duration("server.grace", 0))
	require.Equal(t, 64, s.Int("worlds.arena.cell_length", 0))
}

func TestSectionFallbacks(t *testing.T) {
	s := decodeTestYAML(t)

	require.Equal(t, 42, s.Int("server.missing", 42))
	require.Equal(t, 42, s.Int("server.name", 42))
	require.Equal(t, 42, s.Int("server.port.deeper", 42))
	require.Equal(t, "x", s.String("nope", "x"))
	require.True(t, s.Bool("server.name", true))
	require.Equal(t, time.Second, s.Duration("server.name", time.Second))
	require.Nil(t, s.Get("server.name.deeper"))
}

func TestSectionSet(t *testing.T) {
	s := NewSection(nil)

	s.Set("a.b.c", 1)
	require.Equal(t, 1, s.Int("a.b.c", 0))

	s.Set("a.b", "leaf")
	require.Equal(t, "leaf", s.String("a.b", ""))

	s.Set("a.b.d", true)
	require.True(t, s.Bool("a.b.d", false))

	sub := NewSection(nil)
	sub.Set("width", 10)
	s.Set("worlds.small", sub)
	require.Equal(t, 10, s.Int("worlds.small.width", 0))
}

func TestSectionSection(t *testing.T) {
	s := decodeTestYAML(t)

	server := s.Section("server")
	require.NotNil(t, server)
	require.Equal(t, "arena", server.String("name", ""))

	server.Set("name", "lobby")
	require.Equal(t, "lobby", s.String("server.name", ""))

	require.Nil(t, s.Section("server.name"))
	require.Nil(t, s.Section("missing"))
}

func TestDecode(t *testing.T) {
	t.Run("empty document", func(t *testing.T) {
		s, err := Decode(nil)
		require.NoError(t, err)
		require.Empty(t, s.Keys())
	})

	t.Run("non mapping document", func(t *testing.T) {
		_, err := Decode([]byte("- a\n- b\n"))
		require.Error(t, err)
	})

	t.Run("invalid document", func(t *testing.T) {
		_, err := Decode([]byte("a: [b"))
		require.Error(t, err)
	})

	t.Run("non string keys", func(t *testing.T) {
		s, err := Decode([]byte("1:\n  2: three\n"))
		require.NoError(t, err)
		require.Equal(t, "three", s.String("1.2", ""))
	})
}

func TestEncodeDecode(t *testing.T) {
	s := decodeTestYAML(t)

	data, err := s.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, s.values, decoded.values)
}
