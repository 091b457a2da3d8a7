package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequentialIDGeneratorNew(t *testing.T) {
	t.Run("returns sequential ids", func(t *testing.T) {
		var idGen SequentialIDGenerator

		for i := 1; i <= 5; i++ {
			require.Equal(t, uint32(i), idGen.New())
		}
	})

	t.Run("returns the lowest released id first", func(t *testing.T) {
		var idGen SequentialIDGenerator

		for i := 1; i <= 5; i++ {
			idGen.New()
		}

		idGen.Reuse(4)
		idGen.Reuse(2)
		require.Equal(t, uint32(2), idGen.New())
		require.Equal(t, uint32(4), idGen.New())
		require.Equal(t, uint32(6), idGen.New())
	})

	t.Run("ignores ids that were not issued", func(t *testing.T) {
		var idGen SequentialIDGenerator
		idGen.New()

		idGen.Reuse(0)
		idGen.Reuse(42)
		require.Equal(t, uint32(2), idGen.New())
	})

	t.Run("ignores ids released twice", func(t *testing.T) {
		var idGen SequentialIDGenerator
		idGen.New()
		idGen.New()

		idGen.Reuse(1)
		idGen.Reuse(1)
		require.Equal(t, uint32(1), idGen.New())
		require.Equal(t, uint32(3), idGen.New())
	})
}
