package models

import (
	"testing"

	"github.com/aukilabs/areagrid/areagrid"
	"github.com/aukilabs/areagrid/protocol"
	"github.com/stretchr/testify/require"
)

func TestEntityRegion(t *testing.T) {
	e := NewEntity(1, 11, "tree", true, areagrid.Rect(1, 2, 3, 4))

	require.Equal(t, 2, e.Dimensions())
	require.Equal(t, 1, e.Min(0))
	require.Equal(t, 4, e.Extent(1))

	r := e.Region()
	require.Equal(t, []int{1, 2}, r.Mins())

	e.setRegion(areagrid.Rect(5, 6, 7, 8))
	require.Equal(t, 5, e.Min(0))
	require.Equal(t, []int{1, 2}, r.Mins())
}

func TestEntityWithoutRegion(t *testing.T) {
	var e Entity
	require.Zero(t, e.Dimensions())
	require.Nil(t, e.Region())
	require.Nil(t, e.ToProtocol().Min)
}

func TestEntityToProtocol(t *testing.T) {
	e := NewEntity(1, 11, "tree", true, areagrid.Rect(1, 2, 3, 4))

	require.Equal(t, protocol.Entity{
		ID:            1,
		ParticipantID: 11,
		Kind:          "tree",
		Persist:       true,
		Min:           []int{1, 2},
		Extent:        []int{3, 4},
	}, e.ToProtocol())
}

func TestEntitiesToProtocol(t *testing.T) {
	e := NewEntity(1, 11, "", false, areagrid.Rect(1, 2, 3, 4))

	pe := EntitiesToProtocol([]*Entity{e})
	require.Len(t, pe, 1)
	require.Equal(t, e.ID, pe[0].ID)
}

func TestKindFilter(t *testing.T) {
	require.Nil(t, KindFilter(nil))

	keep := KindFilter([]string{"tree", "rock"})
	require.True(t, keep(&Entity{Kind: "tree"}))
	require.True(t, keep(&Entity{Kind: "rock"}))
	require.False(t, keep(&Entity{Kind: "bush"}))
	require.False(t, keep(&Entity{}))
}
