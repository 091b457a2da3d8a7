package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParticipantAddEntity(t *testing.T) {
	p := Participant{
		ID: 1,
	}

	e := &Entity{
		ID:            1,
		ParticipantID: 1,
	}

	p.AddEntity(e)
	require.Equal(t, []uint32{1}, p.EntityIDs())
}

func TestParticipantRemoveEntity(t *testing.T) {
	p := Participant{
		ID: 1,
	}

	e := &Entity{
		ID:            1,
		ParticipantID: 1,
	}

	p.AddEntity(e)
	require.Len(t, p.EntityIDs(), 1)

	p.RemoveEntity(e)
	require.Empty(t, p.EntityIDs())
}

func TestParticipantToProtocol(t *testing.T) {
	p := &Participant{ID: 21}
	require.Equal(t, uint32(21), p.ToProtocol().ID)

	pp := ParticipantsToProtocol([]*Participant{p})
	require.Len(t, pp, 1)
	require.Equal(t, p.ID, pp[0].ID)
}
