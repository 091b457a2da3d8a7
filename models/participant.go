package models

import (
	"sync"

	"github.com/aukilabs/areagrid/protocol"
)

// A session participant.
type Participant struct {
	ID        uint32
	Responder protocol.ResponseSender

	mutex     sync.Mutex
	entityIDs map[uint32]struct{}
}

func (p *Participant) AddEntity(e *Entity) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.entityIDs == nil {
		p.entityIDs = make(map[uint32]struct{})
	}
	p.entityIDs[e.ID] = struct{}{}
}

func (p *Participant) RemoveEntity(e *Entity) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	delete(p.entityIDs, e.ID)
}

// EntityIDs returns the ids of the entities created by the participant.
func (p *Participant) EntityIDs() []uint32 {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	ids := make([]uint32, 0, len(p.entityIDs))
	for id := range p.entityIDs {
		ids = append(ids, id)
	}
	return ids
}

func (p *Participant) ToProtocol() protocol.Participant {
	return protocol.Participant{
		ID: p.ID,
	}
}

func ParticipantsToProtocol(participants []*Participant) []protocol.Participant {
	res := make([]protocol.Participant, len(participants))
	for i, p := range participants {
		res[i] = p.ToProtocol()
	}
	return res
}
