package models

import (
	"sync"

	"github.com/aukilabs/areagrid/areagrid"
	"github.com/aukilabs/areagrid/protocol"
)

// Entity is a session object that occupies a region of the session world.
type Entity struct {
	ID            uint32
	ParticipantID uint32
	Persist       bool
	Kind          string

	// Held while the entity region changes so that the grid never sees a
	// region other than the one the entity was stored with.
	moveMutex sync.Mutex

	mutex  sync.RWMutex
	region *areagrid.Cube
}

// NewEntity creates an entity that occupies the given region.
func NewEntity(id, participantID uint32, kind string, persist bool, region *areagrid.Cube) *Entity {
	return &Entity{
		ID:            id,
		ParticipantID: participantID,
		Persist:       persist,
		Kind:          kind,
		region:        region,
	}
}

func (e *Entity) Min(axis int) int {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.region.Min(axis)
}

func (e *Entity) Extent(axis int) int {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.region.Extent(axis)
}

func (e *Entity) Dimensions() int {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if e.region == nil {
		return 0
	}
	return e.region.Dimensions()
}

// Region returns a copy of the entity region.
func (e *Entity) Region() *areagrid.Cube {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if e.region == nil {
		return nil
	}
	return areagrid.CubeOf(e.region)
}

func (e *Entity) setRegion(r *areagrid.Cube) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.region = r
}

func (e *Entity) ToProtocol() protocol.Entity {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	pe := protocol.Entity{
		ID:            e.ID,
		ParticipantID: e.ParticipantID,
		Kind:          e.Kind,
		Persist:       e.Persist,
	}

	if e.region != nil {
		pe.Min = e.region.Mins()
		pe.Extent = e.region.Extents()
	}
	return pe
}

func EntitiesToProtocol(entities []*Entity) []protocol.Entity {
	res := make([]protocol.Entity, len(entities))
	for i, e := range entities {
		res[i] = e.ToProtocol()
	}
	return res
}

// KindFilter returns a function that keeps the entities of the given kinds.
// It returns nil when kinds is empty.
func KindFilter(kinds []string) func(*Entity) bool {
	if len(kinds) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}

	return func(e *Entity) bool {
		_, ok := set[e.Kind]
		return ok
	}
}
