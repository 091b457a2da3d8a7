package models

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/areagrid/areagrid"
	"github.com/aukilabs/areagrid/config"
	"github.com/aukilabs/areagrid/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

// Session represents a session that contains entities and participants who can
// communicate between each other. Entities are indexed by the session grid.
type Session struct {
	ID          uint32
	SessionUUID string
	World       config.World
	CreatedAt   time.Time

	grid *areagrid.Grid[*Entity]

	participantIDs   SequentialIDGenerator
	participantMutex sync.RWMutex
	participants     map[uint32]*Participant

	entityIDs   SequentialIDGenerator
	entityMutex sync.RWMutex
	entities    map[uint32]*Entity

	moduleStates map[string]any
	moduleMutex  sync.RWMutex

	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func()
	frameMutex      sync.RWMutex

	closeOnce sync.Once
}

// NewSession creates a session whose grid covers the given world.
func NewSession(id uint32, world config.World, frameDuration time.Duration) (*Session, error) {
	grid, err := areagrid.New[*Entity](world.Width, world.Height, world.CellLength)
	if err != nil {
		return nil, errors.New("creating session grid failed").
			WithTag("world", world.Name).
			Wrap(err)
	}

	return &Session{
		ID:             id,
		SessionUUID:    uuid.New().String(),
		World:          world,
		CreatedAt:      time.Now(),
		grid:           grid,
		closeFrameChan: make(chan struct{}, 1),
		frameTicker:    time.NewTicker(frameDuration),
		participants:   make(map[uint32]*Participant),
		entities:       make(map[uint32]*Entity),
		moduleStates:   make(map[string]any),
		frameHandlers:  make(map[uint32]func()),
	}, nil
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.frameTicker.Stop()
		s.closeFrameChan <- struct{}{}
	})
}

func (s *Session) NewParticipantID() uint32 {
	return s.participantIDs.New()
}

func (s *Session) AddParticipant(p *Participant) {
	s.participantMutex.Lock()
	defer s.participantMutex.Unlock()

	s.participants[p.ID] = p
}

func (s *Session) RemoveParticipant(p *Participant) {
	s.participantMutex.Lock()
	defer s.participantMutex.Unlock()

	delete(s.participants, p.ID)
}

func (s *Session) GetParticipants() []*Participant {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	participants := make([]*Participant, 0, len(s.participants))
	for _, p := range s.participants {
		participants = append(participants, p)
	}
	return participants
}

func (s *Session) GetParticipantsByIDs(ids ...uint32) []*Participant {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	participants := make([]*Participant, 0, len(ids))
	for _, id := range ids {
		p, ok := s.participants[id]
		if ok {
			participants = append(participants, p)
		}
	}
	return participants
}

func (s *Session) ParticipantCount() int {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	return len(s.participants)
}

func (s *Session) NewEntityID() uint32 {
	return s.entityIDs.New()
}

// AddEntity stores the entity and indexes its region. An invalid region
// leaves the session unchanged.
func (s *Session) AddEntity(e *Entity) error {
	if err := s.grid.Put(e); err != nil {
		return errors.New("adding entity to grid failed").
			WithTag("entity_id", e.ID).
			Wrap(err)
	}

	s.entityMutex.Lock()
	s.entities[e.ID] = e
	s.entityMutex.Unlock()

	instrumentEntityGauge(s.World.Name, 1)
	return nil
}

// RemoveEntity removes the entity from the session and from the grid.
func (s *Session) RemoveEntity(e *Entity) {
	s.entityMutex.Lock()
	_, ok := s.entities[e.ID]
	delete(s.entities, e.ID)
	s.entityMutex.Unlock()

	if !ok {
		return
	}

	e.moveMutex.Lock()
	defer e.moveMutex.Unlock()

	if err := s.grid.Remove(e); err != nil {
		logs.WithTag("session_id", s.ID).
			WithTag("entity_id", e.ID).
			Warn(errors.New("removing entity from grid failed").Wrap(err))
	}

	instrumentEntityGauge(s.World.Name, -1)
}

// MoveEntity changes the region of an entity. The new region is validated
// before the entity leaves its current cells.
func (s *Session) MoveEntity(e *Entity, region *areagrid.Cube) error {
	if err := s.grid.Validate(region); err != nil {
		return err
	}

	e.moveMutex.Lock()
	defer e.moveMutex.Unlock()

	if current, ok := s.EntityByID(e.ID); !ok || current != e {
		return errors.New("entity is not in the session").
			WithType(ErrTypeEntityNotFound).
			WithTag("entity_id", e.ID)
	}

	if err := s.grid.Remove(e); err != nil {
		return errors.New("removing entity from grid failed").
			WithTag("entity_id", e.ID).
			Wrap(err)
	}

	e.setRegion(region)

	if err := s.grid.Put(e); err != nil {
		return errors.New("adding entity to grid failed").
			WithTag("entity_id", e.ID).
			Wrap(err)
	}

	instrumentCountEntityMove(s.World.Name)
	return nil
}

func (s *Session) EntityByID(id uint32) (*Entity, bool) {
	s.entityMutex.RLock()
	defer s.entityMutex.RUnlock()

	e, ok := s.entities[id]
	return e, ok
}

func (s *Session) Entities() []*Entity {
	s.entityMutex.RLock()
	defer s.entityMutex.RUnlock()

	entities := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		entities = append(entities, e)
	}
	return entities
}

func (s *Session) EntityCount() int {
	s.entityMutex.RLock()
	defer s.entityMutex.RUnlock()

	return len(s.entities)
}

// EntitiesAt returns the entities that contain the point (x, y). keep filters
// the results when not nil.
func (s *Session) EntitiesAt(x, y int, keep func(*Entity) bool) []*Entity {
	entities := s.grid.At(x, y)
	if keep == nil {
		return entities
	}

	res := entities[:0]
	for _, e := range entities {
		if keep(e) {
			res = append(res, e)
		}
	}
	return res
}

// QueryEntities returns the entities that overlap q. keep filters the results
// when not nil.
func (s *Session) QueryEntities(q areagrid.Region, sizeHint int, keep func(*Entity) bool) ([]*Entity, error) {
	start := time.Now()
	defer func() {
		instrumentGridQuery(s.World.Name, time.Since(start).Seconds())
	}()

	return s.grid.QueryFunc(q, sizeHint, keep)
}

// ValidateRegion checks that r can be stored in the session grid.
func (s *Session) ValidateRegion(r areagrid.Region) error {
	return s.grid.Validate(r)
}

// GridDebugInfo returns the debug info of the session grid.
func (s *Session) GridDebugInfo() areagrid.DebugInfo {
	return s.grid.DebugInfo()
}

// GridMemSize returns the approximate memory used by the session grid.
func (s *Session) GridMemSize() int {
	return s.grid.MemSize()
}

func (s *Session) Broadcast(sender *Participant, p protocol.Payload) {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	msg, err := protocol.MsgFromPayload(0, p)
	if err != nil {
		logs.WithTag("message", p).Debug(err)
		return
	}

	for _, p := range s.participants {
		if p == sender {
			continue
		}
		p.Responder.SendMsg(msg)
	}
}

func (s *Session) BroadcastTo(sender *Participant, p protocol.Payload, participantIds ...uint32) {
	participants := s.GetParticipantsByIDs(participantIds...)
	isParticipantHandled := make(map[uint32]struct{}, len(participantIds))

	msg, err := protocol.MsgFromPayload(0, p)
	if err != nil {
		logs.WithTag("message", p).Debug(err)
		return
	}

	for _, p := range participants {
		if p == sender {
			continue
		}

		if _, ok := isParticipantHandled[p.ID]; ok {
			continue
		}
		isParticipantHandled[p.ID] = struct{}{}

		p.Responder.SendMsg(msg)
	}
}

func (s *Session) SetModuleState(moduleName string, state any) {
	s.moduleMutex.Lock()
	defer s.moduleMutex.Unlock()

	s.moduleStates[moduleName] = state
}

func (s *Session) ModuleState(moduleName string) (any, bool) {
	s.moduleMutex.RLock()
	defer s.moduleMutex.RUnlock()

	state, ok := s.moduleStates[moduleName]
	return state, ok
}

func (s *Session) HandleFrame(h func()) (cancel func()) {
	s.frameMutex.Lock()
	defer s.frameMutex.Unlock()

	id := s.frameHandlerIDs.New()
	s.frameHandlers[id] = h

	return func() {
		s.frameMutex.Lock()
		defer s.frameMutex.Unlock()

		delete(s.frameHandlers, id)
		s.frameHandlerIDs.Reuse(id)
	}
}

func (s *Session) StartDispatchFrames() {
	s.startFrameOnce.Do(func() {
		for {
			select {
			case <-s.closeFrameChan:
				return

			case <-s.frameTicker.C:
				s.frameMutex.RLock()
				for _, h := range s.frameHandlers {
					h()
				}
				s.frameMutex.RUnlock()
			}
		}
	})
}

// SessionStore holds the sessions of the server and the worlds they can be
// created in.
type SessionStore struct {
	// The id of the server, used as the prefix of global session ids.
	ServerID string

	// The worlds sessions can be created in.
	Worlds config.Worlds

	// The world used when a join request does not name one.
	DefaultWorld string

	initOnce sync.Once
	mutex    sync.RWMutex
	sessions map[string]*Session
	ids      SequentialIDGenerator
}

func (s *SessionStore) init() {
	s.sessions = map[string]*Session{}

	if s.ServerID == "" {
		s.ServerID = "areagrid"
	}
}

func (s *SessionStore) NewID() uint32 {
	return s.ids.New()
}

// World returns the world with the given name. An empty name returns the
// default world.
func (s *SessionStore) World(name string) (config.World, bool) {
	if name == "" {
		name = s.DefaultWorld
	}
	return s.Worlds.Get(name)
}

func (s *SessionStore) Add(ctx context.Context, session *Session) error {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.sessions[s.GlobalSessionID(session.ID)] = session

	instrumentIncreaseSessionGauge(session.World.Name)
	instrumentCountSession(session.World.Name)
	return nil
}

func (s *SessionStore) Remove(ctx context.Context, session *Session) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id := s.GlobalSessionID(session.ID)
	if _, ok := s.sessions[id]; !ok {
		return
	}

	delete(s.sessions, id)
	session.Close()

	s.ids.Reuse(session.ID)

	instrumentDecreaseSessionGauge(session.World.Name)
	instrumentEntityGauge(session.World.Name, -float64(session.EntityCount()))
}

func (s *SessionStore) GetByGlobalID(v string) (*Session, bool) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.sessions[v]
	return session, ok
}

// List returns the sessions ordered by id.
func (s *SessionStore) List() []*Session {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mutex.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})
	return sessions
}

func (s *SessionStore) GlobalSessionID(sessionID uint32) string {
	s.initOnce.Do(s.init)
	return fmt.Sprintf("%sx%x", s.ServerID, sessionID)
}
