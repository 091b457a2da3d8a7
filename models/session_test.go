package models

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/areagrid/areagrid"
	"github.com/aukilabs/areagrid/config"
	"github.com/aukilabs/areagrid/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

var testWorld = config.World{
	Name:       "test",
	Width:      100,
	Height:     100,
	CellLength: 16,
}

func newTestSession(t *testing.T, id uint32, frameDuration time.Duration) *Session {
	session, err := NewSession(id, testWorld, frameDuration)
	require.NoError(t, err)
	t.Cleanup(session.Close)
	return session
}

func newTestEntity(id uint32, x, y, w, h int) *Entity {
	return NewEntity(id, 1, "", false, areagrid.Rect(x, y, w, h))
}

func TestNewSession(t *testing.T) {
	t.Run("session is created", func(t *testing.T) {
		session := newTestSession(t, 42, time.Second)
		require.Equal(t, uint32(42), session.ID)
		require.NotEmpty(t, session.SessionUUID)
		require.Equal(t, testWorld, session.World)

		info := session.GridDebugInfo()
		require.Equal(t, 7, info.Cols)
		require.Equal(t, 7, info.Rows)
	})

	t.Run("invalid world is rejected", func(t *testing.T) {
		world := testWorld
		world.CellLength = 12

		session, err := NewSession(42, world, time.Second)
		require.Error(t, err)
		require.True(t, errors.IsType(err, areagrid.ErrTypeInvalidArgument))
		require.Nil(t, session)
	})
}

func TestSessionNewParticipantID(t *testing.T) {
	session := newTestSession(t, 42, time.Second)
	require.NotZero(t, session.NewParticipantID())
}

func TestSessionAddParticipant(t *testing.T) {
	participant := &Participant{ID: 777}
	session := newTestSession(t, 42, time.Second)

	session.AddParticipant(participant)
	require.Len(t, session.participants, 1)
	require.Equal(t, participant, session.participants[777])
}

func TestSessionRemoveParticipant(t *testing.T) {
	participant := &Participant{ID: 777}
	session := newTestSession(t, 42, time.Second)

	session.AddParticipant(participant)
	require.Equal(t, 1, session.ParticipantCount())

	session.RemoveParticipant(participant)
	require.Zero(t, session.ParticipantCount())
}

func TestSessionGetParticipants(t *testing.T) {
	participant := &Participant{ID: 777}
	session := newTestSession(t, 42, time.Second)

	session.AddParticipant(participant)

	participants := session.GetParticipants()
	require.Len(t, participants, 1)
	require.Equal(t, participant, participants[0])
}

func TestSessionGetParticipantsByIDs(t *testing.T) {
	session := newTestSession(t, 42, time.Second)

	for i := 1; i <= 10; i++ {
		session.AddParticipant(&Participant{ID: uint32(i)})
	}

	participants := session.GetParticipantsByIDs(3, 7)
	require.Len(t, participants, 2)

	sort.Slice(participants, func(i, j int) bool {
		return participants[i].ID < participants[j].ID
	})

	require.Equal(t, uint32(3), participants[0].ID)
	require.Equal(t, uint32(7), participants[1].ID)
}

func TestSessionNewEntityID(t *testing.T) {
	session := Session{}
	require.NotZero(t, session.NewEntityID())
}

func TestSessionAddEntity(t *testing.T) {
	t.Run("entity is added and indexed", func(t *testing.T) {
		entity := newTestEntity(11, 10, 10, 20, 20)
		session := newTestSession(t, 42, time.Second)

		require.NoError(t, session.AddEntity(entity))
		require.Len(t, session.entities, 1)
		require.Equal(t, entity, session.entities[11])
		require.Equal(t, []*Entity{entity}, session.EntitiesAt(15, 15, nil))
	})

	t.Run("entity with invalid region is rejected", func(t *testing.T) {
		entity := newTestEntity(11, -10, 10, 20, 20)
		session := newTestSession(t, 42, time.Second)

		err := session.AddEntity(entity)
		require.Error(t, err)
		require.True(t, errors.IsType(err, areagrid.ErrTypeInvalidArgument))
		require.Zero(t, session.EntityCount())
		require.Zero(t, session.GridDebugInfo().Cells)
	})
}

func TestSessionRemoveEntity(t *testing.T) {
	entity := newTestEntity(11, 10, 10, 40, 40)
	session := newTestSession(t, 42, time.Second)

	require.NoError(t, session.AddEntity(entity))
	require.Equal(t, 1, session.EntityCount())

	session.RemoveEntity(entity)
	require.Zero(t, session.EntityCount())
	require.Empty(t, session.EntitiesAt(15, 15, nil))
	require.Empty(t, session.EntitiesAt(45, 45, nil))
	require.Zero(t, session.GridDebugInfo().References)

	session.RemoveEntity(entity)
}

func TestSessionMoveEntity(t *testing.T) {
	t.Run("entity is moved", func(t *testing.T) {
		entity := newTestEntity(1, 10, 10, 5, 5)
		session := newTestSession(t, 42, time.Second)
		require.NoError(t, session.AddEntity(entity))

		require.NoError(t, session.MoveEntity(entity, areagrid.Rect(60, 60, 10, 10)))
		require.Empty(t, session.EntitiesAt(12, 12, nil))
		require.Equal(t, []*Entity{entity}, session.EntitiesAt(65, 65, nil))
		require.Equal(t, []int{60, 60}, entity.Region().Mins())
		// 60..70 straddles the cell boundary at 64 on both axes.
		require.Equal(t, 4, session.GridDebugInfo().References)
	})

	t.Run("invalid region leaves the entity in place", func(t *testing.T) {
		entity := newTestEntity(1, 10, 10, 5, 5)
		session := newTestSession(t, 42, time.Second)
		require.NoError(t, session.AddEntity(entity))

		err := session.MoveEntity(entity, areagrid.Rect(60, 60, -10, 10))
		require.Error(t, err)
		require.True(t, errors.IsType(err, areagrid.ErrTypeInvalidArgument))
		require.Equal(t, []*Entity{entity}, session.EntitiesAt(12, 12, nil))
		require.Equal(t, []int{10, 10}, entity.Region().Mins())
	})

	t.Run("removed entity is not moved", func(t *testing.T) {
		entity := newTestEntity(1, 10, 10, 5, 5)
		session := newTestSession(t, 42, time.Second)
		require.NoError(t, session.AddEntity(entity))
		session.RemoveEntity(entity)

		err := session.MoveEntity(entity, areagrid.Rect(60, 60, 10, 10))
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeEntityNotFound))
		require.Empty(t, session.EntitiesAt(65, 65, nil))
	})
}

func TestSessionConcurrentMoves(t *testing.T) {
	session := newTestSession(t, 42, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		entity := newTestEntity(uint32(i+1), 0, 0, 5, 5)
		require.NoError(t, session.AddEntity(entity))

		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if err := session.MoveEntity(entity, areagrid.Rect(j%90, (j*7)%90, 8, 8)); err != nil {
					t.Error(err)
					return
				}
			}
		}()

		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := session.QueryEntities(areagrid.Rect(0, 0, 99, 99), 8, nil); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	res, err := session.QueryEntities(areagrid.Rect(0, 0, 99, 99), 8, nil)
	require.NoError(t, err)
	require.Len(t, res, 8)
	// The last move spans 2x2 cells for every entity.
	require.Equal(t, 32, session.GridDebugInfo().References)
}

func TestSessionQueryEntities(t *testing.T) {
	session := newTestSession(t, 42, time.Second)

	tree := NewEntity(1, 1, "tree", false, areagrid.Rect(0, 0, 10, 10))
	rock := NewEntity(2, 1, "rock", false, areagrid.Rect(5, 5, 10, 10))
	far := NewEntity(3, 1, "tree", false, areagrid.Rect(80, 80, 10, 10))
	for _, e := range []*Entity{tree, rock, far} {
		require.NoError(t, session.AddEntity(e))
	}

	res, err := session.QueryEntities(areagrid.Rect(0, 0, 20, 20), 2, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []*Entity{tree, rock}, res)

	res, err = session.QueryEntities(areagrid.Rect(0, 0, 20, 20), 2, KindFilter([]string{"tree"}))
	require.NoError(t, err)
	require.Equal(t, []*Entity{tree}, res)

	require.Equal(t, []*Entity{rock}, session.EntitiesAt(12, 12, KindFilter([]string{"rock"})))
	require.Empty(t, session.EntitiesAt(12, 12, KindFilter([]string{"tree"})))

	_, err = session.QueryEntities(areagrid.Rect(-1, 0, 20, 20), 2, nil)
	require.Error(t, err)
}

func TestSessionEntityByID(t *testing.T) {
	session := newTestSession(t, 42, time.Second)

	t.Run("entity is returned", func(t *testing.T) {
		entity := newTestEntity(1, 0, 0, 1, 1)
		require.NoError(t, session.AddEntity(entity))

		rEntity, ok := session.EntityByID(entity.ID)
		require.True(t, ok)
		require.Equal(t, entity, rEntity)
	})

	t.Run("entity is not returned", func(t *testing.T) {
		rEntity, ok := session.EntityByID(2)
		require.False(t, ok)
		require.Nil(t, rEntity)
	})
}

func TestSessionEntities(t *testing.T) {
	entity := newTestEntity(1, 0, 0, 1, 1)
	session := newTestSession(t, 42, time.Second)

	require.NoError(t, session.AddEntity(entity))

	entities := session.Entities()
	require.Len(t, entities, 1)
	require.Equal(t, entity, entities[0])
}

func TestSessionModuleState(t *testing.T) {
	t.Run("module state is found", func(t *testing.T) {
		s := newTestSession(t, 42, time.Second)

		stateA := 42
		s.SetModuleState("testModule", stateA)

		stateB, ok := s.ModuleState("testModule")
		require.True(t, ok)
		require.Equal(t, stateA, stateB)
	})

	t.Run("module state is not found", func(t *testing.T) {
		s := newTestSession(t, 42, time.Second)

		state, ok := s.ModuleState("testModule")
		require.False(t, ok)
		require.Nil(t, state)
	})
}

func TestSessionBroadcast(t *testing.T) {
	t.Run("msg from participant A is broadcasted to participant B", func(t *testing.T) {
		var sendACalled bool
		participantA := &Participant{
			ID: 1,
			Responder: testResponseSender{
				sendMsg: func(_ protocol.Msg) {
					sendACalled = true
				},
			},
		}

		var received protocol.Msg
		participantB := &Participant{
			ID: 2,
			Responder: testResponseSender{
				sendMsg: func(msg protocol.Msg) {
					received = msg
				},
			},
		}

		session := newTestSession(t, 42, time.Second)
		session.AddParticipant(participantA)
		session.AddParticipant(participantB)

		session.Broadcast(participantA, protocol.EntityDeleteBroadcast{EntityID: 3})
		require.False(t, sendACalled)
		require.Equal(t, protocol.MsgTypeEntityDeleteBroadcast, received.Type)

		var broadcast protocol.EntityDeleteBroadcast
		require.NoError(t, received.DataTo(&broadcast))
		require.Equal(t, uint32(3), broadcast.EntityID)
	})
}

func TestBroadcastTo(t *testing.T) {
	t.Run("message is not broadcasted to sender", func(t *testing.T) {
		var sendACalled bool
		participantA := &Participant{
			ID: 1,
			Responder: testResponseSender{
				sendMsg: func(_ protocol.Msg) {
					sendACalled = true
				},
			},
		}

		session := newTestSession(t, 42, time.Second)
		session.AddParticipant(participantA)

		session.BroadcastTo(participantA, protocol.SyncClock{}, participantA.ID)
		require.False(t, sendACalled)
	})

	t.Run("message is broadcasted to participant B once", func(t *testing.T) {
		var sendACalled bool
		participantA := &Participant{
			ID: 1,
			Responder: testResponseSender{
				sendMsg: func(_ protocol.Msg) {
					sendACalled = true
				},
			},
		}

		var sendBCalls int
		participantB := &Participant{
			ID: 2,
			Responder: testResponseSender{
				sendMsg: func(_ protocol.Msg) {
					sendBCalls++
				},
			},
		}

		session := newTestSession(t, 42, time.Second)
		session.AddParticipant(participantA)
		session.AddParticipant(participantB)

		session.BroadcastTo(participantA, protocol.SyncClock{},
			participantB.ID,
			participantB.ID,
			participantB.ID,
		)
		require.False(t, sendACalled)
		require.Equal(t, 1, sendBCalls)
	})

	t.Run("message to unknown participant is skipped", func(t *testing.T) {
		var sendACalled bool
		participantA := &Participant{
			ID: 1,
			Responder: testResponseSender{
				sendMsg: func(_ protocol.Msg) {
					sendACalled = true
				},
			},
		}

		session := newTestSession(t, 42, time.Second)
		session.AddParticipant(participantA)

		session.BroadcastTo(participantA, protocol.SyncClock{}, 42)
		require.False(t, sendACalled)
	})
}

func newTestSessionStore() *SessionStore {
	return &SessionStore{
		ServerID:     "ted",
		Worlds:       config.Worlds{testWorld.Name: testWorld},
		DefaultWorld: testWorld.Name,
	}
}

func TestSessionStoreNewID(t *testing.T) {
	sessions := SessionStore{}
	require.NotZero(t, sessions.NewID())
}

func TestSessionStoreWorld(t *testing.T) {
	sessions := newTestSessionStore()

	w, ok := sessions.World("")
	require.True(t, ok)
	require.Equal(t, testWorld, w)

	w, ok = sessions.World("test")
	require.True(t, ok)
	require.Equal(t, testWorld, w)

	_, ok = sessions.World("unknown")
	require.False(t, ok)
}

func TestSessionStoreAdd(t *testing.T) {
	sessions := newTestSessionStore()
	session := newTestSession(t, 42, time.Second)

	err := sessions.Add(context.Background(), session)
	require.NoError(t, err)
	require.Equal(t, session, sessions.sessions[sessions.GlobalSessionID(session.ID)])
	require.Equal(t, "tedx2a", sessions.GlobalSessionID(session.ID))
}

func TestSessionStoreRemove(t *testing.T) {
	t.Run("session is successfully removed", func(t *testing.T) {
		sessions := newTestSessionStore()
		ctx := context.Background()

		session := newTestSession(t, 42, time.Second)
		err := sessions.Add(ctx, session)
		require.NoError(t, err)
		require.Len(t, sessions.sessions, 1)

		sessions.Remove(ctx, session)
		require.Empty(t, sessions.sessions)

		sessions.Remove(ctx, session)
	})

	t.Run("session id is reused", func(t *testing.T) {
		sessions := newTestSessionStore()
		ctx := context.Background()

		sessionID := sessions.NewID()
		session := newTestSession(t, sessionID, time.Second)
		err := sessions.Add(ctx, session)
		require.NoError(t, err)

		sessions.Remove(ctx, session)
		require.Empty(t, sessions.sessions)

		nextSessionID := sessions.NewID()
		require.Equal(t, sessionID, nextSessionID)
	})
}

func TestSessionStoreGetByGlobalID(t *testing.T) {
	sessions := newTestSessionStore()
	ctx := context.Background()

	t.Run("session is retrieved", func(t *testing.T) {
		session := newTestSession(t, 42, time.Second)
		err := sessions.Add(ctx, session)
		require.NoError(t, err)

		res, ok := sessions.GetByGlobalID(sessions.GlobalSessionID(session.ID))
		require.True(t, ok)
		require.Equal(t, session, res)
	})

	t.Run("session is not retrieved", func(t *testing.T) {
		res, ok := sessions.GetByGlobalID(sessions.GlobalSessionID(84))
		require.False(t, ok)
		require.Nil(t, res)
	})
}

func TestSessionStoreList(t *testing.T) {
	sessions := newTestSessionStore()
	ctx := context.Background()

	for _, id := range []uint32{3, 1, 2} {
		require.NoError(t, sessions.Add(ctx, newTestSession(t, id, time.Second)))
	}

	list := sessions.List()
	require.Len(t, list, 3)
	for i, s := range list {
		require.Equal(t, uint32(i+1), s.ID)
	}
}

func TestSessionHandleFrame(t *testing.T) {
	session := newTestSession(t, 42, time.Millisecond*5)

	cancel := session.HandleFrame(func() {})
	require.Len(t, session.frameHandlers, 1)
	defer cancel()

	cancel()
	require.Empty(t, session.frameHandlers)
}

func TestSessionStartDispatchFrame(t *testing.T) {
	session, err := NewSession(42, testWorld, time.Millisecond*5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var once sync.Once
	wg.Add(1)

	go session.StartDispatchFrames()

	session.HandleFrame(func() {
		once.Do(wg.Done)
	})

	wg.Wait()
	session.Close()
}

type testResponseSender struct {
	send    func(uint32, protocol.Payload)
	sendMsg func(protocol.Msg)
}

func (r testResponseSender) Send(requestID uint32, p protocol.Payload) {
	if r.send != nil {
		r.send(requestID, p)
	}
}

func (r testResponseSender) SendMsg(msg protocol.Msg) {
	if r.sendMsg != nil {
		r.sendMsg(msg)
	}
}
