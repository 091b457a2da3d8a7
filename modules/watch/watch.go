// Package watch reports, on every session frame, the entities that entered or
// left the regions watched by a client.
package watch

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/aukilabs/areagrid/areagrid"
	"github.com/aukilabs/areagrid/models"
	"github.com/aukilabs/areagrid/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// MaxWatches is the maximum number of watches a connection can register.
	MaxWatches = 32

	// MaxSessionWatches is the maximum number of watches registered by all the
	// connections of a session.
	MaxSessionWatches = 1024

	moduleName = "watch"
)

// sessionState is shared by the watch modules of all the participants of a
// session.
type sessionState struct {
	watches atomic.Int64
}

var sessionStateMutex sync.Mutex

func sessionStateOf(s *models.Session) *sessionState {
	sessionStateMutex.Lock()
	defer sessionStateMutex.Unlock()

	if state, ok := s.ModuleState(moduleName); ok {
		return state.(*sessionState)
	}

	state := &sessionState{}
	s.SetModuleState(moduleName, state)
	return state
}

type watch struct {
	id      uint32
	region  *areagrid.Cube
	keep    func(*models.Entity) bool
	members map[uint32]struct{}
}

// Module is a per connection watch handler.
type Module struct {
	currentSession     *models.Session
	currentParticipant *models.Participant
	sessionState       *sessionState

	watchIDs models.SequentialIDGenerator
	watches  map[uint32]*watch
}

func (m *Module) Name() string {
	return moduleName
}

func (m *Module) Init(s *models.Session, p *models.Participant) {
	m.currentSession = s
	m.currentParticipant = p
	m.sessionState = sessionStateOf(s)
	m.watches = make(map[uint32]*watch)
}

func (m *Module) HandleMsg(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	switch msg.Type {
	case protocol.MsgTypeWatchRequest:
		return m.HandleWatch(ctx, respond, msg)

	case protocol.MsgTypeUnwatchRequest:
		return m.HandleUnwatch(ctx, respond, msg)

	default:
		return protocol.ErrMsgSkip
	}
}

func (m *Module) HandleWatch(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.WatchRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	session := m.currentSession
	if session == nil {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	if len(m.watches) >= MaxWatches {
		respond.Send(msg.RequestID, protocol.ErrorResponse{
			Code: protocol.ErrorCodeBadRequest,
		})
		return nil
	}

	region, err := areagrid.NewCube(req.Min, req.Extent)
	if err == nil {
		err = session.ValidateRegion(region)
	}
	if err != nil {
		respond.Send(msg.RequestID, protocol.ErrorResponse{
			Code: protocol.ErrorCodeInvalidArgument,
		})
		return nil
	}

	if m.sessionState.watches.Add(1) > MaxSessionWatches {
		m.sessionState.watches.Add(-1)
		respond.Send(msg.RequestID, protocol.ErrorResponse{
			Code: protocol.ErrorCodeBadRequest,
		})
		return nil
	}

	w := &watch{
		id:      m.watchIDs.New(),
		region:  region,
		keep:    models.KindFilter(req.Kinds),
		members: make(map[uint32]struct{}),
	}
	m.watches[w.id] = w

	respond.Send(msg.RequestID, protocol.WatchResponse{
		WatchID: w.id,
	})
	return nil
}

func (m *Module) HandleUnwatch(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.UnwatchRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if m.currentSession == nil {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	if _, ok := m.watches[req.WatchID]; !ok {
		respond.Send(msg.RequestID, protocol.ErrorResponse{
			Code: protocol.ErrorCodeNotFound,
		})
		return nil
	}

	delete(m.watches, req.WatchID)
	m.watchIDs.Reuse(req.WatchID)
	m.sessionState.watches.Add(-1)

	respond.Send(msg.RequestID, protocol.UnwatchResponse{})
	return nil
}

// HandleFrame re-evaluates every watch and sends an update for each watch
// whose membership changed since the previous frame.
func (m *Module) HandleFrame(ctx context.Context, respond protocol.ResponseSender) error {
	session := m.currentSession
	if session == nil {
		return nil
	}

	for _, id := range m.watchIDsSorted() {
		w := m.watches[id]

		entities, err := session.QueryEntities(w.region, len(w.members), w.keep)
		if err != nil {
			return errors.New("evaluating watch failed").
				WithTag("watch_id", w.id).
				Wrap(err)
		}

		update := protocol.WatchUpdate{WatchID: w.id}
		current := make(map[uint32]struct{}, len(entities))

		for _, e := range entities {
			current[e.ID] = struct{}{}
			if _, ok := w.members[e.ID]; !ok {
				update.Entered = append(update.Entered, e.ToProtocol())
			}
		}

		for id := range w.members {
			if _, ok := current[id]; !ok {
				update.Left = append(update.Left, id)
			}
		}
		w.members = current

		if len(update.Entered) == 0 && len(update.Left) == 0 {
			continue
		}

		sort.Slice(update.Entered, func(i, j int) bool {
			return update.Entered[i].ID < update.Entered[j].ID
		})
		sort.Slice(update.Left, func(i, j int) bool {
			return update.Left[i] < update.Left[j]
		})

		respond.Send(0, update)
	}
	return nil
}

func (m *Module) HandleDisconnect() {
	if m.sessionState != nil {
		m.sessionState.watches.Add(-int64(len(m.watches)))
	}

	m.sessionState = nil
	m.currentSession = nil
	m.currentParticipant = nil
	m.watches = nil
}

func (m *Module) watchIDsSorted() []uint32 {
	ids := make([]uint32, 0, len(m.watches))
	for id := range m.watches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids
}
