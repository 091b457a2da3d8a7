package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/areagrid/areagrid"
	"github.com/aukilabs/areagrid/featureflag"
	"github.com/aukilabs/areagrid/models"
	"github.com/aukilabs/areagrid/modules"
	"github.com/aukilabs/areagrid/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"golang.org/x/net/websocket"
)

// RealtimeHandler represents a service that manages multiple client connections
// and relays their actions in realtime.
type RealtimeHandler struct {
	// The interval between each sync clock message sent to the connected
	// client.
	ClientSyncClockInterval time.Duration

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The duration of a frame.
	FrameDuration time.Duration

	// The store that contains all the server sessions.
	Sessions *models.SessionStore

	// The modules that expand the server features.
	Modules []modules.Module

	FeatureFlags featureflag.FeatureFlag

	conn               *websocket.Conn
	currentSession     *models.Session
	currentParticipant *models.Participant

	stopFrameHandling func()

	clientID string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	if req := conn.Request(); req != nil {
		h.clientID = req.Header.Get(protocol.HeaderClientID)
	}

	h.conn = conn
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	respond.Send(msg.RequestID, protocol.PingResponse{})
	return nil
}

func (h *RealtimeHandler) HandleParticipantJoin(ctx context.Context, handleFrame func(), respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.ParticipantJoinRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if h.currentSession != nil && h.Sessions.GlobalSessionID(h.currentSession.ID) == req.SessionID {
		sendError(respond, msg.RequestID, protocol.ErrorCodeSessionAlreadyJoined)
		return nil
	}

	if h.currentParticipant != nil {
		h.leaveSession()
	}

	session, ok := h.Sessions.GetByGlobalID(req.SessionID)
	if !ok && req.SessionID != "" {
		sendError(respond, msg.RequestID, protocol.ErrorCodeNotFound)
		return nil
	}

	if !ok {
		world, ok := h.Sessions.World(req.World)
		if !ok {
			sendError(respond, msg.RequestID, protocol.ErrorCodeNotFound)
			return nil
		}

		var err error
		session, err = models.NewSession(h.Sessions.NewID(), world, h.FrameDuration)
		if err != nil {
			sendError(respond, msg.RequestID, protocol.ErrorCodeInternalServerError)
			return errors.New("creating session failed").Wrap(err)
		}

		if err := h.Sessions.Add(ctx, session); err != nil {
			session.Close()
			sendError(respond, msg.RequestID, protocol.ErrorCodeInternalServerError)
			return nil
		}
		go session.StartDispatchFrames()
	}

	participant := &models.Participant{
		ID:        session.NewParticipantID(),
		Responder: respond,
	}

	session.AddParticipant(participant)
	h.stopFrameHandling = session.HandleFrame(handleFrame)

	respond.Send(msg.RequestID, protocol.ParticipantJoinResponse{
		SessionID:     h.Sessions.GlobalSessionID(session.ID),
		SessionUUID:   session.SessionUUID,
		ParticipantID: participant.ID,
		World:         session.World.Name,
	})

	h.currentSession = session
	h.currentParticipant = participant

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableSessionState, func() {
		respond.Send(0, protocol.SessionState{
			Participants: models.ParticipantsToProtocol(session.GetParticipants()),
			Entities:     models.EntitiesToProtocol(session.Entities()),
		})
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableParticipantJoinBroadcast, func() {
		session.Broadcast(participant, protocol.ParticipantJoinBroadcast{
			ParticipantID: participant.ID,
		})
	})

	for _, m := range h.Modules {
		m.Init(session, participant)
	}

	return nil
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
	if h.currentParticipant != nil {
		h.leaveSession()
	}
}

func (h *RealtimeHandler) HandleEntityAdd(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.EntityAddRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant := h.currentParticipant
	session := h.currentSession
	if participant == nil || session == nil {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	region, err := areagrid.NewCube(req.Min, req.Extent)
	if err != nil {
		sendError(respond, msg.RequestID, protocol.ErrorCodeInvalidArgument)
		return nil
	}

	entity := models.NewEntity(
		session.NewEntityID(),
		participant.ID,
		req.Kind,
		req.Persist,
		region,
	)

	if err := session.AddEntity(entity); err != nil {
		sendError(respond, msg.RequestID, protocol.ErrorCodeInvalidArgument)
		return nil
	}
	participant.AddEntity(entity)

	respond.Send(msg.RequestID, protocol.EntityAddResponse{
		EntityID: entity.ID,
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableEntityAddBroadcast, func() {
		session.Broadcast(participant, protocol.EntityAddBroadcast{
			Entity: entity.ToProtocol(),
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleEntityDelete(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.EntityDeleteRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant := h.currentParticipant
	session := h.currentSession
	if participant == nil || session == nil {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	entity, ok := session.EntityByID(req.EntityID)
	if !ok {
		sendError(respond, msg.RequestID, protocol.ErrorCodeNotFound)
		return nil
	}

	if entity.ParticipantID != participant.ID {
		sendError(respond, msg.RequestID, protocol.ErrorCodeUnauthorized)
		return nil
	}

	session.RemoveEntity(entity)
	participant.RemoveEntity(entity)

	respond.Send(msg.RequestID, protocol.EntityDeleteResponse{})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableEntityDeleteBroadcast, func() {
		session.Broadcast(participant, protocol.EntityDeleteBroadcast{
			EntityID: entity.ID,
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleEntityMove(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.EntityMoveRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant := h.currentParticipant
	session := h.currentSession
	if participant == nil || session == nil {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	entity, ok := session.EntityByID(req.EntityID)
	if !ok {
		sendError(respond, msg.RequestID, protocol.ErrorCodeNotFound)
		return nil
	}

	if entity.ParticipantID != participant.ID {
		sendError(respond, msg.RequestID, protocol.ErrorCodeUnauthorized)
		return nil
	}

	region, err := areagrid.NewCube(req.Min, req.Extent)
	if err != nil {
		sendError(respond, msg.RequestID, protocol.ErrorCodeInvalidArgument)
		return nil
	}

	if err := session.MoveEntity(entity, region); err != nil {
		code := protocol.ErrorCodeInvalidArgument
		if errors.IsType(err, models.ErrTypeEntityNotFound) {
			code = protocol.ErrorCodeNotFound
		}
		sendError(respond, msg.RequestID, code)
		return nil
	}

	respond.Send(msg.RequestID, protocol.EntityMoveResponse{})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableEntityMoveBroadcast, func() {
		session.Broadcast(participant, protocol.EntityMoveBroadcast{
			Entity: entity.ToProtocol(),
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleWithModule(ctx context.Context, m modules.Module, respond protocol.ResponseSender, msg protocol.Msg) error {
	if h.CurrentParticipant() == nil || h.CurrentSession() == nil {
		return protocol.ErrMsgSkip
	}

	err := m.HandleMsg(ctx, respond, msg)
	if errors.IsType(err, protocol.ErrTypeMsgSkip) || errors.IsType(err, protocol.ErrTypeBadMessage) {
		return err
	}
	if err != nil {
		return errors.New("handling message with module failed").
			WithTag("module", m.Name()).
			Wrap(err)
	}
	return nil
}

func (h *RealtimeHandler) HandleFrame(ctx context.Context, respond protocol.ResponseSender) error {
	if h.CurrentParticipant() == nil || h.CurrentSession() == nil {
		return nil
	}

	for _, m := range h.Modules {
		if err := m.HandleFrame(ctx, respond); err != nil {
			return errors.New("handling frame with module failed").
				WithTag("module", m.Name()).
				Wrap(err)
		}
	}
	return nil
}

func (h *RealtimeHandler) SendSyncClock(ctx context.Context, respond protocol.ResponseSender) error {
	respond.Send(0, protocol.SyncClock{})
	return nil
}

func (h *RealtimeHandler) Receiver() protocol.Receiver {
	return func() (protocol.Msg, int, error) {
		return protocol.Receive(h.conn)
	}
}

func (h *RealtimeHandler) Sender() protocol.Sender {
	return func(msg protocol.Msg) (int, error) {
		return protocol.Send(h.conn, msg)
	}
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) SyncClockInterval() time.Duration {
	return h.ClientSyncClockInterval
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetSessions() *models.SessionStore {
	return h.Sessions
}

func (h *RealtimeHandler) GetModules() []modules.Module {
	return h.Modules
}

func (h *RealtimeHandler) CurrentSession() *models.Session {
	return h.currentSession
}

func (h *RealtimeHandler) CurrentParticipant() *models.Participant {
	return h.currentParticipant
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}

func (h *RealtimeHandler) leaveSession() {
	session := h.currentSession
	participant := h.currentParticipant

	if participant == nil || session == nil {
		return
	}

	for _, m := range h.Modules {
		m.HandleDisconnect()
	}

	for _, id := range participant.EntityIDs() {
		entity, ok := session.EntityByID(id)
		if !ok || entity.Persist {
			continue
		}

		session.RemoveEntity(entity)
		participant.RemoveEntity(entity)

		h.FeatureFlags.IfNotSet(featureflag.FlagDisableEntityDeleteBroadcast, func() {
			session.Broadcast(participant, protocol.EntityDeleteBroadcast{
				EntityID: entity.ID,
			})
		})
	}

	if h.stopFrameHandling != nil {
		h.stopFrameHandling()
		h.stopFrameHandling = nil
	}
	session.RemoveParticipant(participant)

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableParticipantLeaveBroadcast, func() {
		session.Broadcast(participant, protocol.ParticipantLeaveBroadcast{
			ParticipantID: participant.ID,
		})
	})

	if session.ParticipantCount() == 0 {
		h.Sessions.Remove(context.Background(), session)
	}

	h.currentParticipant = nil
	h.currentSession = nil
}

func sendError(respond protocol.ResponseSender, requestID uint32, code protocol.ErrorCode) {
	respond.Send(requestID, protocol.ErrorResponse{
		Code: code,
	})
}
