// Package query answers point and region queries against the grid of the
// joined session.
package query

import (
	"context"

	"github.com/aukilabs/areagrid/areagrid"
	"github.com/aukilabs/areagrid/models"
	"github.com/aukilabs/areagrid/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Module is a per connection query handler.
type Module struct {
	currentSession     *models.Session
	currentParticipant *models.Participant
}

func (m *Module) Name() string {
	return "query"
}

func (m *Module) Init(s *models.Session, p *models.Participant) {
	m.currentSession = s
	m.currentParticipant = p
}

func (m *Module) HandleMsg(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	switch msg.Type {
	case protocol.MsgTypePointQueryRequest:
		return m.HandlePointQuery(ctx, respond, msg)

	case protocol.MsgTypeRegionQueryRequest:
		return m.HandleRegionQuery(ctx, respond, msg)

	case protocol.MsgTypeGridDebugRequest:
		return m.HandleGridDebug(ctx, respond, msg)

	default:
		return protocol.ErrMsgSkip
	}
}

func (m *Module) HandleFrame(ctx context.Context, respond protocol.ResponseSender) error {
	return nil
}

func (m *Module) HandleDisconnect() {
	m.currentSession = nil
	m.currentParticipant = nil
}

func (m *Module) HandlePointQuery(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.PointQueryRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	session := m.currentSession
	if session == nil {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	entities := session.EntitiesAt(req.X, req.Y, models.KindFilter(req.Kinds))

	respond.Send(msg.RequestID, protocol.QueryResponse{
		Entities: models.EntitiesToProtocol(entities),
	})
	return nil
}

func (m *Module) HandleRegionQuery(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.RegionQueryRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	session := m.currentSession
	if session == nil {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	if req.SizeHint < 0 || req.SizeHint > areagrid.MaxSizeHint {
		respond.Send(msg.RequestID, protocol.ErrorResponse{
			Code: protocol.ErrorCodeInvalidArgument,
		})
		return nil
	}

	region, err := areagrid.NewCube(req.Min, req.Extent)
	if err != nil {
		respond.Send(msg.RequestID, protocol.ErrorResponse{
			Code: protocol.ErrorCodeInvalidArgument,
		})
		return nil
	}

	entities, err := session.QueryEntities(region, req.SizeHint, models.KindFilter(req.Kinds))
	if errors.IsType(err, areagrid.ErrTypeInvalidArgument) {
		respond.Send(msg.RequestID, protocol.ErrorResponse{
			Code: protocol.ErrorCodeInvalidArgument,
		})
		return nil
	}
	if err != nil {
		return errors.New("querying region failed").Wrap(err)
	}

	respond.Send(msg.RequestID, protocol.QueryResponse{
		Entities: models.EntitiesToProtocol(entities),
	})
	return nil
}

func (m *Module) HandleGridDebug(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	session := m.currentSession
	if session == nil {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	info := session.GridDebugInfo()

	respond.Send(msg.RequestID, protocol.GridDebugResponse{
		Info:    info,
		Stats:   info.Stats(),
		MemSize: session.GridMemSize(),
	})
	return nil
}
