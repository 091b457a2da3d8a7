package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/areagrid/models"
	"github.com/aukilabs/areagrid/modules"
	"github.com/aukilabs/areagrid/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize = 512
)

// Handler represents a connection handler.
type Handler interface {
	// Handles a ping request.
	HandlePing(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error

	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a request to join a session. handleFrame is called on every
	// frame of the joined session.
	HandleParticipantJoin(ctx context.Context, handleFrame func(), respond protocol.ResponseSender, msg protocol.Msg) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Handles a request to create an entity.
	HandleEntityAdd(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error

	// Handles a request to delete an entity.
	HandleEntityDelete(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error

	// Handles a request to change the region of an entity.
	HandleEntityMove(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error

	// Handle a message with a module. It returns an error of type
	// protocol.ErrTypeMsgSkip when the module does not handle the message.
	HandleWithModule(ctx context.Context, module modules.Module, respond protocol.ResponseSender, msg protocol.Msg) error

	// Handles a frame of the joined session.
	HandleFrame(ctx context.Context, respond protocol.ResponseSender) error

	// Sends a sync clock message to the client.
	SendSyncClock(ctx context.Context, respond protocol.ResponseSender) error

	// Creates a message receiver used to receive incoming messages.
	Receiver() protocol.Receiver

	// Creates a message sender passed in service methods in order to send
	// messages.
	Sender() protocol.Sender

	// Closes the service and releases its allocated resources.
	Close()

	// The interval between each sync clock message sent to the connected
	// client.
	SyncClockInterval() time.Duration

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Returns the session store.
	GetSessions() *models.SessionStore

	// Returns the modules.
	GetModules() []modules.Module

	// The currently joined session.
	CurrentSession() *models.Session

	// The current participant.
	CurrentParticipant() *models.Participant

	// Get ClientID
	GetClientID() string
}

// Handle handles the given service.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The connection handler.
	Handler Handler

	sendChan       chan protocol.Msg
	sender         protocol.Sender
	dispatcher     protocol.Dispatcher
	consumer       protocol.Consumer
	receiver       protocol.Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan protocol.Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	scheduler := protocol.NewScheduler()
	h.dispatcher = scheduler
	h.consumer = scheduler
	defer scheduler.Close()

	h.receiver = h.Handler.Receiver()
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	syncClockTicker := time.NewTicker(h.Handler.SyncClockInterval())
	defer syncClockTicker.Stop()

	var responder = responseSender{
		send:    h.send,
		sendMsg: h.sendMsg,
	}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.disconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", h.Handler.IdleTimeout()))

		case <-syncClockTicker.C:
			if err := h.Handler.SendSyncClock(ctx, responder); err != nil {
				h.disconnect(errors.New("sending sync clock failed").Wrap(err))
			}

		case msg := <-h.consumer.Messages():
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case <-h.consumer.Frames():
			if err := h.Handler.HandleFrame(ctx, responder); err != nil {
				h.disconnect(errors.New("handling frame failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			if ctx.Err() == nil {
				// cancel context so go routines can cleanly exit
				cancel()
			}
		}
	}

	wg.Wait()
}

func (h *handler) send(requestID uint32, p protocol.Payload) {
	msg, err := protocol.MsgFromPayload(requestID, p)
	if err != nil {
		logs.WithTag("message", p).
			WithTag(logs.ClientIDTag, h.Handler.GetClientID()).
			Debug(err)
		return
	}
	h.sendChan <- msg
}

func (h *handler) sendMsg(msg protocol.Msg) {
	h.sendChan <- msg
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		default:
			msg, _, err := h.receiver()
			if errors.IsType(err, protocol.ErrTypeBadMessage) {
				logs.WithTag(logs.ClientIDTag, h.Handler.GetClientID()).
					Debug(errors.New("bad message received").Wrap(err))

				select {
				case <-ctx.Done():
					return
				case h.sendChan <- badRequest(0):
				}
				continue
			}
			if err != nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			if err = h.dispatcher.Dispatch(ctx, msg); err != nil {
				h.disconnect(errors.New("dispatching message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg protocol.Msg, responder protocol.ResponseSender) error {
	var err error
	handled := true

	switch msg.Type {
	case protocol.MsgTypePingRequest:
		err = h.Handler.HandlePing(ctx, responder, msg)

	case protocol.MsgTypeParticipantJoinRequest:
		err = h.Handler.HandleParticipantJoin(ctx,
			h.dispatcher.HandleFrame,
			responder,
			msg,
		)

	case protocol.MsgTypeEntityAddRequest:
		err = h.Handler.HandleEntityAdd(ctx, responder, msg)

	case protocol.MsgTypeEntityDeleteRequest:
		err = h.Handler.HandleEntityDelete(ctx, responder, msg)

	case protocol.MsgTypeEntityMoveRequest:
		err = h.Handler.HandleEntityMove(ctx, responder, msg)

	default:
		handled = false
	}

	if errors.IsType(err, protocol.ErrTypeBadMessage) {
		responder.SendMsg(badRequest(msg.RequestID))
		return nil
	}
	if err != nil {
		return err
	}

	if h.Handler.CurrentParticipant() == nil || h.Handler.CurrentSession() == nil {
		if !handled {
			responder.SendMsg(badRequest(msg.RequestID))
		}
		return nil
	}

	for _, m := range h.Handler.GetModules() {
		err = h.Handler.HandleWithModule(ctx, m, responder, msg)
		if errors.IsType(err, protocol.ErrTypeMsgSkip) {
			continue
		}
		if errors.IsType(err, protocol.ErrTypeBadMessage) {
			responder.SendMsg(badRequest(msg.RequestID))
			return nil
		}
		if err != nil {
			return err
		}
		handled = true
	}

	if !handled {
		responder.SendMsg(badRequest(msg.RequestID))
	}
	return nil
}

func (h *handler) disconnect(err error) {
	h.disconnectChan <- err
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

func badRequest(requestID uint32) protocol.Msg {
	msg, _ := protocol.MsgFromPayload(requestID, protocol.ErrorResponse{
		Code: protocol.ErrorCodeBadRequest,
	})
	return msg
}

type responseSender struct {
	send    func(uint32, protocol.Payload)
	sendMsg func(protocol.Msg)
}

func (r responseSender) Send(requestID uint32, p protocol.Payload) {
	r.send(requestID, p)
}

func (r responseSender) SendMsg(msg protocol.Msg) {
	r.sendMsg(msg)
}
