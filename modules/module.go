package modules

import (
	"context"

	"github.com/aukilabs/areagrid/models"
	"github.com/aukilabs/areagrid/protocol"
)

// Module is the interface that describes a module that extends the server
// capabilities.
type Module interface {
	// Returns the module name.
	Name() string

	// Initializes the module.
	Init(*models.Session, *models.Participant)

	// Handles a given message. Modules are free to decide whether they handle a
	// message.
	//
	// Returning protocol.ErrMsgSkip indicates that handling a message was
	// skipped.
	//
	// Any other returned errors causes the current WebSocket client to be
	// disconnected.
	HandleMsg(context.Context, protocol.ResponseSender, protocol.Msg) error

	// Handles a session frame. It is called from the connection loop, never
	// concurrently with HandleMsg.
	HandleFrame(context.Context, protocol.ResponseSender) error

	// Handles a client disconnection.
	HandleDisconnect()
}
