package protocol

import "github.com/aukilabs/go-tooling/pkg/errors"

const (
	// ErrTypeSessionNotJoined is the type of the errors returned when a
	// message requires a joined session.
	ErrTypeSessionNotJoined = "session_not_joined"

	// ErrTypeMsgSkip is the type of the errors returned by modules that do not
	// handle a message.
	ErrTypeMsgSkip = "msg_skip"

	// ErrTypeBadMessage is the type of the errors returned when a message
	// cannot be decoded.
	ErrTypeBadMessage = "bad_message"
)

var (
	// ErrMsgSkip is returned by modules that ignore a message.
	ErrMsgSkip = errors.New("message skipped").WithType(ErrTypeMsgSkip)
)
