package protocol

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Receiver receives a message. It returns the message and its size in bytes.
type Receiver func() (Msg, int, error)

// Sender sends a message. It returns the number of bytes written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages for a connected client.
type ResponseSender interface {
	// Sends a payload. requestID is the id of the request being answered,
	// or zero.
	Send(requestID uint32, p Payload)

	// Sends an already built message.
	SendMsg(msg Msg)
}

// Send writes msg as a websocket text frame.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.New("encoding message failed").
			WithType(ErrTypeBadMessage).
			WithTag("type", msg.Type).
			Wrap(err)
	}

	if err := websocket.Message.Send(conn, string(data)); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Receive reads the next websocket frame and decodes it as a message.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return Msg{}, 0, err
	}

	msg, err := Decode(data)
	return msg, len(data), err
}

// Decode decodes a message envelope.
func Decode(data []byte) (Msg, error) {
	var msg Msg
	if err := json.Unmarshal(data, &msg); err != nil {
		return Msg{}, errors.New("decoding message failed").
			WithType(ErrTypeBadMessage).
			Wrap(err)
	}

	if msg.Type == "" {
		return Msg{}, errors.New("message has no type").
			WithType(ErrTypeBadMessage)
	}
	return msg, nil
}
