package protocol

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"golang.org/x/net/websocket"
)

// HeaderClientID is the HTTP header that identifies a client in logs.
const HeaderClientID = "Areagrid-Client-Id"

// Client is a minimal websocket client used by the smoke test and by tests.
// It is not safe for concurrent receives.
type Client struct {
	conn      *websocket.Conn
	requestID atomic.Uint32
}

// Dial connects to the websocket endpoint. http and https endpoints are
// converted to ws and wss.
func Dial(ctx context.Context, endpoint string, header http.Header) (*Client, error) {
	config, err := websocket.NewConfig(WebsocketURL(endpoint), "http://localhost")
	if err != nil {
		return nil, errors.New("creating websocket config failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}

	for k, v := range header {
		config.Header[k] = v
	}

	conn, err := config.DialContext(ctx)
	if err != nil {
		return nil, errors.New("dialing websocket failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}
	return NewClient(conn), nil
}

// NewClient creates a client that uses an existing connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// Conn returns the underlying connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// Send sends p with a new request id and returns that id.
func (c *Client) Send(p Payload) (uint32, error) {
	id := c.requestID.Add(1)

	msg, err := MsgFromPayload(id, p)
	if err != nil {
		return 0, err
	}

	if _, err := Send(c.conn, msg); err != nil {
		return 0, err
	}
	return id, nil
}

// Receive reads the next message.
func (c *Client) Receive(ctx context.Context) (Msg, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return Msg{}, err
	}

	msg, _, err := Receive(c.conn)
	return msg, err
}

// Request sends p and waits for the message that answers it. Messages that
// do not answer the request are dropped.
func (c *Client) Request(ctx context.Context, p Payload) (Msg, error) {
	id, err := c.Send(p)
	if err != nil {
		return Msg{}, err
	}

	for {
		msg, err := c.Receive(ctx)
		if err != nil {
			return Msg{}, errors.New("waiting for response failed").
				WithTag("request_type", p.MsgType()).
				WithTag("request_id", id).
				Wrap(err)
		}

		if msg.RequestID == id {
			return msg, nil
		}
	}
}

// WaitFor drops messages until one of the given types is received.
func (c *Client) WaitFor(ctx context.Context, types ...MsgType) (Msg, error) {
	for {
		msg, err := c.Receive(ctx)
		if err != nil {
			return Msg{}, err
		}

		for _, t := range types {
			if msg.Type == t {
				return msg, nil
			}
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// WebsocketURL converts an http URL to its websocket form.
func WebsocketURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}
