package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/areagrid/config"
	"github.com/aukilabs/areagrid/models"
	"github.com/aukilabs/areagrid/modules"
	"github.com/aukilabs/areagrid/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Creates a testing environement to unit test handlers and modules.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*protocol.Client, *protocol.Client, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	clientA, clientB, close := newTestingEnv(t, newHandler)
	return clientA, clientB, func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
		close()
	}
}

func newTestingEnv(t *testing.T, newHandler func() Handler) (*protocol.Client, *protocol.Client, func()) {
	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})

	newClient := func() *protocol.Client {
		header := make(http.Header)
		header.Set("User-Agent", "ted")
		header.Set("X-Forwarded-For", "192.0.0.0")
		header.Set(protocol.HeaderClientID, uuid.NewString())

		client, err := protocol.Dial(context.Background(), server.URL, header)
		if err != nil {
			t.Fatalf("error dialing web socket: %s", err)
		}
		return client
	}

	clientA := newClient()
	clientB := newClient()

	return clientA, clientB, func() {
		clientA.Close()
		clientB.Close()
		server.Close()
	}
}

const testWorld = "test"

func newTestSessionStore() *models.SessionStore {
	return &models.SessionStore{
		ServerID: "ted",
		Worlds: config.Worlds{
			testWorld: {
				Name:       testWorld,
				Width:      256,
				Height:     256,
				CellLength: 16,
			},
			"small": {
				Name:       "small",
				Width:      32,
				Height:     32,
				CellLength: 8,
			},
		},
		DefaultWorld: testWorld,
	}
}

func newTestHandler(newModule ...func() modules.Module) func() Handler {
	sessionStore := newTestSessionStore()

	return func() Handler {
		modules := make([]modules.Module, len(newModule))
		for i, nm := range newModule {
			modules[i] = nm()
		}
		var h Handler = &RealtimeHandler{
			ClientSyncClockInterval: time.Millisecond * 250,
			ClientIdleTimeout:       time.Minute,
			FrameDuration:           time.Millisecond * 50,
			Sessions:                sessionStore,
			Modules:                 modules,
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "https://areagrid-test.com")
		return h
	}
}
