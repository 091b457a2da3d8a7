package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aukilabs/areagrid/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	headerClientID = protocol.HeaderClientID

	// ErrTypeUnauthorized is the type of the errors returned when a request
	// does not carry the expected token.
	ErrTypeUnauthorized = "unauthorized"
)

// BearerToken returns the token of the Authorization header of r.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

func verifyToken(token string, r *http.Request) error {
	if token == "" {
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(BearerToken(r))) != 1 {
		return errors.New("invalid auth token").
			WithType(ErrTypeUnauthorized).
			WithTag("remote_addr", r.RemoteAddr)
	}
	return nil
}

// VerifyAuthToken returns a websocket handshake that rejects connections
// whose bearer token is not token. An empty token accepts every connection.
func VerifyAuthToken(token string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if err := verifyToken(token, r); err != nil {
			logs.WithTag(logs.ClientIDTag, r.Header.Get(headerClientID)).Error(err)
			return err
		}

		return nil
	}
}

// VerifyAuthTokenHandler is the http.Handler form of VerifyAuthToken.
func VerifyAuthTokenHandler(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := verifyToken(token, r); err != nil {
			logs.WithTag(logs.ClientIDTag, r.Header.Get(headerClientID)).Error(err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}
