package protocol

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// MsgType identifies the payload carried by a message.
type MsgType string

const (
	MsgTypePingRequest  MsgType = "ping_request"
	MsgTypePingResponse MsgType = "ping_response"
	MsgTypeSyncClock    MsgType = "sync_clock"

	MsgTypeErrorResponse MsgType = "error_response"

	MsgTypeParticipantJoinRequest    MsgType = "participant_join_request"
	MsgTypeParticipantJoinResponse   MsgType = "participant_join_response"
	MsgTypeParticipantJoinBroadcast  MsgType = "participant_join_broadcast"
	MsgTypeParticipantLeaveBroadcast MsgType = "participant_leave_broadcast"
	MsgTypeSessionState              MsgType = "session_state"

	MsgTypeEntityAddRequest      MsgType = "entity_add_request"
	MsgTypeEntityAddResponse     MsgType = "entity_add_response"
	MsgTypeEntityAddBroadcast    MsgType = "entity_add_broadcast"
	MsgTypeEntityDeleteRequest   MsgType = "entity_delete_request"
	MsgTypeEntityDeleteResponse  MsgType = "entity_delete_response"
	MsgTypeEntityDeleteBroadcast MsgType = "entity_delete_broadcast"
	MsgTypeEntityMoveRequest     MsgType = "entity_move_request"
	MsgTypeEntityMoveResponse    MsgType = "entity_move_response"
	MsgTypeEntityMoveBroadcast   MsgType = "entity_move_broadcast"

	MsgTypePointQueryRequest  MsgType = "point_query_request"
	MsgTypeRegionQueryRequest MsgType = "region_query_request"
	MsgTypeQueryResponse      MsgType = "query_response"
	MsgTypeGridDebugRequest   MsgType = "grid_debug_request"
	MsgTypeGridDebugResponse  MsgType = "grid_debug_response"

	MsgTypeWatchRequest    MsgType = "watch_request"
	MsgTypeWatchResponse   MsgType = "watch_response"
	MsgTypeUnwatchRequest  MsgType = "unwatch_request"
	MsgTypeUnwatchResponse MsgType = "unwatch_response"
	MsgTypeWatchUpdate     MsgType = "watch_update"
)

// Msg is the envelope of every message exchanged over a websocket
// connection. Data holds the JSON encoded payload.
type Msg struct {
	Type      MsgType         `json:"type"`
	RequestID uint32          `json:"request_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Payload is the content of a message.
type Payload interface {
	MsgType() MsgType
}

// MsgFromPayload wraps p in a message timestamped with the current time.
// requestID is zero for messages that do not answer a request.
func MsgFromPayload(requestID uint32, p Payload) (Msg, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Msg{}, errors.New("encoding payload failed").
			WithType(ErrTypeBadMessage).
			WithTag("type", p.MsgType()).
			Wrap(err)
	}

	return Msg{
		Type:      p.MsgType(),
		RequestID: requestID,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// DataTo decodes the message payload into v.
func (m Msg) DataTo(v any) error {
	if len(m.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message data failed").
			WithType(ErrTypeBadMessage).
			WithTag("type", m.Type).
			Wrap(err)
	}
	return nil
}
