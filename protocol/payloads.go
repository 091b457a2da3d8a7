package protocol

import "github.com/aukilabs/areagrid/areagrid"

// ErrorCode describes why a request failed.
type ErrorCode string

const (
	ErrorCodeBadRequest           ErrorCode = "bad_request"
	ErrorCodeNotFound             ErrorCode = "not_found"
	ErrorCodeSessionAlreadyJoined ErrorCode = "session_already_joined"
	ErrorCodeUnauthorized         ErrorCode = "unauthorized"
	ErrorCodeInvalidArgument      ErrorCode = "invalid_argument"
	ErrorCodeInternalServerError  ErrorCode = "internal_server_error"
)

// Participant describes a session participant.
type Participant struct {
	ID uint32 `json:"id"`
}

// Entity describes an entity and its region.
type Entity struct {
	ID            uint32 `json:"id"`
	ParticipantID uint32 `json:"participant_id"`
	Kind          string `json:"kind,omitempty"`
	Persist       bool   `json:"persist,omitempty"`
	Min           []int  `json:"min"`
	Extent        []int  `json:"extent"`
}

type PingRequest struct{}

func (PingRequest) MsgType() MsgType { return MsgTypePingRequest }

type PingResponse struct{}

func (PingResponse) MsgType() MsgType { return MsgTypePingResponse }

type SyncClock struct{}

func (SyncClock) MsgType() MsgType { return MsgTypeSyncClock }

type ErrorResponse struct {
	Code ErrorCode `json:"code"`
}

func (ErrorResponse) MsgType() MsgType { return MsgTypeErrorResponse }

// ParticipantJoinRequest joins the session with the given global id, or
// creates a new session in the given world when the id is empty. An empty
// world selects the server default world.
type ParticipantJoinRequest struct {
	SessionID string `json:"session_id,omitempty"`
	World     string `json:"world,omitempty"`
}

func (ParticipantJoinRequest) MsgType() MsgType { return MsgTypeParticipantJoinRequest }

type ParticipantJoinResponse struct {
	SessionID     string `json:"session_id"`
	SessionUUID   string `json:"session_uuid"`
	ParticipantID uint32 `json:"participant_id"`
	World         string `json:"world"`
}

func (ParticipantJoinResponse) MsgType() MsgType { return MsgTypeParticipantJoinResponse }

type ParticipantJoinBroadcast struct {
	ParticipantID uint32 `json:"participant_id"`
}

func (ParticipantJoinBroadcast) MsgType() MsgType { return MsgTypeParticipantJoinBroadcast }

type ParticipantLeaveBroadcast struct {
	ParticipantID uint32 `json:"participant_id"`
}

func (ParticipantLeaveBroadcast) MsgType() MsgType { return MsgTypeParticipantLeaveBroadcast }

type SessionState struct {
	Participants []Participant `json:"participants"`
	Entities     []Entity      `json:"entities"`
}

func (SessionState) MsgType() MsgType { return MsgTypeSessionState }

type EntityAddRequest struct {
	Kind    string `json:"kind,omitempty"`
	Persist bool   `json:"persist,omitempty"`
	Min     []int  `json:"min"`
	Extent  []int  `json:"extent"`
}

func (EntityAddRequest) MsgType() MsgType { return MsgTypeEntityAddRequest }

type EntityAddResponse struct {
	EntityID uint32 `json:"entity_id"`
}

func (EntityAddResponse) MsgType() MsgType { return MsgTypeEntityAddResponse }

type EntityAddBroadcast struct {
	Entity Entity `json:"entity"`
}

func (EntityAddBroadcast) MsgType() MsgType { return MsgTypeEntityAddBroadcast }

type EntityDeleteRequest struct {
	EntityID uint32 `json:"entity_id"`
}

func (EntityDeleteRequest) MsgType() MsgType { return MsgTypeEntityDeleteRequest }

type EntityDeleteResponse struct{}

func (EntityDeleteResponse) MsgType() MsgType { return MsgTypeEntityDeleteResponse }

type EntityDeleteBroadcast struct {
	EntityID uint32 `json:"entity_id"`
}

func (EntityDeleteBroadcast) MsgType() MsgType { return MsgTypeEntityDeleteBroadcast }

type EntityMoveRequest struct {
	EntityID uint32 `json:"entity_id"`
	Min      []int  `json:"min"`
	Extent   []int  `json:"extent"`
}

func (EntityMoveRequest) MsgType() MsgType { return MsgTypeEntityMoveRequest }

type EntityMoveResponse struct{}

func (EntityMoveResponse) MsgType() MsgType { return MsgTypeEntityMoveResponse }

type EntityMoveBroadcast struct {
	Entity Entity `json:"entity"`
}

func (EntityMoveBroadcast) MsgType() MsgType { return MsgTypeEntityMoveBroadcast }

// PointQueryRequest asks for the entities containing a point. Kinds filters
// the results when not empty.
type PointQueryRequest struct {
	X     int      `json:"x"`
	Y     int      `json:"y"`
	Kinds []string `json:"kinds,omitempty"`
}

func (PointQueryRequest) MsgType() MsgType { return MsgTypePointQueryRequest }

// RegionQueryRequest asks for the entities overlapping a region.
type RegionQueryRequest struct {
	Min      []int    `json:"min"`
	Extent   []int    `json:"extent"`
	SizeHint int      `json:"size_hint,omitempty"`
	Kinds    []string `json:"kinds,omitempty"`
}

func (RegionQueryRequest) MsgType() MsgType { return MsgTypeRegionQueryRequest }

type QueryResponse struct {
	Entities []Entity `json:"entities"`
}

func (QueryResponse) MsgType() MsgType { return MsgTypeQueryResponse }

type GridDebugRequest struct{}

func (GridDebugRequest) MsgType() MsgType { return MsgTypeGridDebugRequest }

type GridDebugResponse struct {
	Info    areagrid.DebugInfo      `json:"info"`
	Stats   areagrid.OccupancyStats `json:"stats"`
	MemSize int                     `json:"mem_size"`
}

func (GridDebugResponse) MsgType() MsgType { return MsgTypeGridDebugResponse }

// WatchRequest registers a region whose overlapping entities are reported
// every frame they change.
type WatchRequest struct {
	Min    []int    `json:"min"`
	Extent []int    `json:"extent"`
	Kinds  []string `json:"kinds,omitempty"`
}

func (WatchRequest) MsgType() MsgType { return MsgTypeWatchRequest }

type WatchResponse struct {
	WatchID uint32 `json:"watch_id"`
}

func (WatchResponse) MsgType() MsgType { return MsgTypeWatchResponse }

type UnwatchRequest struct {
	WatchID uint32 `json:"watch_id"`
}

func (UnwatchRequest) MsgType() MsgType { return MsgTypeUnwatchRequest }

type UnwatchResponse struct{}

func (UnwatchResponse) MsgType() MsgType { return MsgTypeUnwatchResponse }

type WatchUpdate struct {
	WatchID uint32   `json:"watch_id"`
	Entered []Entity `json:"entered,omitempty"`
	Left    []uint32 `json:"left,omitempty"`
}

func (WatchUpdate) MsgType() MsgType { return MsgTypeWatchUpdate }
