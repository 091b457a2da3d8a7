package featureflag

type Flag string

const (
	FlagDisableSessionState              Flag = "DISABLE_SESSION_STATE"
	FlagDisableParticipantJoinBroadcast  Flag = "DISABLE_PARTICIPANT_JOIN_BROADCAST"
	FlagDisableParticipantLeaveBroadcast Flag = "DISABLE_PARTICIPANT_LEAVE_BROADCAST"
	FlagDisableEntityAddBroadcast        Flag = "DISABLE_ENTITY_ADD_BROADCAST"
	FlagDisableEntityDeleteBroadcast     Flag = "DISABLE_ENTITY_DELETE_BROADCAST"
	FlagDisableEntityMoveBroadcast       Flag = "DISABLE_ENTITY_MOVE_BROADCAST"
	FlagDisableQueryModule               Flag = "DISABLE_QUERY_MODULE"
	FlagDisableWatchModule               Flag = "DISABLE_WATCH_MODULE"
)

var knownFlags = map[Flag]struct{}{
	FlagDisableSessionState:              {},
	FlagDisableParticipantJoinBroadcast:  {},
	FlagDisableParticipantLeaveBroadcast: {},
	FlagDisableEntityAddBroadcast:        {},
	FlagDisableEntityDeleteBroadcast:     {},
	FlagDisableEntityMoveBroadcast:       {},
	FlagDisableQueryModule:               {},
	FlagDisableWatchModule:               {},
}
