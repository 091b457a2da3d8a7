package models

const (
	// ErrTypeEntityNotFound is the type of the errors returned when an entity
	// is not part of a session.
	ErrTypeEntityNotFound = "entity_not_found"
)
