package config

const (
	// ErrTypeConfig is the type of the errors returned when a configuration
	// cannot be read, decoded or validated.
	ErrTypeConfig = "config_error"
)
