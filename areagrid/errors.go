package areagrid

const (
	// ErrTypeInvalidArgument is the error type of the errors returned when a
	// region or a grid geometry breaks the package contract.
	ErrTypeInvalidArgument = "invalid_argument"

	// ErrTypeOutOfRange is the error type for cell addresses outside of the
	// grid. Grid operations clamp their spans instead of returning it.
	ErrTypeOutOfRange = "out_of_range"
)
