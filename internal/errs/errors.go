package errs

import "errors"

// Domain error taxonomy. Handlers map these onto HTTP status codes; the
// WebSocket dispatcher maps them onto error acks sent only to the
// originating connection.
var (
	// ErrNotFound - operation on an unknown conversation or message
	ErrNotFound = errors.New("not found")

	// ErrForbidden - a non-participant acting on a conversation
	ErrForbidden = errors.New("forbidden")

	// ErrValidation - malformed payload (empty content, missing ids, ...)
	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable - the durable store rejected or timed out; the
	// triggering operation is aborted and nothing is published
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnauthorizedRoomJoin - attempt to join a room the identity has no
	// right to; the connection stays open
	ErrUnauthorizedRoomJoin = errors.New("unauthorized room join")
)

// Code returns the wire-level error code for a domain error, or "internal"
// for anything outside the taxonomy.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrUnauthorizedRoomJoin):
		return "unauthorized_room_join"
	default:
		return "internal"
	}
}
