package shuttle

import "errors"

// Permanent codec/validation errors. The caller must log and skip these
// rather than retry.
var (
	ErrInvalidMessage = errors.New("invalid_message")
	ErrMissingBody    = errors.New("missing_body")
	ErrUnknownType    = errors.New("unknown_type")
	ErrBadTimestamp   = errors.New("bad_timestamp")
)

// Transient errors. The caller restarts the owning component; idempotence
// elsewhere in the system makes the restart safe.
var (
	ErrTransportUnavailable = errors.New("transport_unavailable")
	ErrStorageError         = errors.New("storage_error")
	ErrCheckpointUnavailable = errors.New("checkpoint_unavailable")
)

// IsPermanent reports whether err is one of the permanent decode/validation
// errors that should be logged and skipped rather than retried.
func IsPermanent(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidMessage),
		errors.Is(err, ErrMissingBody),
		errors.Is(err, ErrUnknownType),
		errors.Is(err, ErrBadTimestamp):
		return true
	default:
		return false
	}
}
