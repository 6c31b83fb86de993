package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Engine state.
	ErrNotReady = "E_NOT_READY"
	ErrBusy     = "E_BUSY"

	// Request layer.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrNotFound   = "E_NOT_FOUND"
	ErrConflict   = "E_CONFLICT"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrNotReady:        {},
	ErrBusy:            {},
	ErrBadRequest:      {},
	ErrNotFound:        {},
	ErrConflict:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
