// internal/sunspec/errors.go
package sunspec

import "errors"

var (
	// ErrBlockNotFound means the chain terminated at the end marker
	// without the requested model appearing.
	ErrBlockNotFound = errors.New("sunspec: model not present in chain")

	// ErrFieldNotFound means the model schema has no field of that name.
	ErrFieldNotFound = errors.New("sunspec: field not in model schema")

	// ErrChainTooLong means the walk exceeded the hop limit. Devices
	// returning self-referential or garbage headers hit this instead of
	// hanging the caller.
	ErrChainTooLong = errors.New("sunspec: model chain exceeded hop limit")

	// ErrWriteUnsupported means the field type has no register encoding.
	ErrWriteUnsupported = errors.New("sunspec: field type not writable")
)
