package resize

import "errors"

// Sentinel errors classifying every failure the pipeline can surface. Callers
// match them with errors.Is; the wrapped message carries the detail.
var (
	// ErrValidation indicates a malformed job or unrecognized stream options,
	// detected before any I/O happens.
	ErrValidation = errors.New("invalid resize request")

	// ErrDecode indicates the source bytes are not a supported image.
	ErrDecode = errors.New("image decode failed")

	// ErrRender indicates the backend failed while resampling or compositing.
	ErrRender = errors.New("image render failed")

	// ErrEncode indicates the backend failed to serialize the output image.
	ErrEncode = errors.New("image encode failed")

	// ErrIO indicates a failure on a caller-supplied stream or path, including
	// a missing destination directory when creation was not requested.
	ErrIO = errors.New("stream i/o failed")
)
