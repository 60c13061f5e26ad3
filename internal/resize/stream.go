package resize

import "fmt"

// StreamOptions is a bit-set controlling how the pipeline treats the
// caller-supplied source and destination streams.
type StreamOptions uint8

const (
	// BufferInMemory copies the whole source stream into memory before
	// decoding. Combined with closing the source this allows reading and
	// overwriting the same file in one call.
	BufferInMemory StreamOptions = 1 << iota
	// LeaveSourceOpen prevents the pipeline from closing the source stream.
	LeaveSourceOpen
	// RewindSource restores a seekable source to its pre-call position. Only
	// meaningful together with LeaveSourceOpen.
	RewindSource
	// LeaveDestinationOpen prevents destination-stream entry points from
	// closing the destination.
	LeaveDestinationOpen
	// CreateDestinationDirectory creates missing parent directories for
	// destination paths. Without it a missing directory is an error.
	CreateDestinationDirectory
)

// allStreamOptions is the allow-list of recognized flags. Anything outside it
// is rejected rather than silently ignored.
const allStreamOptions = BufferInMemory |
	LeaveSourceOpen |
	RewindSource |
	LeaveDestinationOpen |
	CreateDestinationDirectory

// Has reports whether every flag in mask is set.
func (o StreamOptions) Has(mask StreamOptions) bool {
	return o&mask == mask
}

// Validate rejects unrecognized flag bits.
func (o StreamOptions) Validate() error {
	if unknown := o &^ allStreamOptions; unknown != 0 {
		return fmt.Errorf("%w: unrecognized stream option bits 0x%x", ErrValidation, uint8(unknown))
	}
	return nil
}
