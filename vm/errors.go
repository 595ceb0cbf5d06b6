package vm

import "errors"

var (
	// ErrOverlappingRegion is returned by AddRegion when the new range
	// intersects one that is already registered.
	ErrOverlappingRegion = errors.New("overlapping region")

	// ErrInvalidRegion is returned by AddRegion for an inverted range, a
	// missing handler or a range longer than the handler can serve.
	ErrInvalidRegion = errors.New("invalid region")

	ErrUnmappedAddress   = errors.New("unmapped address")
	ErrReadOnlyViolation = errors.New("write to read-only memory")

	// ErrCursorUnderflow means firmware tried to back the cursor up past the
	// top-left cell.
	ErrCursorUnderflow = errors.New("cursor underflow")

	ErrUnsupportedCharacter = errors.New("unsupported character")
	ErrImageTooLarge        = errors.New("image too large for bank")
)

// fatal reports whether err should stop the CPU. Only an access to an
// unmapped address leaves the machine without a defined result.
func fatal(err error) bool {
	return errors.Is(err, ErrUnmappedAddress)
}
