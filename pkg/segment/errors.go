package segment

import "errors"

var (
	// ErrFragmentMismatch is returned when the detected frame boundaries do
	// not add up to the declared frame count
	ErrFragmentMismatch = errors.New("cannot match all the fragments to all the frames")
	// ErrUnsupportedConfiguration is returned for several fragments per
	// frame in a codec family with no boundary rule
	ErrUnsupportedConfiguration = errors.New("unsupported fragment configuration")
	// ErrJPIPUnsupported is returned for pixel data referenced by a Pixel
	// Data Provider URL
	ErrJPIPUnsupported = errors.New("JPIP referenced pixel data is not supported")
	// ErrNoPixelData is returned when the object carries no pixel data
	ErrNoPixelData = errors.New("no pixel data")
	// ErrFrameOutOfRange is returned for a frame index outside [0, frames)
	ErrFrameOutOfRange = errors.New("frame index out of range")
)
