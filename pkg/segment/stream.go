package segment

import (
	"fmt"
	"io"

	"github.com/jpfielding/dcmimage.go/pkg/descriptor"
)

// Stream locates the bytes of one frame: parallel offsets and lengths of
// the segments that, concatenated in order, form the frame bitstream
type Stream struct {
	Path       string
	Positions  []int64
	Lengths    []int64
	Descriptor *descriptor.Descriptor
}

// NewStream validates the segment arrays: same length, at least one
// segment, non-negative offsets and positive lengths
func NewStream(path string, positions, lengths []int64, desc *descriptor.Descriptor) (*Stream, error) {
	if len(positions) != len(lengths) {
		return nil, fmt.Errorf("%d segment positions for %d lengths", len(positions), len(lengths))
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("no segments: %w", ErrNoPixelData)
	}
	for i := range positions {
		if positions[i] < 0 || lengths[i] <= 0 {
			return nil, fmt.Errorf("invalid segment %d [%d+%d]", i, positions[i], lengths[i])
		}
	}
	return &Stream{Path: path, Positions: positions, Lengths: lengths, Descriptor: desc}, nil
}

// Len returns the total byte length of the frame
func (s *Stream) Len() int64 {
	var n int64
	for _, l := range s.Lengths {
		n += l
	}
	return n
}

// NumSegments returns the segment count
func (s *Stream) NumSegments() int {
	return len(s.Positions)
}

// Open returns a reader over the concatenated segments of src
func (s *Stream) Open(src io.ReaderAt) io.Reader {
	readers := make([]io.Reader, len(s.Positions))
	for i := range s.Positions {
		readers[i] = io.NewSectionReader(src, s.Positions[i], s.Lengths[i])
	}
	return io.MultiReader(readers...)
}

// ReadAll reads the whole frame from src
func (s *Stream) ReadAll(src io.ReaderAt) ([]byte, error) {
	buf := make([]byte, s.Len())
	if _, err := io.ReadFull(s.Open(src), buf); err != nil {
		return nil, fmt.Errorf("read %d segments of %s: %w", s.NumSegments(), s.Path, err)
	}
	return buf, nil
}

func (s *Stream) String() string {
	return fmt.Sprintf("%s segments=%d bytes=%d", s.Path, s.NumSegments(), s.Len())
}
