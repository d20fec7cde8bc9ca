// Package segment maps frame indexes to the byte ranges holding each frame
// within native or encapsulated pixel data.
package segment

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jpfielding/dcmimage.go/pkg/compress/rle"
	"github.com/jpfielding/dcmimage.go/pkg/descriptor"
	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
	"github.com/jpfielding/dcmimage.go/pkg/jpegheader"
)

// itemHeaderLength is the tag plus length of an encapsulated item
const itemHeaderLength = 8

// Resolver locates frames within the pixel data of one object. The frame
// boundary scan of multi-fragment frames runs once and is shared by all
// frames.
type Resolver struct {
	desc   *descriptor.Descriptor
	pd     *dicom.PixelData
	syntax transfer.Syntax
	path   string
	src    io.ReaderAt

	once     sync.Once
	starts   []int // fragment index of each frame start
	startErr error
}

// Option configures a Resolver
type Option func(*Resolver)

// WithSource sets the file the regions refer to. Fragments not loaded in
// memory are read from src while scanning for frame boundaries.
func WithSource(path string, src io.ReaderAt) Option {
	return func(r *Resolver) {
		r.path = path
		r.src = src
	}
}

// NewResolver creates a resolver for the pixel data of an object
func NewResolver(desc *descriptor.Descriptor, pd *dicom.PixelData, ts transfer.Syntax, opts ...Option) *Resolver {
	r := &Resolver{desc: desc, pd: pd, syntax: ts}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the segments of a frame
func (r *Resolver) Resolve(frame int) (*Stream, error) {
	if r.pd == nil {
		return nil, ErrNoPixelData
	}
	if r.pd.ProviderURL != "" || r.syntax.Family() == transfer.FamilyJPIP {
		return nil, fmt.Errorf("%s: %w", r.pd.ProviderURL, ErrJPIPUnsupported)
	}
	if frame < 0 || frame >= r.desc.Frames {
		return nil, fmt.Errorf("frame %d of %d: %w", frame, r.desc.Frames, ErrFrameOutOfRange)
	}
	if !r.pd.IsEncapsulated {
		return r.resolveNative(frame)
	}
	return r.resolveEncapsulated(frame)
}

// resolveNative offsets into the bulk value by the frame stride
func (r *Resolver) resolveNative(frame int) (*Stream, error) {
	stride := int64(r.desc.FrameLength())
	if r.pd.Bulk.Length == 0 || stride == 0 {
		return nil, ErrNoPixelData
	}
	offset := r.pd.Bulk.Offset + int64(frame)*stride
	if offset+stride > r.pd.Bulk.End() {
		return nil, fmt.Errorf("frame %d ends at %d past the pixel data %s: %w", frame, offset+stride, r.pd.Bulk, ErrFrameOutOfRange)
	}
	return NewStream(r.path, []int64{offset}, []int64{stride}, r.desc)
}

func (r *Resolver) resolveEncapsulated(frame int) (*Stream, error) {
	nbFragments := r.pd.NumFragments()
	if nbFragments < 2 {
		return nil, fmt.Errorf("encapsulated pixel data has no fragments: %w", ErrNoPixelData)
	}
	frames := r.desc.Frames

	var first, last int
	switch {
	case frames == 1:
		first, last = 1, nbFragments-1
	case frames >= nbFragments-1:
		first = min(frame+1, nbFragments-1)
		last = first
	default:
		starts, err := r.frameStarts()
		if err != nil {
			return nil, err
		}
		first = starts[frame]
		last = nbFragments - 1
		if frame+1 < len(starts) {
			last = starts[frame+1] - 1
		}
	}

	var positions, lengths []int64
	for i := first; i <= last; i++ {
		region := r.pd.Fragments[i].Region
		if region.Length == 0 {
			continue
		}
		positions = append(positions, region.Offset)
		lengths = append(lengths, region.Length)
	}
	return NewStream(r.path, positions, lengths, r.desc)
}

// frameStarts returns the fragment index starting each frame, computed once
func (r *Resolver) frameStarts() ([]int, error) {
	r.once.Do(func() {
		r.starts, r.startErr = r.scanFrameStarts()
	})
	return r.starts, r.startErr
}

func (r *Resolver) scanFrameStarts() ([]int, error) {
	if starts, ok := r.offsetTableStarts(); ok {
		return starts, nil
	}

	var isStart func(i int) bool
	switch {
	case r.syntax.IsJPEGFamily():
		isStart = r.isJPEGStart
	case r.syntax.Family() == transfer.FamilyRLE:
		isStart = r.isRLEStart
	default:
		return nil, fmt.Errorf("%d fragments for %d frames in %s: %w",
			r.pd.NumFragments()-1, r.desc.Frames, r.syntax.Name(), ErrUnsupportedConfiguration)
	}

	var starts []int
	for i := 1; i < r.pd.NumFragments(); i++ {
		if isStart(i) {
			starts = append(starts, i)
		}
	}
	if len(starts) != r.desc.Frames || (len(starts) > 0 && starts[0] != 1) {
		slog.Error("frame boundary scan failed",
			slog.Int("frames", r.desc.Frames), slog.Int("starts", len(starts)), slog.String("syntax", string(r.syntax)))
		return nil, fmt.Errorf("found %d frame starts for %d frames: %w", len(starts), r.desc.Frames, ErrFragmentMismatch)
	}
	return starts, nil
}

// offsetTableStarts maps the Basic Offset Table entries to fragments. The
// table is used only when it has one entry per frame and every entry
// lands on a fragment item.
func (r *Resolver) offsetTableStarts() ([]int, bool) {
	if len(r.pd.Offsets) != r.desc.Frames {
		return nil, false
	}
	byPosition := make(map[uint32]int, r.pd.NumFragments())
	var pos uint32
	for i := 1; i < r.pd.NumFragments(); i++ {
		byPosition[pos] = i
		pos += itemHeaderLength + uint32(r.pd.Fragments[i].Region.Length)
	}
	starts := make([]int, len(r.pd.Offsets))
	for f, off := range r.pd.Offsets {
		i, ok := byPosition[off]
		if !ok || (f > 0 && i <= starts[f-1]) {
			return nil, false
		}
		starts[f] = i
	}
	return starts, starts[0] == 1
}

// fragment returns a reader over the bytes of fragment i
func (r *Resolver) fragment(i int) io.Reader {
	frag := r.pd.Fragments[i]
	if frag.Data != nil || r.src == nil {
		return bytes.NewReader(frag.Data)
	}
	return io.NewSectionReader(r.src, frag.Region.Offset, frag.Region.Length)
}

func (r *Resolver) isJPEGStart(i int) bool {
	_, err := jpegheader.Parse(r.fragment(i))
	return err == nil
}

// isRLEStart checks for the 64 byte RLE header: 1 to 15 segments, the
// first one starting right after the header
func (r *Resolver) isRLEStart(i int) bool {
	var hdr [rle.HeaderLength]byte
	if _, err := io.ReadFull(r.fragment(i), hdr[:]); err != nil {
		return false
	}
	_, err := rle.ParseHeader(hdr[:])
	return err == nil
}
