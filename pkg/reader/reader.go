// Package reader opens DICOM objects for frame access. Pixel data is not
// loaded with the attributes: each frame is located through the segment
// resolver and read on demand.
package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jpfielding/dcmimage.go/pkg/adapter"
	"github.com/jpfielding/dcmimage.go/pkg/codec"
	"github.com/jpfielding/dcmimage.go/pkg/descriptor"
	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
	"github.com/jpfielding/dcmimage.go/pkg/jpegheader"
	"github.com/jpfielding/dcmimage.go/pkg/lut"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
	"github.com/jpfielding/dcmimage.go/pkg/render"
	"github.com/jpfielding/dcmimage.go/pkg/segment"
)

// ErrUnsupportedTransferSyntax is returned for frames no registered codec
// can decode
var ErrUnsupportedTransferSyntax = errors.New("unsupported transfer syntax")

// headerReadLimit bounds the bytes read to parse a bitstream header
const headerReadLimit = 64 << 10

// Session gives frame access to one DICOM object. A Session is safe for
// concurrent use.
type Session struct {
	path   string
	src    io.ReaderAt
	closer io.Closer

	ds       *dicom.Dataset
	desc     *descriptor.Descriptor
	pd       *dicom.PixelData
	syntax   transfer.Syntax
	resolver *segment.Resolver

	header      *jpegheader.Header
	color       jpegheader.Decision
	keepRGB     bool
	adapterOpts []adapter.Option
}

// Option configures a Session
type Option func(*Session)

// WithLUTCache shares a modality table cache between sessions
func WithLUTCache(c *lut.Cache) Option {
	return func(s *Session) {
		s.adapterOpts = append(s.adapterOpts, adapter.WithCache(c))
	}
}

// WithPresets replaces the per modality window presets
func WithPresets(p map[string][]adapter.Preset) Option {
	return func(s *Session) {
		s.adapterOpts = append(s.adapterOpts, adapter.WithModalityPresets(p))
	}
}

// WithKeepRGBForLossyJPEG trusts an RGB declaration on lossy JPEG streams
func WithKeepRGBForLossyJPEG(keep bool) Option {
	return func(s *Session) {
		s.keepRGB = keep
	}
}

// Open reads the attributes of a file. Close releases the file.
func Open(path string, opts ...Option) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	s, err := openReaderAt(path, f, fi.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// OpenReader reads the attributes of an object held by src
func OpenReader(src io.ReaderAt, size int64, opts ...Option) (*Session, error) {
	return openReaderAt("", src, size, opts...)
}

func openReaderAt(path string, src io.ReaderAt, size int64, opts ...Option) (*Session, error) {
	ds, err := dicom.ParseWithOptions(io.NewSectionReader(src, 0, size), dicom.ReadOptions{SkipPixelBytes: true, Size: size})
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if dicom.GetTransferSyntax(ds).Family() == transfer.FamilyDeflated {
		// offsets of a deflated body do not address the file, keep the
		// inflated pixel bytes instead
		if ds, err = dicom.Parse(io.NewSectionReader(src, 0, size)); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		src = nil
	}
	return newSession(path, src, ds, opts...), nil
}

// FromDataset gives frame access to a dataset parsed with its pixel
// bytes. Fragments are matched to frames by their recorded stream offsets.
func FromDataset(ds *dicom.Dataset, opts ...Option) *Session {
	return newSession("", nil, ds, opts...)
}

func newSession(path string, src io.ReaderAt, ds *dicom.Dataset, opts ...Option) *Session {
	s := &Session{path: path, src: src, ds: ds, syntax: dicom.GetTransferSyntax(ds)}
	for _, opt := range opts {
		opt(s)
	}
	s.pd, _ = dicom.GetPixelData(ds)
	s.desc = descriptor.New(ds)

	var ropts []segment.Option
	if src != nil {
		ropts = append(ropts, segment.WithSource(path, src))
	}
	s.resolver = segment.NewResolver(s.desc, s.pd, s.syntax, ropts...)

	s.inspectHeader()
	s.color = jpegheader.ColorModel(s.desc.Photometric, s.syntax, s.header, s.keepRGB)
	if s.color.Photometric != s.desc.Photometric || s.color.ConvertToRGB {
		slog.Debug("color model decided",
			slog.String("declared", s.desc.Photometric.String()), slog.String("coded", s.color.Photometric.String()),
			slog.Bool("convert", s.color.ConvertToRGB), slog.String("rule", s.color.Rule))
	}
	return s
}

// inspectHeader parses the bitstream header of the first frame. Its sample
// precision becomes the compressed bit depth of the object.
func (s *Session) inspectHeader() {
	if s.pd == nil || !s.pd.IsEncapsulated || s.syntax.Family() == transfer.FamilyRLE {
		return
	}
	stream, err := s.resolver.Resolve(0)
	if err != nil {
		slog.Warn("cannot locate the first frame", slog.String("path", s.path), slog.Any("err", err))
		return
	}
	r, err := s.open(stream)
	if err != nil {
		slog.Warn("cannot read the first frame", slog.String("path", s.path), slog.Any("err", err))
		return
	}
	hdr, err := jpegheader.Parse(io.LimitReader(r, headerReadLimit))
	if err != nil {
		slog.Warn("no bitstream header in the first frame",
			slog.String("path", s.path), slog.String("syntax", s.syntax.Name()), slog.Any("err", err))
		return
	}
	s.header = hdr
	if hdr.Bits > 0 {
		s.desc.BitsCompressed = min(hdr.Bits, s.desc.BitsAllocated)
	}
}

// Dataset returns the attributes of the object
func (s *Session) Dataset() *dicom.Dataset { return s.ds }

// Descriptor returns the image description of the object
func (s *Session) Descriptor() *descriptor.Descriptor { return s.desc }

// Syntax returns the transfer syntax of the pixel data
func (s *Session) Syntax() transfer.Syntax { return s.syntax }

// Header returns the bitstream header of the first frame, nil for native
// and RLE pixel data
func (s *Session) Header() *jpegheader.Header { return s.header }

// NumFrames returns the frame count
func (s *Session) NumFrames() int { return s.desc.Frames }

// Photometric returns the color model of the frames ReadFrame returns
func (s *Session) Photometric() descriptor.PhotometricInterpretation {
	if s.color.ConvertToRGB {
		return descriptor.RGB
	}
	return s.color.Photometric
}

// Stream returns the byte segments of a frame
func (s *Session) Stream(frame int) (*segment.Stream, error) {
	return s.resolver.Resolve(frame)
}

// FrameBytes returns the stored bitstream of a frame without decoding it
func (s *Session) FrameBytes(frame int) ([]byte, error) {
	stream, err := s.resolver.Resolve(frame)
	if err != nil {
		return nil, err
	}
	return s.readAll(stream)
}

// ReadFrame decodes a frame. Samples are interleaved and color frames in
// a YCbCr model are converted to RGB. Palette indexes are returned as
// stored.
func (s *Session) ReadFrame(ctx context.Context, frame int) (*raster.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stream, err := s.resolver.Resolve(frame)
	if err != nil {
		return nil, err
	}
	b, err := s.readAll(stream)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", frame, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := s.decode(b)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", frame, err)
	}
	if s.color.ConvertToRGB && img.Channels == 3 {
		if img, err = raster.YBRToRGB(img); err != nil {
			return nil, fmt.Errorf("frame %d: %w", frame, err)
		}
	}
	slog.DebugContext(ctx, "frame decoded",
		slog.Int("frame", frame), slog.Int64("bytes", stream.Len()), slog.String("image", img.String()))
	return img, nil
}

func (s *Session) layout() raster.Layout {
	return raster.Layout{
		Width:         s.desc.Columns,
		Height:        s.desc.Rows,
		Samples:       s.desc.SamplesPerPixel,
		Planar:        s.desc.IsBanded(),
		BitsAllocated: s.desc.BitsAllocated,
		Signed:        s.desc.IsSigned(),
		Float:         s.desc.IsFloatPixelData(),
		BigEndian:     s.pd.BigEndian || s.syntax == transfer.ExplicitVRBigEndian,
	}
}

func (s *Session) decode(b []byte) (*raster.Image, error) {
	l := s.layout()
	if !s.pd.IsEncapsulated {
		pmi := s.desc.Photometric
		if (pmi == descriptor.YBRFull422 || pmi == descriptor.YBRPartial422) && l.Samples == 3 && l.BitsAllocated == 8 {
			expanded, err := raster.Expand422(b, l.Width, l.Height)
			if err != nil {
				return nil, err
			}
			l.Planar = false
			return raster.FromBytes(expanded, l)
		}
		return raster.FromBytes(b, l)
	}

	c, err := codec.ForSyntax(s.syntax)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedTransferSyntax, err)
	}
	img, err := c.Decode(b, l)
	if err != nil {
		return nil, fmt.Errorf("%s decode: %w", c.Name(), err)
	}
	if img.Width != l.Width || img.Height != l.Height {
		slog.Warn("decoded size differs from the attributes",
			slog.Int("width", img.Width), slog.Int("height", img.Height),
			slog.Int("columns", l.Width), slog.Int("rows", l.Height))
	}
	return img, nil
}

// open returns a reader over the segments of a stream
func (s *Session) open(stream *segment.Stream) (io.Reader, error) {
	if s.src != nil {
		return stream.Open(s.src), nil
	}
	b, err := s.readAll(stream)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

// readAll reads a frame from the file, or from the pixel bytes kept with
// the dataset when there is no file
func (s *Session) readAll(stream *segment.Stream) ([]byte, error) {
	if s.src != nil {
		return stream.ReadAll(s.src)
	}
	if !s.pd.IsEncapsulated {
		start := stream.Positions[0] - s.pd.Bulk.Offset
		end := start + stream.Lengths[0]
		if start < 0 || end > int64(len(s.pd.Native)) {
			return nil, fmt.Errorf("pixel bytes [%d:%d] not loaded: %w", start, end, segment.ErrNoPixelData)
		}
		return s.pd.Native[start:end], nil
	}
	loaded := make(map[int64][]byte, len(s.pd.Fragments))
	for _, f := range s.pd.Fragments[1:] {
		loaded[f.Region.Offset] = f.Data
	}
	var out []byte
	for i, pos := range stream.Positions {
		data, ok := loaded[pos]
		if !ok || int64(len(data)) < stream.Lengths[i] {
			return nil, fmt.Errorf("fragment at %d not loaded: %w", pos, segment.ErrNoPixelData)
		}
		out = append(out, data[:stream.Lengths[i]]...)
	}
	return out, nil
}

// RenderFrame decodes a frame and maps it to 8 bit display values.
// Palette color frames go through their palette and are never windowed.
func (s *Session) RenderFrame(ctx context.Context, frame int, p *render.ReadParam) (*raster.Image, error) {
	img, err := s.ReadFrame(ctx, frame)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = render.NewReadParam()
	}
	if s.desc.Photometric == descriptor.PaletteColor && s.desc.Palette != nil && img.Channels == 1 {
		return s.desc.Palette.Apply(img), nil
	}
	return render.DefaultRenderedImage(img, s.desc, p, frame, s.adapterOpts...)
}

// ModalityFrame decodes a frame and returns its modality values
func (s *Session) ModalityFrame(ctx context.Context, frame int, p *render.ReadParam) (*raster.Image, error) {
	img, err := s.ReadFrame(ctx, frame)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = render.NewReadParam()
	}
	return render.RawRenderedImage(img, s.desc, p, frame, s.adapterOpts...)
}

// Adapter measures a decoded frame for display
func (s *Session) Adapter(img *raster.Image, frame int) *adapter.Adapter {
	return adapter.New(img, s.desc, frame, s.adapterOpts...)
}

// Close releases the file of a session made by Open
func (s *Session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
