// Package output writes decoded frames back to DICOM: it picks a transfer
// syntax every frame can be stored with, synchronizes the image pixel
// attributes, and writes native or encapsulated pixel data.
package output

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/jpfielding/dcmimage.go/pkg/codec"
	"github.com/jpfielding/dcmimage.go/pkg/descriptor"
	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/uid"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
)

var (
	// ErrEncode wraps encoder failures, including empty output
	ErrEncode = errors.New("encoding failed")
	// ErrUnsupportedSyntax is returned when no encoder serves the syntax
	ErrUnsupportedSyntax = errors.New("unsupported output transfer syntax")
)

// Data is a set of frames of equal geometry bound for one output object
type Data struct {
	frames  []*raster.Image
	desc    *descriptor.Descriptor
	syntax  transfer.Syntax
	encoder codec.Encoder
}

// Option configures Data
type Option func(*Data)

// WithEncoder overrides the registered codec of the output syntax
func WithEncoder(e codec.Encoder) Option {
	return func(d *Data) {
		d.encoder = e
	}
}

// New binds frames to an output syntax adapted from requested
func New(frames []*raster.Image, desc *descriptor.Descriptor, requested transfer.Syntax, opts ...Option) (*Data, error) {
	if len(frames) == 0 || frames[0] == nil {
		return nil, errors.New("no frames to write")
	}
	first := frames[0]
	for i, f := range frames[1:] {
		if f == nil || f.Width != first.Width || f.Height != first.Height || f.Channels != first.Channels || f.Type != first.Type {
			return nil, fmt.Errorf("frame %d (%v) differs from frame 0 (%v)", i+1, f, first)
		}
	}
	d := &Data{frames: frames, desc: desc}
	d.syntax = AdaptSuitableSyntax(desc.BitsStored, first.Type, requested)
	if d.syntax != requested {
		slog.Info("output syntax adapted",
			slog.String("requested", requested.Name()), slog.String("syntax", d.syntax.Name()),
			slog.String("type", first.Type.String()), slog.Int("bitsStored", desc.BitsStored))
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Syntax returns the adapted transfer syntax
func (d *Data) Syntax() transfer.Syntax {
	return d.syntax
}

// Path returns the write path of the adapted syntax
func (d *Data) Path() WritePath {
	return SelectWritePath(d.syntax)
}

// Write updates ds with the frames through the path the adapted syntax
// selects
func (d *Data) Write(ds *dicom.Dataset, param *WriteParam) error {
	if d.Path() == PathRaw {
		return d.WriteRaw(ds)
	}
	return d.WriteCompressed(ds, param)
}

// isSigned follows the element type, with unsigned 16 bit samples of a
// signed object counted as signed
func (d *Data) isSigned(t raster.ElemType) bool {
	return t != raster.Unsigned8 && (t != raster.Unsigned16 || d.desc.IsSigned())
}

// AdaptTagsToCompressedImage writes the pixel attributes of img encoded
// with param into ds and returns the encoder parameters. param is updated
// where the data forces it: signed JPEG-LS is coded lossless.
func (d *Data) AdaptTagsToCompressedImage(ds *dicom.Dataset, img *raster.Image, param *WriteParam) []int {
	signed := d.isSigned(img.Type)
	bitsAllocated := img.Type.Size() * 8
	bitsCompressed := min(d.desc.BitsCompressed, bitsAllocated)
	family := param.Syntax.Family()

	if family == transfer.FamilyJPEGLS && signed && param.NearLosslessError != 0 {
		slog.Warn("signed samples force lossless JPEG-LS", slog.Int("nearLosslessError", param.NearLosslessError))
		param.NearLosslessError = 0
	}
	if bitsCompressed == 8 && bitsAllocated == 16 && family != transfer.FamilyJPEG2000 && family != transfer.FamilyHTJ2K {
		bitsCompressed = 12
	}
	if param.Syntax.IsJPEGLossless() && param.Prediction > 1 && signed && bitsCompressed == 12 {
		bitsCompressed = 16
	}

	pmi := d.outputPhotometric(img, param.Syntax)
	flags := codec.FlagUnsigned
	if signed {
		flags |= codec.FlagSigned
	}
	if img.Type.IsFloat() {
		flags |= codec.FlagFloat
	}
	if family == transfer.FamilyRLE {
		flags |= codec.FlagRLE
	}
	if pmi.IsYBR() {
		flags |= codec.FlagYBR
	}

	params := codec.NewParams()
	params[codec.ParamDCMRead] = flags
	params[codec.ParamWidth] = img.Width
	params[codec.ParamHeight] = img.Height
	params[codec.ParamCompression] = param.CompressionType()
	params[codec.ParamComponents] = img.Channels
	params[codec.ParamBitsPerSample] = bitsCompressed
	params[codec.ParamInterleaveMode] = codec.InterleaveNone
	if img.Channels > 1 {
		params[codec.ParamInterleaveMode] = codec.InterleaveSample
	}
	params[codec.ParamColorModel] = colorModel(pmi)
	params[codec.ParamJPEGMode] = param.JPEGMode()
	params[codec.ParamJPEGLSLossyError] = param.nearLosslessError()
	params[codec.ParamJ2KCompressionFactor] = param.compressionRatioFactor()
	params[codec.ParamJPEGQuality] = param.CompressionQuality
	params[codec.ParamJPEGPrediction] = param.Prediction
	params[codec.ParamJPEGPointTransform] = param.PointTransform

	pixelRepresentation := 0
	if signed {
		pixelRepresentation = 1
	}
	d.setImagePixel(ds, img, pmi, bitsAllocated, bitsCompressed, pixelRepresentation)
	return params
}

// outputPhotometric returns the color model of img once coded with ts
func (d *Data) outputPhotometric(img *raster.Image, ts transfer.Syntax) descriptor.PhotometricInterpretation {
	if img.Channels == 1 {
		if d.desc.Photometric.IsMonochrome() || d.desc.Photometric == descriptor.PaletteColor {
			return d.desc.Photometric
		}
		return descriptor.Monochrome2
	}
	// decoded color frames are RGB
	return descriptor.RGB.Compress(ts)
}

func colorModel(p descriptor.PhotometricInterpretation) int {
	switch p {
	case descriptor.PaletteColor:
		return codec.ColorPalette
	case descriptor.RGB:
		return codec.ColorRGB
	case descriptor.YBRFull:
		return codec.ColorYBRFull
	case descriptor.YBRFull422:
		return codec.ColorYBRFull422
	case descriptor.YBRPartial422, descriptor.YBRPartial420:
		return codec.ColorYBRPartial
	case descriptor.YBRICT:
		return codec.ColorYBRICT
	case descriptor.YBRRCT:
		return codec.ColorYBRRCT
	}
	return codec.ColorMonochrome
}

func (d *Data) setImagePixel(ds *dicom.Dataset, img *raster.Image, pmi descriptor.PhotometricInterpretation, bitsAllocated, bitsStored, pixelRepresentation int) {
	ds.Set(tag.Columns, "US", uint16(img.Width))
	ds.Set(tag.Rows, "US", uint16(img.Height))
	ds.Set(tag.SamplesPerPixel, "US", uint16(img.Channels))
	ds.Set(tag.BitsAllocated, "US", uint16(bitsAllocated))
	ds.Set(tag.PhotometricInterpretation, "CS", pmi.String())
	if img.Type.IsFloat() {
		// float pixel data carries no stored bits
		ds.Remove(tag.BitsStored)
		ds.Remove(tag.HighBit)
		ds.Remove(tag.PixelRepresentation)
	} else {
		ds.Set(tag.BitsStored, "US", uint16(bitsStored))
		ds.Set(tag.HighBit, "US", uint16(bitsStored-1))
		ds.Set(tag.PixelRepresentation, "US", uint16(pixelRepresentation))
	}
	if img.Channels > 1 {
		ds.Set(tag.PlanarConfiguration, "US", uint16(0))
	} else {
		ds.Remove(tag.PlanarConfiguration)
	}
	if d.desc.PresentationLUTShape != "" && pmi.IsMonochrome() {
		ds.Set(tag.PresentationLUTShape, "CS", d.desc.PresentationLUTShape)
	}
	if len(d.frames) > 1 {
		ds.Set(tag.NumberOfFrames, "IS", strconv.Itoa(len(d.frames)))
	}
}

// WriteCompressed encodes every frame into encapsulated pixel data with a
// Basic Offset Table. Frames coded irreversibly append their ratio and
// method to the lossy compression attributes and the instance gets a new
// SOP Instance UID.
func (d *Data) WriteCompressed(ds *dicom.Dataset, param *WriteParam) error {
	param = param.WithSyntax(d.syntax)
	if err := param.Validate(); err != nil {
		return err
	}
	enc := d.encoder
	if enc == nil {
		c, err := codec.ForSyntax(d.syntax)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnsupportedSyntax, err)
		}
		enc = c
	}

	params := d.AdaptTagsToCompressedImage(ds, d.frames[0], param)
	var lossy bool
	pd := &dicom.PixelData{IsEncapsulated: true, Fragments: []dicom.Fragment{{}}}
	var offset uint32
	for i, img := range d.frames {
		// encoders may adjust their copy to the mode they actually ran
		fp := slices.Clone(params)
		b, err := enc.Encode(img, fp)
		if err != nil {
			return fmt.Errorf("frame %d: %w: %w", i, ErrEncode, err)
		}
		if len(b) == 0 {
			return fmt.Errorf("frame %d: %w: encoder returned no data", i, ErrEncode)
		}
		pd.Offsets = append(pd.Offsets, offset)
		pd.Fragments = append(pd.Fragments, dicom.Fragment{Region: dicom.ByteRegion{Length: int64(len(b))}, Data: b})
		offset += uint32(8 + len(b) + len(b)%2)

		if codec.IsLossy(fp) {
			lossy = true
			ratio := float64(img.Len()*img.Type.Size()) / float64(len(b))
			appendLossyCompression(ds, ratio, param.Syntax.LossyMethod())
		}
		slog.Debug("frame encoded", slog.Int("frame", i), slog.Int("bytes", len(b)), slog.String("syntax", d.syntax.Name()))
	}
	pd.Fragments[0].Region.Length = int64(4 * len(pd.Offsets))

	ds.Remove(tag.FloatPixelData)
	ds.Remove(tag.DoubleFloatPixelData)
	ds.Set(tag.PixelData, "OB", pd)
	ds.Set(tag.TransferSyntaxUID, "UI", string(d.syntax))
	if lossy {
		ds.Set(tag.LossyImageCompression, "CS", "01")
		renewInstanceUID(ds)
	}
	return nil
}

// appendLossyCompression adds one ratio and method entry. Earlier ratios
// without a method get "unknown".
func appendLossyCompression(ds *dicom.Dataset, ratio float64, method string) {
	ratios := dicom.GetStrings(ds, tag.LossyImageCompressionRatio)
	if len(ratios) == 0 {
		for _, r := range dicom.GetFloats(ds, tag.LossyImageCompressionRatio) {
			ratios = append(ratios, strconv.FormatFloat(r, 'g', -1, 64))
		}
	}
	methods := dicom.GetStrings(ds, tag.LossyImageCompressionMethod)
	for len(methods) < len(ratios) {
		methods = append(methods, "")
	}
	ratios = append(ratios, formatRatio(ratio))
	methods = append(methods, method)
	for i, m := range methods {
		if strings.TrimSpace(m) == "" {
			methods[i] = "unknown"
		}
	}
	ds.Set(tag.LossyImageCompressionRatio, "DS", strings.Join(ratios, `\`))
	ds.Set(tag.LossyImageCompressionMethod, "CS", strings.Join(methods, `\`))
}

func formatRatio(r float64) string {
	s := strconv.FormatFloat(r, 'f', 4, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if len(s) > 16 {
		s = s[:16]
	}
	return s
}

// renewInstanceUID replaces the SOP Instance UID of a lossy copy
func renewInstanceUID(ds *dicom.Dataset) {
	old := dicom.GetString(ds, tag.SOPInstanceUID, "")
	next := uid.New()
	if old != "" {
		next = uid.Derive(old, "lossy")
	}
	ds.Set(tag.SOPInstanceUID, "UI", next)
	if _, ok := ds.Get(tag.MediaStorageSOPInstanceUID); ok {
		ds.Set(tag.MediaStorageSOPInstanceUID, "UI", next)
	}
}

// WriteRaw writes the frames as native little endian pixel data. Float
// frames go to Float or Double Float Pixel Data.
func (d *Data) WriteRaw(ds *dicom.Dataset) error {
	img := d.frames[0]
	bitsAllocated := img.Type.Size() * 8
	bitsStored := bitsAllocated
	if !img.Type.IsFloat() {
		bitsStored = min(max(d.desc.BitsStored, 1), bitsAllocated)
	}
	pixelRepresentation := 0
	if d.isSigned(img.Type) {
		pixelRepresentation = 1
	}
	pmi := d.outputPhotometric(img, transfer.ExplicitVRLittleEndian)
	d.setImagePixel(ds, img, pmi, bitsAllocated, bitsStored, pixelRepresentation)

	var native []byte
	for _, f := range d.frames {
		native = append(native, raster.ToBytes(f)...)
	}
	pd := &dicom.PixelData{Native: native, Bulk: dicom.ByteRegion{Length: int64(len(native))}}

	ds.Remove(tag.PixelData)
	ds.Remove(tag.FloatPixelData)
	ds.Remove(tag.DoubleFloatPixelData)
	switch {
	case img.Type == raster.Float32:
		ds.Set(tag.FloatPixelData, "OF", pd)
	case img.Type == raster.Float64:
		ds.Set(tag.DoubleFloatPixelData, "OD", pd)
	case bitsAllocated <= 8:
		ds.Set(tag.PixelData, "OB", pd)
	default:
		ds.Set(tag.PixelData, "OW", pd)
	}
	ds.Set(tag.TransferSyntaxUID, "UI", string(transfer.ExplicitVRLittleEndian))
	return nil
}
