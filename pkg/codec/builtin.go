package codec

import (
	"bytes"
	"fmt"

	"github.com/jpfielding/dcmimage.go/pkg/compress/ljpeg"
	"github.com/jpfielding/dcmimage.go/pkg/compress/rle"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
	"github.com/jpfielding/dcmimage.go/pkg/jpegheader"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
)

// rleCodec implements RLE Lossless
type rleCodec struct{}

func (rleCodec) Encode(img *raster.Image, _ []int) ([]byte, error) {
	return rle.Encode(img)
}

func (rleCodec) Decode(data []byte, l raster.Layout) (*raster.Image, error) {
	return rle.Decode(data, l)
}

func (rleCodec) Name() string {
	return "rle"
}

func (rleCodec) Syntaxes() []transfer.Syntax {
	return []transfer.Syntax{transfer.RLELossless}
}

// losslessJPEGCodec implements JPEG Lossless, process 14, with any
// predictor or first order prediction only
type losslessJPEGCodec struct{}

func (losslessJPEGCodec) Encode(img *raster.Image, params []int) ([]byte, error) {
	opts := ljpeg.Options{
		Predictor:      Param(params, ParamJPEGPrediction),
		PointTransform: Param(params, ParamJPEGPointTransform),
		Precision:      Param(params, ParamBitsPerSample),
	}
	var buf bytes.Buffer
	if err := ljpeg.Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode returns samples of the layout type. Signed layouts are sign
// extended from the stream precision.
func (losslessJPEGCodec) Decode(data []byte, l raster.Layout) (*raster.Image, error) {
	hdr, err := jpegheader.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("lossless jpeg header: %w", err)
	}
	img, err := ljpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if l.Float || l.BitsAllocated > 16 {
		return nil, fmt.Errorf("%w: %d bit samples in a lossless jpeg stream", ljpeg.ErrUnsupported, l.BitsAllocated)
	}
	if l.Signed && hdr.Bits < 32 {
		shift := 32 - hdr.Bits
		for i, v := range img.Ints {
			img.Ints[i] = v << shift >> shift
		}
	}
	img.Type = l.ElemType()
	return img, nil
}

func (losslessJPEGCodec) Name() string {
	return "jpeg-lossless"
}

func (losslessJPEGCodec) Syntaxes() []transfer.Syntax {
	return []transfer.Syntax{transfer.JPEGLossless, transfer.JPEGLosslessSV1}
}
