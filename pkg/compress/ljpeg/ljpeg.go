// Package ljpeg implements the lossless sequential JPEG process (ITU T.81
// process 14, SOF3) over raster images: predictors 1 to 7, point transform,
// precision 2 to 16 bits, one or more interleaved components and restart
// intervals. Huffman tables are optimized per image.
package ljpeg

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jpfielding/dcmimage.go/pkg/raster"
)

const (
	markerSOF3 = 0xC3
	markerDHT  = 0xC4
	markerRST0 = 0xD0
	markerRST7 = 0xD7
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerDRI  = 0xDD
)

var (
	// ErrFormat marks a malformed or truncated stream
	ErrFormat = errors.New("invalid lossless jpeg stream")
	// ErrUnsupported marks a valid stream outside this process
	ErrUnsupported = errors.New("unsupported jpeg process")
)

// Options control the encoder
type Options struct {
	// Predictor is the selection value 1..7, 1 when zero
	Predictor int
	// PointTransform drops low order bits before prediction
	PointTransform int
	// Precision is the sample bit depth, the element width when zero
	Precision int
	// RestartRows places a restart marker every n rows, none when zero
	RestartRows int
}

// Encode writes img as a lossless JPEG stream. Signed samples are coded
// as their two's complement bits within Precision.
func Encode(w io.Writer, img *raster.Image, opts Options) error {
	if img == nil || img.Type.IsFloat() || img.Type.Bits() > 16 {
		return fmt.Errorf("%w: cannot code %v samples", ErrUnsupported, img)
	}
	if img.Channels < 1 || img.Channels > 4 {
		return fmt.Errorf("%w: %d components", ErrUnsupported, img.Channels)
	}
	if img.Width < 1 || img.Height < 1 || img.Width > 0xFFFF || img.Height > 0xFFFF {
		return fmt.Errorf("%w: dimensions %dx%d", ErrUnsupported, img.Width, img.Height)
	}
	if opts.Predictor == 0 {
		opts.Predictor = 1
	}
	if opts.Precision == 0 {
		opts.Precision = img.Type.Bits()
	}
	if opts.Predictor < 1 || opts.Predictor > 7 {
		return fmt.Errorf("%w: predictor %d", ErrUnsupported, opts.Predictor)
	}
	if opts.Precision < 2 || opts.Precision > 16 {
		return fmt.Errorf("%w: precision %d", ErrUnsupported, opts.Precision)
	}
	if opts.PointTransform < 0 || opts.PointTransform >= opts.Precision {
		return fmt.Errorf("%w: point transform %d", ErrUnsupported, opts.PointTransform)
	}
	interval := opts.RestartRows * img.Width
	if opts.RestartRows < 0 || interval > 0xFFFF {
		return fmt.Errorf("%w: restart interval of %d rows", ErrUnsupported, opts.RestartRows)
	}

	s := newScan(img.Width, img.Height, img.Channels, opts.Precision, opts.PointTransform, opts.Predictor, interval)
	mask := int32(1)<<opts.Precision - 1
	samples := make([]int, len(img.Ints))
	for i, v := range img.Ints {
		samples[i] = int((v & mask) >> opts.PointTransform)
	}
	diffs := make([]int, len(samples))
	var counts [numCategories]int
	s.walk(func(i, pred int) error {
		d := (samples[i] - pred) & 0xFFFF
		if d > 0x8000 {
			d -= 0x10000
		}
		diffs[i] = d
		counts[category(d)]++
		return nil
	}, nil, func(i int) int { return samples[i] })

	spec := optimalSpec(counts)
	codes := spec.encodeTable()

	bw := bufio.NewWriter(w)
	writeMarker(bw, markerSOI)
	sof := []byte{byte(opts.Precision), 0, 0, 0, 0, byte(img.Channels)}
	binary.BigEndian.PutUint16(sof[1:], uint16(img.Height))
	binary.BigEndian.PutUint16(sof[3:], uint16(img.Width))
	for c := range img.Channels {
		sof = append(sof, byte(c+1), 0x11, 0)
	}
	writeSegment(bw, markerSOF3, sof)
	dht := []byte{0x00}
	for l := 1; l <= 16; l++ {
		dht = append(dht, byte(spec.bits[l]))
	}
	writeSegment(bw, markerDHT, append(dht, spec.values...))
	if interval > 0 {
		writeSegment(bw, markerDRI, binary.BigEndian.AppendUint16(nil, uint16(interval)))
	}
	sos := []byte{byte(img.Channels)}
	for c := range img.Channels {
		sos = append(sos, byte(c+1), 0x00)
	}
	writeSegment(bw, markerSOS, append(sos, byte(opts.Predictor), 0, byte(opts.PointTransform)))

	out := &bitWriter{w: bw}
	restarts := 0
	s.walk(func(i, _ int) error {
		d := diffs[i]
		ssss := category(d)
		out.writeBits(codes.code[ssss], codes.size[ssss])
		if ssss == 0 || ssss == 16 {
			return nil
		}
		if d < 0 {
			d += 1<<ssss - 1
		}
		out.writeBits(uint32(d), ssss)
		return nil
	}, func() error {
		out.flush()
		writeMarker(bw, byte(markerRST0+restarts%8))
		restarts++
		return nil
	}, func(i int) int { return samples[i] })
	out.flush()
	writeMarker(bw, markerEOI)
	return bw.Flush()
}

func writeMarker(w *bufio.Writer, m byte) {
	w.Write([]byte{0xFF, m})
}

func writeSegment(w *bufio.Writer, m byte, payload []byte) {
	writeMarker(w, m)
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(payload)+2))
	w.Write(n[:])
	w.Write(payload)
}

// Decode reads a lossless JPEG stream. Precision up to 8 bits yields an
// unsigned 8 bit image, wider precision unsigned 16 bit.
func Decode(r io.Reader) (*raster.Image, error) {
	br := bufio.NewReader(r)
	if m, err := readMarker(br); err != nil || m != markerSOI {
		return nil, fmt.Errorf("%w: missing SOI", ErrFormat)
	}
	var (
		f        *frame
		tables   [4]*decodeTable
		interval int
	)
	for {
		m, err := readMarker(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		if m == markerEOI {
			return nil, fmt.Errorf("%w: no scan", ErrFormat)
		}
		seg, err := readSegment(br)
		if err != nil {
			return nil, fmt.Errorf("%w: marker %#x: %w", ErrFormat, m, err)
		}
		switch {
		case m == markerSOF3:
			if f, err = parseFrame(seg); err != nil {
				return nil, err
			}
		case m >= 0xC0 && m <= 0xCF && m != markerDHT && m != 0xC8 && m != 0xCC:
			return nil, fmt.Errorf("%w: start of frame %#x", ErrUnsupported, m)
		case m == markerDHT:
			if err := parseTables(seg, &tables); err != nil {
				return nil, err
			}
		case m == markerDRI:
			if len(seg) < 2 {
				return nil, fmt.Errorf("%w: short DRI", ErrFormat)
			}
			interval = int(binary.BigEndian.Uint16(seg))
		case m == markerSOS:
			if f == nil {
				return nil, fmt.Errorf("%w: scan before frame header", ErrFormat)
			}
			return f.decodeScan(br, seg, tables, interval)
		}
	}
}

type frame struct {
	precision     int
	width, height int
	ids           []byte
}

func parseFrame(seg []byte) (*frame, error) {
	if len(seg) < 6 {
		return nil, fmt.Errorf("%w: short SOF", ErrFormat)
	}
	f := &frame{
		precision: int(seg[0]),
		height:    int(binary.BigEndian.Uint16(seg[1:])),
		width:     int(binary.BigEndian.Uint16(seg[3:])),
	}
	n := int(seg[5])
	if len(seg) < 6+3*n || n < 1 {
		return nil, fmt.Errorf("%w: SOF declares %d components", ErrFormat, n)
	}
	if f.precision < 2 || f.precision > 16 {
		return nil, fmt.Errorf("%w: precision %d", ErrFormat, f.precision)
	}
	if f.width == 0 || f.height == 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrUnsupported, f.width, f.height)
	}
	for c := range n {
		if seg[6+3*c+1] != 0x11 {
			return nil, fmt.Errorf("%w: subsampled component %d", ErrUnsupported, c)
		}
		f.ids = append(f.ids, seg[6+3*c])
	}
	return f, nil
}

func parseTables(seg []byte, tables *[4]*decodeTable) error {
	for len(seg) > 0 {
		if len(seg) < 17 {
			return fmt.Errorf("%w: short DHT", ErrFormat)
		}
		class, id := seg[0]>>4, seg[0]&0x0F
		var spec huffmanSpec
		total := 0
		for l := 1; l <= 16; l++ {
			spec.bits[l] = int(seg[l])
			total += spec.bits[l]
		}
		if len(seg) < 17+total {
			return fmt.Errorf("%w: DHT values", ErrFormat)
		}
		spec.values = seg[17 : 17+total]
		seg = seg[17+total:]
		if class != 0 || id > 3 {
			continue
		}
		t, err := spec.decodeTable()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFormat, err)
		}
		tables[id] = t
	}
	return nil
}

func (f *frame) decodeScan(br *bufio.Reader, seg []byte, tables [4]*decodeTable, interval int) (*raster.Image, error) {
	if len(seg) < 1 || len(seg) < 1+2*int(seg[0])+3 {
		return nil, fmt.Errorf("%w: short SOS", ErrFormat)
	}
	ns := int(seg[0])
	if ns != len(f.ids) {
		return nil, fmt.Errorf("%w: scan codes %d of %d components", ErrUnsupported, ns, len(f.ids))
	}
	order := make([]*decodeTable, ns)
	for k := range ns {
		id, sel := seg[1+2*k], int(seg[2+2*k]>>4)
		if int(id) != int(f.ids[k]) {
			return nil, fmt.Errorf("%w: scan component order", ErrUnsupported)
		}
		if sel > 3 || tables[sel] == nil {
			return nil, fmt.Errorf("%w: missing huffman table %d", ErrFormat, sel)
		}
		order[k] = tables[sel]
	}
	p := seg[1+2*ns:]
	predictor, pt := int(p[0]), int(p[2]&0x0F)
	if predictor < 1 || predictor > 7 {
		return nil, fmt.Errorf("%w: predictor %d", ErrUnsupported, predictor)
	}
	if pt >= f.precision {
		return nil, fmt.Errorf("%w: point transform %d", ErrFormat, pt)
	}
	if interval > 0 && interval%f.width != 0 {
		return nil, fmt.Errorf("%w: restart interval %d is not a multiple of the width", ErrUnsupported, interval)
	}

	typ := raster.Unsigned8
	if f.precision > 8 {
		typ = raster.Unsigned16
	}
	img := raster.New(f.width, f.height, ns, typ)
	bits := &bitReader{r: br}
	s := newScan(f.width, f.height, ns, f.precision, pt, predictor, interval)
	mask := 1<<(f.precision-pt) - 1
	err := s.walk(func(i, pred int) error {
		t := order[i%ns]
		ssss, err := t.decode(bits)
		if err != nil {
			return fmt.Errorf("%w: sample %d: %w", ErrFormat, i, err)
		}
		if ssss > 16 {
			return fmt.Errorf("%w: category %d", ErrFormat, ssss)
		}
		diff := 0
		switch {
		case ssss == 16:
			diff = extend(0, ssss)
		case ssss > 0:
			v, err := bits.readBits(ssss)
			if err != nil {
				return fmt.Errorf("%w: sample %d: %w", ErrFormat, i, err)
			}
			diff = extend(v, ssss)
		}
		img.Ints[i] = int32((pred + diff) & 0xFFFF & mask)
		return nil
	}, bits.restart, func(i int) int { return int(img.Ints[i]) })
	if err != nil {
		return nil, err
	}
	if pt > 0 {
		for i := range img.Ints {
			img.Ints[i] <<= pt
		}
	}
	return img, nil
}

func readMarker(br *bufio.Reader) (byte, error) {
	c, err := br.ReadByte()
	if err != nil {
		return 0, err
	}
	if c != 0xFF {
		return 0, fmt.Errorf("expected marker, found %#x", c)
	}
	for c == 0xFF {
		if c, err = br.ReadByte(); err != nil {
			return 0, err
		}
	}
	return c, nil
}

func readSegment(br *bufio.Reader) ([]byte, error) {
	var n [2]byte
	if _, err := io.ReadFull(br, n[:]); err != nil {
		return nil, err
	}
	size := int(binary.BigEndian.Uint16(n[:]))
	if size < 2 {
		return nil, fmt.Errorf("segment length %d", size)
	}
	seg := make([]byte, size-2)
	if _, err := io.ReadFull(br, seg); err != nil {
		return nil, err
	}
	return seg, nil
}
