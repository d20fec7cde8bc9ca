package ljpeg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// bitWriter packs codes most significant bit first, stuffing a zero after
// every 0xFF
type bitWriter struct {
	w   *bufio.Writer
	acc uint64
	n   int
}

func (b *bitWriter) writeBits(v uint32, n int) {
	if n == 0 {
		return
	}
	b.acc = b.acc<<n | uint64(v&(1<<n-1))
	b.n += n
	for b.n >= 8 {
		b.n -= 8
		c := byte(b.acc >> b.n)
		b.w.WriteByte(c)
		if c == 0xFF {
			b.w.WriteByte(0)
		}
	}
}

// flush pads the last byte with ones
func (b *bitWriter) flush() {
	if b.n > 0 {
		b.writeBits(1<<(8-b.n)-1, 8-b.n)
	}
	b.acc, b.n = 0, 0
}

// maximum zero bytes fed past a marker before the scan is called truncated
const maxPadding = 64

// bitReader unstuffs entropy coded bytes. A marker ends the data; reads
// past it return zero bits.
type bitReader struct {
	r      *bufio.Reader
	acc    uint64
	n      int
	marker byte
	padded int
}

func (b *bitReader) fill() error {
	for b.n <= 48 {
		if b.marker != 0 {
			if b.padded++; b.padded > maxPadding {
				return fmt.Errorf("scan data ends at marker %#x: %w", b.marker, io.ErrUnexpectedEOF)
			}
			b.acc <<= 8
			b.n += 8
			continue
		}
		c, err := b.r.ReadByte()
		if errors.Is(err, io.EOF) {
			b.marker = markerEOI
			continue
		} else if err != nil {
			return err
		}
		if c == 0xFF {
			next, err := b.r.ReadByte()
			for err == nil && next == 0xFF {
				next, err = b.r.ReadByte()
			}
			if errors.Is(err, io.EOF) {
				b.marker = markerEOI
				continue
			} else if err != nil {
				return err
			}
			if next != 0 {
				b.marker = next
				continue
			}
		}
		b.acc = b.acc<<8 | uint64(c)
		b.n += 8
	}
	return nil
}

func (b *bitReader) readBits(n int) (int, error) {
	if n == 0 {
		return 0, nil
	}
	if b.n < n {
		if err := b.fill(); err != nil {
			return 0, err
		}
	}
	b.n -= n
	return int(b.acc>>b.n) & (1<<n - 1), nil
}

// restart drops the buffered bits and consumes the next RSTn marker
func (b *bitReader) restart() error {
	b.acc, b.n, b.padded = 0, 0, 0
	if b.marker != 0 {
		m := b.marker
		b.marker = 0
		if m < markerRST0 || m > markerRST7 {
			return fmt.Errorf("expected a restart marker, found %#x", m)
		}
		return nil
	}
	for {
		c, err := b.r.ReadByte()
		if err != nil {
			return fmt.Errorf("restart marker: %w", err)
		}
		if c != 0xFF {
			continue
		}
		next, err := b.r.ReadByte()
		if err != nil {
			return fmt.Errorf("restart marker: %w", err)
		}
		if next >= markerRST0 && next <= markerRST7 {
			return nil
		}
	}
}
