// Package codec holds the pixel data codecs shared by the reader and the
// writer, registered by name and by transfer syntax. RLE and lossless
// JPEG are built in; other families register from outside.
package codec

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
)

// ErrCodecNotFound is returned when no codec serves a transfer syntax
var ErrCodecNotFound = errors.New("codec not found")

// Encoder compresses one frame. params follows the Param* layout.
type Encoder interface {
	Encode(img *raster.Image, params []int) ([]byte, error)
}

// Decoder decompresses one frame. The layout gives geometry and the
// sample type the caller expects.
type Decoder interface {
	Decode(data []byte, l raster.Layout) (*raster.Image, error)
}

// Codec is a registered encoder and decoder pair
type Codec interface {
	Encoder
	Decoder
	// Name returns the codec identifier, such as "rle"
	Name() string
	// Syntaxes returns the transfer syntaxes the codec serves
	Syntaxes() []transfer.Syntax
}

type registry struct {
	mu       sync.RWMutex
	byName   map[string]Codec
	bySyntax map[transfer.Syntax]Codec
}

var codecs = &registry{
	byName:   map[string]Codec{},
	bySyntax: map[transfer.Syntax]Codec{},
}

func init() {
	Register(rleCodec{})
	Register(losslessJPEGCodec{})
}

// Register adds a codec, replacing any codec with the same name or
// syntaxes
func Register(c Codec) {
	codecs.mu.Lock()
	defer codecs.mu.Unlock()
	codecs.byName[c.Name()] = c
	for _, ts := range c.Syntaxes() {
		codecs.bySyntax[ts] = c
	}
}

// ByName returns the codec registered under name
func ByName(name string) (Codec, error) {
	codecs.mu.RLock()
	defer codecs.mu.RUnlock()
	if c, ok := codecs.byName[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%q: %w", name, ErrCodecNotFound)
}

// ForSyntax returns the codec serving a transfer syntax
func ForSyntax(ts transfer.Syntax) (Codec, error) {
	codecs.mu.RLock()
	defer codecs.mu.RUnlock()
	if c, ok := codecs.bySyntax[ts]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%s: %w", ts.Name(), ErrCodecNotFound)
}

// Names returns the registered codec names, sorted
func Names() []string {
	codecs.mu.RLock()
	defer codecs.mu.RUnlock()
	names := make([]string, 0, len(codecs.byName))
	for n := range codecs.byName {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
