package module

import (
	"log/slog"

	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
	"github.com/jpfielding/dcmimage.go/pkg/lut"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
)

// PaletteColorLUT holds the red, green and blue tables of a PALETTE COLOR
// image (Part 3 Section C.7.6.3)
type PaletteColorLUT struct {
	Red   *lut.LookupTable
	Green *lut.LookupTable
	Blue  *lut.LookupTable
}

// PaletteColorLUTFromDataset reads the three palette tables, nil when any
// is missing or invalid
func PaletteColorLUTFromDataset(ds *dicom.Dataset) *PaletteColorLUT {
	read := func(desc, data tag.Tag) *lut.LookupTable {
		t, err := lut.FromDescriptor(dicom.GetInts(ds, desc), dicom.GetBytes(ds, data), false)
		if err != nil {
			slog.Warn("invalid palette color lut", slog.String("tag", desc.String()), slog.Any("err", err))
			return nil
		}
		return t
	}
	p := &PaletteColorLUT{
		Red:   read(tag.RedPaletteColorLUTDescriptor, tag.RedPaletteColorLUTData),
		Green: read(tag.GreenPaletteColorLUTDescriptor, tag.GreenPaletteColorLUTData),
		Blue:  read(tag.BluePaletteColorLUTDescriptor, tag.BluePaletteColorLUTData),
	}
	if p.Red == nil || p.Green == nil || p.Blue == nil {
		return nil
	}
	return p
}

// Apply maps a single channel index image to 8 bit RGB
func (p *PaletteColorLUT) Apply(img *raster.Image) *raster.Image {
	out := raster.New(img.Width, img.Height, 3, raster.Unsigned8)
	tables := [3]*lut.LookupTable{p.Red, p.Green, p.Blue}
	for i := 0; i < img.Width*img.Height; i++ {
		v := int(img.Sample(i * img.Channels))
		for c, t := range tables {
			e := t.Lookup(v)
			if t.Type == raster.Unsigned16 {
				e >>= 8
			}
			out.Ints[i*3+c] = e
		}
	}
	return out
}
