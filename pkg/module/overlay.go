package module

import (
	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
)

// overlay groups 6000-601E
const overlayGroups = 16

// EmbeddedOverlay is an overlay plane stored in the unused high bits of
// the pixel data (retired encoding)
type EmbeddedOverlay struct {
	GroupOffset int // overlay index 0..15
	BitPosition int
}

// OverlayData is an overlay plane carried in Overlay Data (60xx,3000),
// bit packed least significant bit first
type OverlayData struct {
	GroupOffset int
	Rows        int
	Columns     int
	Type        string // G or R
	Description string
	Origin      [2]int // 1-based row, column of the first overlay pixel
	Frames      int
	FrameOrigin int // 1-based image frame of the first overlay frame
	Data        []byte
}

// EmbeddedOverlays returns the overlay planes stored in pixel data bits
func EmbeddedOverlays(ds *dicom.Dataset) []EmbeddedOverlay {
	var out []EmbeddedOverlay
	for i := 0; i < overlayGroups; i++ {
		if _, ok := ds.Get(tag.Overlay(i, tag.OverlayRows)); !ok {
			continue
		}
		if dicom.GetInt(ds, tag.Overlay(i, tag.OverlayBitsAllocated), 1) == 1 {
			continue
		}
		if _, ok := ds.Get(tag.Overlay(i, tag.OverlayData)); ok {
			continue
		}
		out = append(out, EmbeddedOverlay{
			GroupOffset: i,
			BitPosition: dicom.GetInt(ds, tag.Overlay(i, tag.OverlayBitPosition), 0),
		})
	}
	return out
}

// Overlays returns the overlay planes with Overlay Data
func Overlays(ds *dicom.Dataset) []OverlayData {
	var out []OverlayData
	for i := 0; i < overlayGroups; i++ {
		data := dicom.GetBytes(ds, tag.Overlay(i, tag.OverlayData))
		if len(data) == 0 {
			continue
		}
		o := OverlayData{
			GroupOffset: i,
			Rows:        dicom.GetInt(ds, tag.Overlay(i, tag.OverlayRows), 0),
			Columns:     dicom.GetInt(ds, tag.Overlay(i, tag.OverlayColumns), 0),
			Type:        dicom.GetString(ds, tag.Overlay(i, tag.OverlayType), "G"),
			Description: dicom.GetString(ds, tag.Overlay(i, tag.OverlayDescription), ""),
			Origin:      [2]int{1, 1},
			Frames:      max(dicom.GetInt(ds, tag.Overlay(i, tag.NumberOfFramesInOverlay), 1), 1),
			FrameOrigin: max(dicom.GetInt(ds, tag.Overlay(i, tag.ImageFrameOrigin), 1), 1),
			Data:        data,
		}
		if origin := dicom.GetInts(ds, tag.Overlay(i, tag.OverlayOrigin)); len(origin) == 2 {
			o.Origin = [2]int{origin[0], origin[1]}
		}
		if o.Rows > 0 && o.Columns > 0 {
			out = append(out, o)
		}
	}
	return out
}

// CoversFrame reports whether the overlay has a plane for the 0-based
// image frame
func (o OverlayData) CoversFrame(frame int) bool {
	first := o.FrameOrigin - 1
	return frame >= first && frame < first+o.Frames
}

// IsSet reports whether the overlay bit at (row, col) of the plane for
// the 0-based image frame is set
func (o OverlayData) IsSet(frame, row, col int) bool {
	if !o.CoversFrame(frame) || row < 0 || col < 0 || row >= o.Rows || col >= o.Columns {
		return false
	}
	idx := (frame-(o.FrameOrigin-1))*o.Rows*o.Columns + row*o.Columns + col
	if idx/8 >= len(o.Data) {
		return false
	}
	return o.Data[idx/8]&(1<<(idx%8)) != 0
}
