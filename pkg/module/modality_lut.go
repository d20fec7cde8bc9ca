// Package module reads the pixel transformation modules of an image: the
// Modality LUT, VOI LUT and Presentation LUT modules and the overlay planes.
package module

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
	"github.com/jpfielding/dcmimage.go/pkg/lut"
)

// ModalityLUTModule represents the Modality LUT Module
// Per DICOM Part 3 Section C.11.1
// Either a linear rescale or an explicit LUT maps stored values to
// modality units.
type ModalityLUTModule struct {
	mu               sync.RWMutex
	rescaleSlope     *float64
	rescaleIntercept *float64
	rescaleType      string

	// Modality LUT Sequence (first item)
	LUTType        string
	LUTExplanation string
	LUT            *lut.LookupTable

	overlayAdapted atomic.Bool
}

// NewModalityLUTModule creates a module with an optional rescale
func NewModalityLUTModule(slope, intercept *float64, rescaleType string) *ModalityLUTModule {
	return &ModalityLUTModule{rescaleSlope: slope, rescaleIntercept: intercept, rescaleType: rescaleType}
}

// modalities whose rescale is not applied for display (IHE BIR, Windowing
// and Rendering 4.16.4.2.2.5.4)
var skipRescale = map[string]bool{"MR": true, "XA": true, "XRF": true, "PT": true}

// ModalityLUTFromDataset reads the module from a dataset (or a functional
// group item)
func ModalityLUTFromDataset(ds *dicom.Dataset) *ModalityLUTModule {
	m := &ModalityLUTModule{}
	modality := dicom.GetString(ds, tag.Modality, "")

	slope, hasSlope := dicom.LookupFloat(ds, tag.RescaleSlope)
	intercept, hasIntercept := dicom.LookupFloat(ds, tag.RescaleIntercept)
	if hasSlope && hasIntercept {
		if skipRescale[modality] {
			slog.Debug("rescale not applied", slog.String("modality", modality))
		} else {
			m.rescaleSlope = &slope
			m.rescaleIntercept = &intercept
			m.rescaleType = dicom.GetString(ds, tag.RescaleType, "")
		}
	}

	items := dicom.GetSequence(ds, tag.ModalityLUTSequence)
	if len(items) == 0 {
		return m
	}
	item := items[0]
	if _, ok := item.Get(tag.ModalityLUTType); !ok {
		return m
	}
	if modality == "XA" || modality == "XRF" {
		rel := strings.ToUpper(dicom.GetString(ds, tag.PixelIntensityRelationship, ""))
		if rel == "LOG" || rel == "DISP" {
			slog.Debug("modality lut not applied", slog.String("relationship", rel))
			return m
		}
	}
	table, err := lut.FromDescriptor(dicom.GetInts(item, tag.LUTDescriptor), dicom.GetBytes(item, tag.LUTData), isSigned(ds))
	if err != nil {
		slog.Warn("invalid modality lut sequence", slog.Any("err", err))
		return m
	}
	m.LUTType = dicom.GetString(item, tag.ModalityLUTType, "")
	m.LUTExplanation = dicom.GetString(item, tag.LUTExplanation, "")
	m.LUT = table
	return m
}

// RescaleSlope returns the declared slope
func (m *ModalityLUTModule) RescaleSlope() (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rescaleSlope == nil {
		return 0, false
	}
	return *m.rescaleSlope, true
}

// RescaleIntercept returns the declared intercept
func (m *ModalityLUTModule) RescaleIntercept() (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rescaleIntercept == nil {
		return 0, false
	}
	return *m.rescaleIntercept, true
}

// RescaleType returns the declared rescale type
func (m *ModalityLUTModule) RescaleType() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rescaleType
}

// Slope returns the effective slope, 1 when absent
func (m *ModalityLUTModule) Slope() float64 {
	if v, ok := m.RescaleSlope(); ok {
		return v
	}
	return 1
}

// Intercept returns the effective intercept, 0 when absent
func (m *ModalityLUTModule) Intercept() float64 {
	if v, ok := m.RescaleIntercept(); ok {
		return v
	}
	return 0
}

// AdaptWithOverlayBitMask divides the slope by 2^shift so values whose low
// bits were masked keep their scale. It applies at most once per module;
// the result reports whether this call applied it.
func (m *ModalityLUTModule) AdaptWithOverlayBitMask(shift int) bool {
	if !m.overlayAdapted.CompareAndSwap(false, true) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rs := 1.0
	if m.rescaleSlope == nil {
		if m.rescaleIntercept == nil {
			zero := 0.0
			m.rescaleIntercept = &zero
		}
		if m.rescaleType == "" {
			m.rescaleType = "US"
		}
	} else {
		rs = *m.rescaleSlope
	}
	rs /= float64(int(1) << shift)
	m.rescaleSlope = &rs
	return true
}

// OverlayAdapted reports whether the overlay bit mask adjustment was applied
func (m *ModalityLUTModule) OverlayAdapted() bool {
	return m.overlayAdapted.Load()
}

func isSigned(ds *dicom.Dataset) bool {
	return dicom.GetInt(ds, tag.PixelRepresentation, 0) != 0
}
