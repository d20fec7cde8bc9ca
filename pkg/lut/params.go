package lut

// Parameters identify a modality lookup table. The struct is comparable
// and used directly as the Cache key.
type Parameters struct {
	Intercept       float64
	Slope           float64
	ApplyPadding    bool
	HasPadding      bool
	PaddingValue    int
	HasPaddingLimit bool
	PaddingLimit    int
	BitsStored      int
	Signed          bool
	OutputSigned    bool
	BitsOutput      int
	InversePadding  bool
}

// PaddingRange returns the closed padding range, ok false when there is no
// padding value
func (p Parameters) PaddingRange() (lo, hi int, ok bool) {
	if !p.HasPadding {
		return 0, 0, false
	}
	if !p.HasPaddingLimit {
		return p.PaddingValue, p.PaddingValue, true
	}
	return min(p.PaddingValue, p.PaddingLimit), max(p.PaddingValue, p.PaddingLimit), true
}
