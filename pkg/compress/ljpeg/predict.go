package ljpeg

// scan walks the samples of an interleaved image in coding order and
// supplies the prediction of each one (ITU T.81 H.1.2.1)
type scan struct {
	width, height, channels int
	predictor               int
	initial                 int
	interval                int
}

func newScan(width, height, channels, precision, pt, predictor, interval int) *scan {
	return &scan{
		width:     width,
		height:    height,
		channels:  channels,
		predictor: predictor,
		initial:   1 << (precision - pt - 1),
		interval:  interval,
	}
}

// walk calls visit for every sample index with its prediction. sample
// returns already reconstructed values; restart runs between restart
// intervals and may be nil.
func (s *scan) walk(visit func(i, pred int) error, restart func() error, sample func(i int) int) error {
	rows := 0
	if s.interval > 0 {
		rows = s.interval / s.width
	}
	stride := s.width * s.channels
	first := 0
	for y := range s.height {
		if rows > 0 && y > 0 && y%rows == 0 {
			if restart != nil {
				if err := restart(); err != nil {
					return err
				}
			}
			first = y
		}
		for x := range s.width {
			for c := range s.channels {
				i := y*stride + x*s.channels + c
				var pred int
				switch {
				case y == first && x == 0:
					pred = s.initial
				case y == first:
					pred = sample(i - s.channels)
				case x == 0:
					pred = sample(i - stride)
				default:
					pred = predict(s.predictor, sample(i-s.channels), sample(i-stride), sample(i-stride-s.channels))
				}
				if err := visit(i, pred); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// predict applies a selection value to the left (a), above (b) and upper
// left (c) neighbors
func predict(sel, a, b, c int) int {
	switch sel {
	case 1:
		return a
	case 2:
		return b
	case 3:
		return c
	case 4:
		return a + b - c
	case 5:
		return a + (b-c)>>1
	case 6:
		return b + (a-c)>>1
	case 7:
		return (a + b) >> 1
	}
	return 0
}
