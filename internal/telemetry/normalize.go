package telemetry

import "math"

// SentinelTolerance is the epsilon used when matching a calibrated value
// against the no-reading sentinel.
const SentinelTolerance = 1e-9

// CalibrationSet is the set of reserved tag ids whose readings exist only to
// calibrate the offset. They are counted and then dropped: never solved,
// persisted as ordinary readings, or forwarded.
type CalibrationSet map[string]struct{}

// NewCalibrationSet builds a CalibrationSet from tag ids.
func NewCalibrationSet(tags ...string) CalibrationSet {
	s := make(CalibrationSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Contains reports whether tag is a reserved calibration tag.
func (s CalibrationSet) Contains(tag string) bool {
	_, ok := s[tag]
	return ok
}

// CalibratedReading is a RawReading with the calibration offset subtracted
// from every present distance and span value. Calibrated values are kept as
// numbers (the storage schema records them verbatim, sentinel included); the
// no-reading state is derived, not stored.
type CalibratedReading struct {
	RawReading
	Offset           float64
	IsCalibrationTag bool
}

// Normalize subtracts offset from every present distance and span value of r
// and flags readings from reserved calibration tags.
func Normalize(r *RawReading, offset float64, cal CalibrationSet) *CalibratedReading {
	c := &CalibratedReading{
		RawReading:       *r,
		Offset:           offset,
		IsCalibrationTag: cal.Contains(r.TagID),
	}
	for i, d := range r.Distances {
		if d != nil {
			v := *d - offset
			c.Distances[i] = &v
		}
	}
	if r.SpanX != nil {
		v := *r.SpanX - offset
		c.SpanX = &v
	}
	if r.SpanY != nil {
		v := *r.SpanY - offset
		c.SpanY = &v
	}
	return c
}

// NoReading reports whether slot i holds the no-reading sentinel: the value a
// raw zero measurement calibrates to (-offset), matched within
// SentinelTolerance.
func (c *CalibratedReading) NoReading(i int) bool {
	d := c.Distances[i]
	return d != nil && math.Abs(*d-(-c.Offset)) < SentinelTolerance
}

// SolvableDistance returns the distance for slot i when it is usable for
// positioning: present, not the no-reading sentinel, and strictly positive.
func (c *CalibratedReading) SolvableDistance(i int) (float64, bool) {
	d := c.Distances[i]
	if d == nil || c.NoReading(i) || *d <= 0 {
		return 0, false
	}
	return *d, true
}
