// Package telemetry parses and calibrates line-oriented UWB anchor output.
//
// Anchors emit free-text lines of label:value fields, for example:
//
//	AT+RANGE=tid:4,mask:01,seq:218,range:(100,110,103,0,0,0,0,0),kx:152.75,ky:101.3,cmd:2,user:user1
//
// Only tid and range are mandatory; kx, ky, cmd and user may appear in any
// order. Labels are case-insensitive and whitespace around ':' and ',' is
// tolerated.
package telemetry

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DistanceSlots is the fixed number of per-anchor distance slots in a line.
// Slots 4-7 are reserved by the anchor firmware and carry no anchor identity.
const DistanceSlots = 8

// ErrUnparsable reports a line missing the mandatory tid or range fields.
var ErrUnparsable = errors.New("telemetry: line has no tid or range field")

// RawReading is one parsed telemetry line, prior to calibration.
// Missing values stay nil; they are never zero-filled.
type RawReading struct {
	TagID       string
	Distances   [DistanceSlots]*float64
	SpanX       *float64
	SpanY       *float64
	Command     int
	SessionUser string
	CapturedAt  time.Time
}

// Field grammar: one pattern per optional field rather than a single
// monolithic line pattern, so fields can be added or removed independently.
var (
	reTID   = regexp.MustCompile(`(?i)\btid\s*:\s*(\d+)`)
	reRange = regexp.MustCompile(`(?i)\brange\s*:\s*\(([^)]*)\)`)
	reKX    = regexp.MustCompile(`(?i)\bkx\s*:\s*([+-]?(?:\d+\.?\d*|\.\d+))`)
	reKY    = regexp.MustCompile(`(?i)\bky\s*:\s*([+-]?(?:\d+\.?\d*|\.\d+))`)
	reCmd   = regexp.MustCompile(`(?i)\bcmd\s*:\s*([+-]?\d+)`)
	reUser  = regexp.MustCompile(`(?i)\buser\s*:\s*([^,()\s]+)`)
)

// ParseLine extracts a RawReading from one telemetry line. It returns
// ErrUnparsable when the tid or the parenthesised range list is missing;
// malformed optional fields and distance tokens are dropped, never fatal.
// ParseLine is pure: the CapturedAt field is left zero for the caller.
func ParseLine(line string) (*RawReading, error) {
	tid := reTID.FindStringSubmatch(line)
	rng := reRange.FindStringSubmatch(line)
	if tid == nil || rng == nil {
		return nil, ErrUnparsable
	}

	r := &RawReading{TagID: tid[1]}

	tokens := strings.Split(rng[1], ",")
	for i := 0; i < DistanceSlots; i++ {
		if i < len(tokens) {
			r.Distances[i] = parseFloatToken(tokens[i])
		}
	}

	if m := reKX.FindStringSubmatch(line); m != nil {
		r.SpanX = parseFloatToken(m[1])
	}
	if m := reKY.FindStringSubmatch(line); m != nil {
		r.SpanY = parseFloatToken(m[1])
	}
	if m := reCmd.FindStringSubmatch(line); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			r.Command = v
		}
	}
	if m := reUser.FindStringSubmatch(line); m != nil {
		r.SessionUser = m[1]
	}

	return r, nil
}

// parseFloatToken converts one distance/span token. Empty tokens, "nan" and
// anything unparsable collapse to nil (slot absent).
func parseFloatToken(tok string) *float64 {
	tok = strings.TrimSpace(tok)
	if tok == "" || strings.EqualFold(tok, "nan") {
		return nil
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil
	}
	return &v
}
