// Package position computes 2D tag coordinates from anchor distances by
// least-squares multilateration.
package position

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mapadevsports/uwbv2/internal/telemetry"
)

// MinAnchors is the smallest anchor count that yields a determined system.
const MinAnchors = 3

// detEpsilon guards the 2x2 normal-equations solve against near-singular
// geometry (duplicate or collinear anchors).
const detEpsilon = 1e-9

// Anchor is a fixed reference point with a measured distance to the tag.
type Anchor struct {
	X, Y float64
	Dist float64
}

// CornerAnchors derives the candidate anchors for a reading from its span:
// the rectangle corners A0=(0,0), A1=(kx,0), A2=(0,ky), A3=(kx,ky), each
// paired with the matching distance slot when that slot is usable. Slots 4-7
// carry no anchor identity and are ignored. Spans must both be present and
// strictly positive, otherwise there is no usable geometry.
func CornerAnchors(c *telemetry.CalibratedReading) []Anchor {
	if c.SpanX == nil || c.SpanY == nil {
		return nil
	}
	kx, ky := *c.SpanX, *c.SpanY
	if kx <= 0 || ky <= 0 {
		return nil
	}
	corners := [4][2]float64{{0, 0}, {kx, 0}, {0, ky}, {kx, ky}}
	var anchors []Anchor
	for i, p := range corners {
		if d, ok := c.SolvableDistance(i); ok {
			anchors = append(anchors, Anchor{X: p[0], Y: p[1], Dist: d})
		}
	}
	return anchors
}

// Solve computes the tag position from at least MinAnchors anchors. The last
// anchor serves as the reference: every other anchor i contributes the
// linearised equation
//
//	2(xi-xj)x + 2(yi-yj)y = (xi^2+yi^2) - (xj^2+yj^2) - (di^2-dj^2)
//
// and the accumulated normal equations are solved in closed form. At exactly
// three anchors this reduces to the algebraic trilateration solution; at four
// it is the least-squares fit. Degenerate geometry (|det| < detEpsilon)
// reports ok=false rather than a wild coordinate.
func Solve(anchors []Anchor) (x, y float64, ok bool) {
	if len(anchors) < MinAnchors {
		return 0, 0, false
	}

	ref := anchors[len(anchors)-1]
	var ata [4]float64 // row-major 2x2
	var atb [2]float64
	for _, a := range anchors[:len(anchors)-1] {
		gx := 2 * (a.X - ref.X)
		gy := 2 * (a.Y - ref.Y)
		b := (a.X*a.X + a.Y*a.Y) - (ref.X*ref.X + ref.Y*ref.Y) -
			(a.Dist*a.Dist - ref.Dist*ref.Dist)
		ata[0] += gx * gx
		ata[1] += gx * gy
		ata[2] += gy * gx
		ata[3] += gy * gy
		atb[0] += gx * b
		atb[1] += gy * b
	}

	m := mat.NewDense(2, 2, ata[:])
	if math.Abs(mat.Det(m)) < detEpsilon {
		return 0, 0, false
	}

	var sol mat.VecDense
	if err := sol.SolveVec(m, mat.NewVecDense(2, atb[:])); err != nil {
		return 0, 0, false
	}
	return sol.AtVec(0), sol.AtVec(1), true
}
