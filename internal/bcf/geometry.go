// Package bcf reads and writes BIM Collaboration Format (BCF 2.1) archives.
//
// Export turns issues into a ZIP of GUID-named topic folders holding
// markup.bcf, viewpoint*.bcfv and snapshot*.png entries. Import drains such an
// archive, parses every topic folder independently and resolves component
// selection and visibility into object groups. Storage is left to the caller.
package bcf

import (
	"math"
	"strings"

	"github.com/randalmurphal/bimcollab/internal/issue"
)

// Vec3 is a 3-component vector.
type Vec3 [3]float64

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

// Scale multiplies every component by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Slice returns v as a slice.
func (v Vec3) Slice() []float64 {
	return []float64{v[0], v[1], v[2]}
}

// vec3 converts the first three components of s. It reports false when s is
// shorter than three.
func vec3(s []float64) (Vec3, bool) {
	if len(s) < 3 {
		return Vec3{}, false
	}
	return Vec3{s[0], s[1], s[2]}, true
}

// Units maps a display unit to its metre multiplier.
var Units = map[string]float64{
	"mm": 0.001,
	"cm": 0.01,
	"dm": 0.1,
	"ft": 0.3048,
	"m":  1,
}

// DefaultUnit is used when no unit is configured.
const DefaultUnit = "m"

// OrthogonalFOV is the field of view, in radians, given to viewpoints
// imported from an orthogonal camera.
const OrthogonalFOV = 1.8

// UnitScale returns the metre multiplier for unit; unknown units scale by 1.
func UnitScale(unit string) float64 {
	if s, ok := Units[strings.ToLower(strings.TrimSpace(unit))]; ok {
		return s
	}
	return 1
}

// ToBCF converts a model-space point to BCF space: Y-up becomes Z-up and the
// model unit becomes metres.
func ToBCF(v Vec3, scale float64) Vec3 {
	return Vec3{v[0] * scale, -v[2] * scale, v[1] * scale}
}

// FromBCF is the inverse of ToBCF.
func FromBCF(v Vec3, scale float64) Vec3 {
	if scale == 0 {
		scale = 1
	}
	return Vec3{v[0] / scale, v[2] / scale, -v[1] / scale}
}

// ToBCFDirection remaps a direction without scaling.
func ToBCFDirection(v Vec3) Vec3 {
	return ToBCF(v, 1)
}

// FromBCFDirection is the inverse of ToBCFDirection.
func FromBCFDirection(v Vec3) Vec3 {
	return FromBCF(v, 1)
}

// RadToDeg converts a field of view for export.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// DegToRad converts a field of view on import.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// BCFClip is a clipping plane in BCF space: a point on the plane and the
// direction of the clipped half.
type BCFClip struct {
	Location  Vec3
	Direction Vec3
}

// ToBCFClip converts a clipping plane for export.
func ToBCFClip(p issue.ClippingPlane, scale float64) (BCFClip, bool) {
	n, ok := vec3(p.Normal)
	if !ok {
		return BCFClip{}, false
	}
	dir := float64(p.ClipDirection)
	if dir == 0 {
		dir = 1
	}
	return BCFClip{
		Location:  ToBCF(n.Scale(-p.Distance), scale),
		Direction: ToBCFDirection(n.Scale(dir)),
	}, true
}

// FromBCFClip converts a clipping plane on import. The clip direction is not
// recoverable from BCF geometry and is always 1.
func FromBCFClip(c BCFClip, scale float64) issue.ClippingPlane {
	normal := FromBCFDirection(c.Direction)
	point := FromBCF(c.Location, scale)
	return issue.ClippingPlane{
		Normal:        normal.Slice(),
		Distance:      -point.Dot(normal),
		ClipDirection: 1,
	}
}
