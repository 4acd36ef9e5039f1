package bcf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/bimcollab/internal/issue"
)

const tolerance = 1e-6

func assertVec(t *testing.T, want, got Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], tolerance, "component %d of %v vs %v", i, want, got)
	}
}

func TestUnitScale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		unit string
		want float64
	}{
		{"mm", 0.001},
		{"cm", 0.01},
		{"dm", 0.1},
		{"ft", 0.3048},
		{"m", 1},
		{"M", 1},
		{"", 1},
		{"furlong", 1},
	}
	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			assert.Equal(t, tt.want, UnitScale(tt.unit))
		})
	}
}

func TestToBCF_AxisRemap(t *testing.T) {
	t.Parallel()

	assertVec(t, Vec3{1, -3, 2}, ToBCF(Vec3{1, 2, 3}, 1))
	assertVec(t, Vec3{0.001, -0.003, 0.002}, ToBCF(Vec3{1, 2, 3}, UnitScale("mm")))
	assertVec(t, Vec3{1, 2, 3}, FromBCF(Vec3{1, -3, 2}, 1))
}

func TestGeometryRoundTrip_AllUnits(t *testing.T) {
	t.Parallel()

	vectors := []Vec3{
		{0, 0, 0},
		{1, 2, 3},
		{-12.5, 1e4, 0.0003},
		{123456.789, -98765.4321, 42},
	}
	for unit := range Units {
		scale := UnitScale(unit)
		for _, v := range vectors {
			assertVec(t, v, FromBCF(ToBCF(v, scale), scale))
			assertVec(t, v, FromBCFDirection(ToBCFDirection(v)))
		}
	}
}

func TestFromBCF_ZeroScaleTreatedAsOne(t *testing.T) {
	t.Parallel()
	assertVec(t, Vec3{1, 2, 3}, FromBCF(Vec3{1, -3, 2}, 0))
}

func TestFieldOfView(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 90, RadToDeg(math.Pi/2), tolerance)
	assert.InDelta(t, math.Pi/3, DegToRad(60), tolerance)
	assert.InDelta(t, 1.0471975, DegToRad(RadToDeg(1.0471975)), tolerance)
}

func TestClippingPlane_RoundTrip(t *testing.T) {
	t.Parallel()

	plane := issue.ClippingPlane{Normal: []float64{0, 1, 0}, Distance: -2.5, ClipDirection: 1}
	for unit := range Units {
		scale := UnitScale(unit)
		clip, ok := ToBCFClip(plane, scale)
		assert.True(t, ok)

		back := FromBCFClip(clip, scale)
		assertVec(t, Vec3{0, 1, 0}, Vec3(back.Normal))
		assert.InDelta(t, -2.5, back.Distance, tolerance, unit)
		assert.Equal(t, 1, back.ClipDirection)
	}
}

func TestClippingPlane_LocationAndDirection(t *testing.T) {
	t.Parallel()

	plane := issue.ClippingPlane{Normal: []float64{0, 0, 1}, Distance: 4, ClipDirection: -1}
	clip, ok := ToBCFClip(plane, UnitScale("cm"))
	assert.True(t, ok)

	// Location = remap(-normal*distance*scale), Direction = remap(normal*clipDirection)
	assertVec(t, Vec3{0, 0.04, 0}, clip.Location)
	assertVec(t, Vec3{0, 1, 0}, clip.Direction)
}

func TestClippingPlane_DirectionIsLossy(t *testing.T) {
	t.Parallel()

	// A negative clip direction is folded into the geometry on export and is
	// read back as the flipped plane with direction 1.
	plane := issue.ClippingPlane{Normal: []float64{1, 0, 0}, Distance: 3, ClipDirection: -1}
	clip, _ := ToBCFClip(plane, 1)
	back := FromBCFClip(clip, 1)

	assert.Equal(t, 1, back.ClipDirection)
	assertVec(t, Vec3{-1, 0, 0}, Vec3(back.Normal))
	assert.InDelta(t, -3, back.Distance, tolerance)
}

func TestToBCFClip_ShortNormal(t *testing.T) {
	t.Parallel()
	_, ok := ToBCFClip(issue.ClippingPlane{Normal: []float64{1}}, 1)
	assert.False(t, ok)
}
