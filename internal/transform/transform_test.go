package transform

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"

	"github.com/jointfeed/openvr-adapter/pkg/openvr"
)

const eps = 1e-5

func identity() openvr.Matrix34 {
	return openvr.Matrix34{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
}

// rotY90 rotates +90 degrees about the Y axis, translated to (tx, ty, tz).
func rotY90(tx, ty, tz float32) openvr.Matrix34 {
	return openvr.Matrix34{
		{0, 0, 1, tx},
		{0, 1, 0, ty},
		{-1, 0, 0, tz},
	}
}

func assertQuat(t *testing.T, want, got mgl64.Quat) {
	t.Helper()
	// q and -q are the same rotation
	if !want.ApproxEqualThreshold(got, eps) && !want.Scale(-1).ApproxEqualThreshold(got, eps) {
		t.Errorf("quaternion mismatch: want %v, got %v", want, got)
	}
}

func TestOrientation_IdentityRoundTrip(t *testing.T) {
	m := identity()

	assert.True(t, Position(m).ApproxEqualThreshold(mgl64.Vec3{}, eps))
	assertQuat(t, mgl64.QuatIdent(), Orientation(m))
}

func TestOrientation_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		m    openvr.Matrix34
	}{
		{name: "all zero", m: openvr.Matrix34{}},
		{name: "zero rotation with translation", m: openvr.Matrix34{{0, 0, 0, 1}, {0, 0, 0, 2}, {0, 0, 0, 3}}},
		{name: "missing forward column", m: openvr.Matrix34{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 0, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Orientation(tt.m)
			assert.False(t, math.IsNaN(q.W) || math.IsNaN(q.X()) || math.IsNaN(q.Y()) || math.IsNaN(q.Z()))
			assert.Equal(t, mgl64.QuatIdent(), q)
		})
	}
}

func TestOrientation_KnownRotations(t *testing.T) {
	tests := []struct {
		name string
		m    openvr.Matrix34
		want mgl64.Quat
	}{
		{
			name: "+90 about Y",
			m:    rotY90(0, 0, 0),
			want: mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0}),
		},
		{
			name: "+90 about X",
			m:    openvr.Matrix34{{1, 0, 0, 0}, {0, 0, -1, 0}, {0, 1, 0, 0}},
			want: mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{1, 0, 0}),
		},
		{
			name: "180 about Z",
			m:    openvr.Matrix34{{-1, 0, 0, 0}, {0, -1, 0, 0}, {0, 0, 1, 0}},
			want: mgl64.QuatRotate(math.Pi, mgl64.Vec3{0, 0, 1}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Orientation(tt.m)
			assertQuat(t, tt.want, q)
			assert.InDelta(t, 1.0, q.Len(), eps)
		})
	}
}

func TestPlayspace_Rebase(t *testing.T) {
	p := PlayspaceFrom(rotY90(1, 0, 2))

	pos, rot := p.Rebase(mgl64.Vec3{1, 0, 3}, mgl64.QuatIdent())

	assert.True(t, pos.ApproxEqualThreshold(mgl64.Vec3{-1, 0, 0}, eps), "got %v", pos)
	assertQuat(t, mgl64.QuatRotate(-math.Pi/2, mgl64.Vec3{0, 1, 0}), rot)
}

func TestPlayspace_IdentityIsNoop(t *testing.T) {
	p := IdentityPlayspace()
	in := mgl64.QuatRotate(0.3, mgl64.Vec3{0, 0, 1})

	pos, rot := p.Rebase(mgl64.Vec3{4, 5, 6}, in)

	assert.True(t, pos.ApproxEqualThreshold(mgl64.Vec3{4, 5, 6}, eps))
	assertQuat(t, in, rot)

	// the zero value behaves the same way once an orientation is set
	zero := Playspace{Orientation: mgl64.QuatIdent()}
	pos, _ = zero.Rebase(mgl64.Vec3{4, 5, 6}, in)
	assert.True(t, pos.ApproxEqualThreshold(mgl64.Vec3{4, 5, 6}, eps))
}

// Velocities are intentionally left in the native frame while position and
// orientation are re-based. This test pins that asymmetry.
func TestConvert_VelocityNotRebased(t *testing.T) {
	p := PlayspaceFrom(rotY90(0, 0, 0))

	out := p.Convert(openvr.TrackedDevicePose{
		DeviceToAbsoluteTracking: identity(),
		Velocity:                 openvr.Vector3{1, 0, 0},
		AngularVelocity:          openvr.Vector3{0, 0, 2},
	})

	assert.Equal(t, mgl64.Vec3{1, 0, 0}, out.Velocity)
	assert.Equal(t, mgl64.Vec3{0, 0, 2}, out.AngularVelocity)
	assertQuat(t, mgl64.QuatRotate(-math.Pi/2, mgl64.Vec3{0, 1, 0}), out.Orientation)
}
