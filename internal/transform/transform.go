// Package transform converts native runtime poses into the host's vector and
// quaternion types, re-based into the playspace frame.
package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/jointfeed/openvr-adapter/pkg/openvr"
)

// Position returns the translation column of m.
func Position(m openvr.Matrix34) mgl64.Vec3 {
	return mgl64.Vec3{float64(m[0][3]), float64(m[1][3]), float64(m[2][3])}
}

// Orientation extracts the rotation of m as a unit quaternion.
// A degenerate rotation block yields the identity quaternion.
func Orientation(m openvr.Matrix34) mgl64.Quat {
	if degenerate(m) {
		return mgl64.QuatIdent()
	}

	m00, m01, m02 := float64(m[0][0]), float64(m[0][1]), float64(m[0][2])
	m10, m11, m12 := float64(m[1][0]), float64(m[1][1]), float64(m[1][2])
	m20, m21, m22 := float64(m[2][0]), float64(m[2][1]), float64(m[2][2])

	w := math.Sqrt(math.Max(0, 1+m00+m11+m22)) / 2
	x := math.Sqrt(math.Max(0, 1+m00-m11-m22)) / 2
	y := math.Sqrt(math.Max(0, 1-m00+m11-m22)) / 2
	z := math.Sqrt(math.Max(0, 1-m00-m11+m22)) / 2

	x = math.Copysign(x, m21-m12)
	y = math.Copysign(y, m02-m20)
	z = math.Copysign(z, m10-m01)

	return mgl64.Quat{W: w, V: mgl64.Vec3{x, y, z}}
}

// degenerate reports whether the up or forward column of the rotation block is
// all zeros, in which case no orientation can be recovered.
func degenerate(m openvr.Matrix34) bool {
	upZero := m[0][1] == 0 && m[1][1] == 0 && m[2][1] == 0
	forwardZero := m[0][2] == 0 && m[1][2] == 0 && m[2][2] == 0
	return upZero || forwardZero
}

// Vector converts a native vector without any rotation.
func Vector(v openvr.Vector3) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}

// Playspace is the tracking origin the host works in.
type Playspace struct {
	Translation mgl64.Vec3
	Orientation mgl64.Quat
	inverse     mgl64.Quat
}

// IdentityPlayspace leaves poses unchanged.
func IdentityPlayspace() Playspace {
	return Playspace{Orientation: mgl64.QuatIdent(), inverse: mgl64.QuatIdent()}
}

// PlayspaceFrom builds a playspace from the runtime's zero-pose-to-standing transform.
func PlayspaceFrom(m openvr.Matrix34) Playspace {
	q := Orientation(m)
	return Playspace{
		Translation: Position(m),
		Orientation: q,
		inverse:     q.Inverse(),
	}
}

// Rebase expresses a raw pose relative to the playspace.
func (p Playspace) Rebase(position mgl64.Vec3, orientation mgl64.Quat) (mgl64.Vec3, mgl64.Quat) {
	inv := p.inverse
	if inv == (mgl64.Quat{}) {
		inv = p.Orientation.Inverse()
	}
	return inv.Rotate(position.Sub(p.Translation)), inv.Mul(orientation)
}

// Pose is a fully converted device pose.
type Pose struct {
	Position        mgl64.Vec3
	Orientation     mgl64.Quat
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
}

// Convert runs a native pose through extraction and re-basing.
// Velocities are copied in the native frame; only position and orientation
// are re-based.
func (p Playspace) Convert(pose openvr.TrackedDevicePose) Pose {
	pos, rot := p.Rebase(
		Position(pose.DeviceToAbsoluteTracking),
		Orientation(pose.DeviceToAbsoluteTracking),
	)
	return Pose{
		Position:        pos,
		Orientation:     rot,
		Velocity:        Vector(pose.Velocity),
		AngularVelocity: Vector(pose.AngularVelocity),
	}
}
