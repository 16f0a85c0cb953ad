package host

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Role is the logical body role of a joint.
type Role int

const (
	// RoleManual leaves role assignment to the user.
	RoleManual Role = iota
)

func (r Role) String() string {
	if r == RoleManual {
		return "Manual"
	}
	return "Unknown"
}

// TrackingState reports whether a joint carries live data this frame.
type TrackingState int

const (
	NotTracked TrackingState = iota
	Tracked
)

func (s TrackingState) String() string {
	if s == Tracked {
		return "Tracked"
	}
	return "NotTracked"
}

// TrackedJoint is one device as the host sees it, expressed in the playspace frame.
type TrackedJoint struct {
	Name            string        `json:"name"`
	Role            Role          `json:"role"`
	Position        mgl64.Vec3    `json:"position"`
	Orientation     mgl64.Quat    `json:"orientation"`
	Velocity        mgl64.Vec3    `json:"velocity"`
	AngularVelocity mgl64.Vec3    `json:"angularVelocity"`
	State           TrackingState `json:"trackingState"`
}
