// Package enumerator turns the runtime's device slots into an ordered joint list.
package enumerator

import (
	"fmt"
	"strings"

	"github.com/jointfeed/openvr-adapter/internal/transform"
	"github.com/jointfeed/openvr-adapter/pkg/host"
	"github.com/jointfeed/openvr-adapter/pkg/openvr"
)

// DefaultSerialPrefix marks virtual devices created by this adapter's family.
const DefaultSerialPrefix = "AME-"

// Entry pairs a joint with the slot it was read from.
type Entry struct {
	Joint  host.TrackedJoint
	Slot   openvr.DeviceIndex
	Class  openvr.DeviceClass
	Serial string
}

// Enumerator scans device slots.
type Enumerator struct {
	Runtime      openvr.Runtime
	SerialPrefix string
	Universe     openvr.TrackingUniverseOrigin
}

// New returns an enumerator over rt using the standing universe.
func New(rt openvr.Runtime, serialPrefix string) *Enumerator {
	return &Enumerator{
		Runtime:      rt,
		SerialPrefix: serialPrefix,
		Universe:     openvr.TrackingUniverseStanding,
	}
}

// Excluded reports whether a device is filtered out of the joint list.
func (e *Enumerator) Excluded(class openvr.DeviceClass, serial string) bool {
	switch class {
	case openvr.DeviceClassInvalid, openvr.DeviceClassMax, openvr.DeviceClassTrackingReference:
		return true
	}
	return e.SerialPrefix != "" && strings.HasPrefix(serial, e.SerialPrefix)
}

// Enumerate returns the current device list in native slot order. With no
// active session it returns an empty list and no error.
func (e *Enumerator) Enumerate(active bool) ([]Entry, error) {
	if !active || e.Runtime == nil {
		return []Entry{}, nil
	}

	poses := make([]openvr.TrackedDevicePose, openvr.MaxTrackedDeviceCount)
	if err := e.Runtime.DeviceToAbsoluteTrackingPose(e.Universe, 0, poses); err != nil {
		return nil, fmt.Errorf("querying device poses: %w", err)
	}

	playspace, err := Playspace(e.Runtime)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, 8)
	for i := range poses {
		slot := openvr.DeviceIndex(i)
		class := e.Runtime.DeviceClass(slot)
		if class == openvr.DeviceClassInvalid {
			continue
		}
		serial, err := e.Runtime.StringProperty(slot, openvr.PropSerialNumber)
		if err != nil {
			serial = ""
		}
		if e.Excluded(class, serial) {
			continue
		}

		pose := playspace.Convert(poses[i])
		entries = append(entries, Entry{
			Joint: host.TrackedJoint{
				Name:            JointName(class, serial, slot),
				Role:            host.RoleManual,
				Position:        pose.Position,
				Orientation:     pose.Orientation,
				Velocity:        pose.Velocity,
				AngularVelocity: pose.AngularVelocity,
				State:           host.Tracked,
			},
			Slot:   slot,
			Class:  class,
			Serial: serial,
		})
	}
	return entries, nil
}

// Playspace reads the current tracking origin from the runtime.
func Playspace(rt openvr.Runtime) (transform.Playspace, error) {
	m, err := rt.RawZeroPoseToStandingAbsoluteTrackingPose()
	if err != nil {
		return transform.Playspace{}, fmt.Errorf("querying playspace origin: %w", err)
	}
	return transform.PlayspaceFrom(m), nil
}

// JointName is the display name of a device. The serial is stable across
// sessions, so it is preferred over the slot.
func JointName(class openvr.DeviceClass, serial string, slot openvr.DeviceIndex) string {
	if serial == "" {
		return fmt.Sprintf("%s #%d", class, slot)
	}
	return serial
}

// Split separates entries into the joint list and the aligned slot list.
func Split(entries []Entry) ([]host.TrackedJoint, []openvr.DeviceIndex) {
	joints := make([]host.TrackedJoint, len(entries))
	slots := make([]openvr.DeviceIndex, len(entries))
	for i, e := range entries {
		joints[i] = e.Joint
		slots[i] = e.Slot
	}
	return joints, slots
}
