package main

import (
	"context"
	"math"
	"time"

	"github.com/jointfeed/openvr-adapter/pkg/openvr"
	"github.com/jointfeed/openvr-adapter/pkg/openvr/openvrtest"
)

type demoDevice struct {
	slot   openvr.DeviceIndex
	class  openvr.DeviceClass
	serial string
	base   [3]float32
}

var demoDevices = []demoDevice{
	{slot: 0, class: openvr.DeviceClassHMD, serial: "LHR-HMD00001", base: [3]float32{0, 1.7, 0}},
	{slot: 1, class: openvr.DeviceClassTrackingReference, serial: "LHB-BASE0001"},
	{slot: 2, class: openvr.DeviceClassController, serial: "LHR-CTRL000L", base: [3]float32{-0.3, 1.1, -0.2}},
	{slot: 3, class: openvr.DeviceClassController, serial: "LHR-CTRL000R", base: [3]float32{0.3, 1.1, -0.2}},
	{slot: 4, class: openvr.DeviceClassGenericTracker, serial: "LHR-TRKWAIST", base: [3]float32{0, 1.0, 0}},
	{slot: 5, class: openvr.DeviceClassGenericTracker, serial: "AME-VIRTUAL01", base: [3]float32{0, 0, 0}},
}

// newDemoRuntime returns a simulated runtime seeded with a typical full-body setup.
func newDemoRuntime() *openvrtest.Runtime {
	rt := openvrtest.New()
	for _, d := range demoDevices {
		rt.SetDevice(d.slot, openvrtest.Device{
			Class:  d.class,
			Serial: d.serial,
			Pose:   openvrtest.ValidPose(d.base[0], d.base[1], d.base[2]),
		})
	}
	return rt
}

// animate sways every device around its base position until ctx ends.
func animate(ctx context.Context, rt *openvrtest.Runtime, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t := now.Sub(start).Seconds()
			for i, d := range demoDevices {
				if d.class == openvr.DeviceClassTrackingReference {
					continue
				}
				phase := t + float64(i)
				dx := float32(0.05 * math.Sin(phase))
				dy := float32(0.02 * math.Sin(2*phase))
				pose := openvrtest.ValidPose(d.base[0]+dx, d.base[1]+dy, d.base[2])
				pose.Velocity = openvr.Vector3{float32(0.05 * math.Cos(phase)), float32(0.04 * math.Cos(2*phase)), 0}
				rt.SetPose(d.slot, pose)
			}
		}
	}
}
