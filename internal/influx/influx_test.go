package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jointfeed/openvr-adapter/internal/config"
	"github.com/jointfeed/openvr-adapter/internal/status"
	"github.com/jointfeed/openvr-adapter/pkg/host"
)

func readBackup(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(data)
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{})
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
}

func TestJointPoint(t *testing.T) {
	at := time.Unix(100, 0)
	j := host.TrackedJoint{
		Name:        "TRK-WAIST",
		Position:    mgl64.Vec3{1, 2, 3},
		Orientation: mgl64.QuatIdent(),
		State:       host.Tracked,
	}

	line := influxdb2_write.PointToLineProtocol(JointPoint(j, at), time.Nanosecond)

	assert.True(t, strings.HasPrefix(line, "joint_pose,joint=TRK-WAIST,state=Tracked "))
	assert.Contains(t, line, "px=1")
	assert.Contains(t, line, "py=2")
	assert.Contains(t, line, "qw=1")
	assert.True(t, strings.HasSuffix(line, " 100000000000"))
}

func TestWritePoint_NoSink(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{})
	assert.Error(t, m.WriteStatus(status.OK, time.Now()))
}

func TestBackupWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(zerolog.Nop(), config.InfluxConfig{})
	require.NoError(t, m.OpenBackup(path))

	at := time.Unix(5, 0)
	require.NoError(t, m.WriteJoints([]host.TrackedJoint{
		{Name: "HMD-1", Orientation: mgl64.QuatIdent(), State: host.Tracked},
		{Name: "CTRL-L", Orientation: mgl64.QuatIdent()},
	}, at))
	require.NoError(t, m.WriteStatus(status.Error(status.DetailTimeout), at))
	require.NoError(t, m.Close())

	lines := strings.Split(strings.TrimSpace(readBackup(t, path)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "joint_pose,joint=HMD-1,state=Tracked "))
	assert.True(t, strings.HasPrefix(lines[1], "joint_pose,joint=CTRL-L,state=NotTracked "))
	assert.Equal(t, "adapter_status,detail=Timeout code=1i 5000000000", lines[2])
}

func TestOpenBackup_RequiresPath(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{})
	assert.Error(t, m.OpenBackup(""))
}
