package mount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMountTable(t *testing.T) {
	data := `proc /proc proc rw,nosuid,nodev,noexec,relatime 0 0
/dev/sda1 / ext4 rw,relatime 0 0
borgfs /var/lib/borgdesk/mounts/archive_mount_daily_user-1_20260101_120000 fuse rw,nosuid,nodev 0 0
borgfs /srv/with\040space fuse.borgfs rw 0 0
garbage line`

	mounts := parseMountTable(data)
	require.Len(t, mounts, 4)

	assert.Equal(t, SystemMount{Device: "proc", MountPoint: "/proc", Type: "proc"}, mounts[0])
	assert.Equal(t, "fuse", mounts[2].Type)
	assert.Equal(t, "/var/lib/borgdesk/mounts/archive_mount_daily_user-1_20260101_120000", mounts[2].MountPoint)
	assert.Equal(t, "/srv/with space", mounts[3].MountPoint, "octal escapes are decoded")
}

func TestParseMountOutput(t *testing.T) {
	out := `proc on /proc type proc (rw,nosuid)
/dev/sda1 on / type ext4 (rw,relatime)
borgfs on /mnt/archive type fuse (rw,nosuid,nodev)
not a mount line`

	mounts := parseMountOutput(out)
	require.Len(t, mounts, 3)
	assert.Equal(t, SystemMount{Device: "/dev/sda1", MountPoint: "/", Type: "ext4"}, mounts[1])
	assert.Equal(t, "fuse", mounts[2].Type)
}

func TestUnescapeMountPath(t *testing.T) {
	assert.Equal(t, "/plain/path", unescapeMountPath("/plain/path"))
	assert.Equal(t, "/with space/and\ttab", unescapeMountPath(`/with\040space/and\011tab`))
	assert.Equal(t, `/back\slash`, unescapeMountPath(`/back\134slash`))
}
