package platform

import (
	"fmt"
	"strings"
	"time"
)

// maxSnapshotNameLength is the longest resource name the snapshot provider accepts.
const maxSnapshotNameLength = 63

// SnapshotName derives the provider resource name for a backup of instanceID
// taken at t. The result is lower-cased, restricted to [a-z0-9-], starts with
// a letter and is at most 63 characters long.
func SnapshotName(instanceID string, t time.Time) string {
	raw := fmt.Sprintf("backup-%s-%d", strings.ToLower(instanceID), t.Unix())

	var b strings.Builder
	b.Grow(len(raw))
	prevDash := false
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevDash = false
			continue
		}
		if !prevDash {
			b.WriteByte('-')
			prevDash = true
		}
	}

	name := b.String()
	if len(name) > maxSnapshotNameLength {
		// Keep the timestamp suffix so names stay unique per instance.
		suffix := fmt.Sprintf("-%d", t.Unix())
		name = name[:maxSnapshotNameLength-len(suffix)]
		name = strings.TrimRight(name, "-") + suffix
	}
	return strings.TrimRight(name, "-")
}
