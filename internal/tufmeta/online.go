package tufmeta

// SnapshotMetadata records the versions of every targets and delegated
// targets role, letting a downloader detect mix-and-match attacks.
type SnapshotMetadata struct {
	Common
	Meta map[string]SnapshotFileInfo `json:"meta"`
}

// SnapshotFileInfo records the version of one role as seen by snapshot.
type SnapshotFileInfo struct {
	Version int `json:"version"`
}

// NewSnapshotMetadata returns an empty, version-0 SnapshotMetadata.
func NewSnapshotMetadata() *SnapshotMetadata {
	return &SnapshotMetadata{
		Common: Common{Type: RoleSnapshot},
		Meta:   map[string]SnapshotFileInfo{},
	}
}

// TimestampMetadata points at the current snapshot version; it is the
// single most frequently fetched (and shortest-lived) role.
type TimestampMetadata struct {
	Common
	Meta map[string]SnapshotFileInfo `json:"meta"`
}

// NewTimestampMetadata returns an empty, version-0 TimestampMetadata.
func NewTimestampMetadata() *TimestampMetadata {
	return &TimestampMetadata{
		Common: Common{Type: RoleTimestamp},
		Meta:   map[string]SnapshotFileInfo{},
	}
}
