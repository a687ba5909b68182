package storage

import (
	"github.com/yairfalse/ilmari/pkg/types"
)

// Storage persists golden config snapshots. Artifacts are immutable once
// written and are never deleted by ilmari.
type Storage interface {
	// Save writes lines as a new snapshot of kind for device, stamped with the current second.
	Save(device, kind string, lines []string) (*types.Snapshot, error)
	// Latest returns the newest snapshot whose name starts with prefix.
	Latest(prefix string) (*types.SnapshotInfo, error)
	// List returns all snapshots whose name starts with prefix, newest first.
	List(prefix string) ([]types.SnapshotInfo, error)
	// Load reads one snapshot by exact artifact name.
	Load(name string) (*types.Snapshot, error)
	// Path returns the on-disk location of an artifact.
	Path(name string) string
}
