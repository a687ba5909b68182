package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/pkg/types"
)

// LocalStorage implements Storage on a flat directory of .cfg files
type LocalStorage struct {
	dir    string
	writer *AtomicWriter
	now    func() time.Time
}

// Option configures a LocalStorage
type Option func(*LocalStorage)

// WithClock overrides the time source used to stamp new snapshots
func WithClock(now func() time.Time) Option {
	return func(s *LocalStorage) {
		s.now = now
	}
}

// NewLocalStorage opens the snapshot directory, creating it if needed
func NewLocalStorage(dir string, opts ...Option) (*LocalStorage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, opserrors.ConfigurationError("storage.golden_dir is not set")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, opserrors.StoreUnavailable(dir, err)
	}

	s := &LocalStorage{
		dir:    dir,
		writer: NewAtomicWriter(""),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the snapshot directory
func (s *LocalStorage) Dir() string {
	return s.dir
}

// Path returns the on-disk location of an artifact
func (s *LocalStorage) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Save writes a new snapshot. It refuses to replace an artifact with the same name.
func (s *LocalStorage) Save(device, kind string, lines []string) (*types.Snapshot, error) {
	if kind == "" {
		kind = types.DefaultSnapshotKind
	}
	if lines == nil {
		lines = []string{}
	}

	snapshot := &types.Snapshot{
		DeviceID:   strings.TrimSpace(device),
		Kind:       kind,
		CapturedAt: s.now().Truncate(time.Second),
		Lines:      lines,
	}
	if err := snapshot.Validate(); err != nil {
		return nil, opserrors.InputError("invalid snapshot: %v", err).WithDevice(device)
	}
	if strings.Contains(kind, "_") {
		return nil, opserrors.InputError("snapshot kind %q must not contain underscores", kind)
	}

	snapshot.Name = FormatName(snapshot.DeviceID, snapshot.Kind, snapshot.CapturedAt)

	if err := s.writer.CreateFile(s.Path(snapshot.Name), encodeLines(lines), 0o644); err != nil {
		if errors.Is(err, ErrExists) {
			return nil, opserrors.Wrap(opserrors.KindInput, err, "snapshot "+snapshot.Name+" already exists").
				WithDevice(snapshot.DeviceID).
				WithSolutions("Golden configs are named to the second; wait a second and capture again")
		}
		return nil, opserrors.StoreUnavailable(s.dir, err)
	}

	return snapshot, nil
}

// Latest returns the newest snapshot whose name starts with prefix, compared
// case-insensitively. A prefix of "sw1" also matches "sw10" artifacts.
func (s *LocalStorage) Latest(prefix string) (*types.SnapshotInfo, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, opserrors.InputError("device identifier is required")
	}

	infos, err := s.List(prefix)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, opserrors.SnapshotNotFound(prefix)
	}
	return &infos[0], nil
}

// List returns snapshots whose name starts with prefix, sorted by name descending.
// An empty prefix lists every snapshot.
func (s *LocalStorage) List(prefix string) ([]types.SnapshotInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, opserrors.StoreUnavailable(s.dir, err)
	}

	lower := strings.ToLower(strings.TrimSpace(prefix))

	var infos []types.SnapshotInfo
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasSuffix(name, SnapshotExt) {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(name), lower) {
			continue
		}

		info := types.SnapshotInfo{
			Name:     name,
			FilePath: s.Path(name),
		}
		if device, kind, capturedAt, err := ParseName(name); err == nil {
			info.DeviceID = device
			info.Kind = kind
			info.CapturedAt = capturedAt
		}
		if stat, err := entry.Info(); err == nil {
			info.FileSize = stat.Size()
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name > infos[j].Name
	})

	return infos, nil
}

// Load reads one snapshot by exact artifact name
func (s *LocalStorage) Load(name string) (*types.Snapshot, error) {
	if !validName(name) {
		return nil, opserrors.InputError("invalid snapshot name %q", name)
	}

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, opserrors.SnapshotNotFound(name)
		}
		return nil, opserrors.StoreUnavailable(s.Path(name), err)
	}

	snapshot := &types.Snapshot{
		Name:  name,
		Lines: decodeLines(data),
	}
	if device, kind, capturedAt, err := ParseName(name); err == nil {
		snapshot.DeviceID = device
		snapshot.Kind = kind
		snapshot.CapturedAt = capturedAt
	}
	return snapshot, nil
}

func encodeLines(lines []string) []byte {
	if len(lines) == 0 {
		return []byte{}
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

func decodeLines(data []byte) []string {
	body := strings.TrimSuffix(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if body == "" {
		return []string{}
	}
	return strings.Split(body, "\n")
}
