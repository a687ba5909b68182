package credentials

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/storage"
	"github.com/yairfalse/ilmari/pkg/types"
)

// DefaultFallbackUsername is used when a row leaves the Username column empty.
const DefaultFallbackUsername = "admin"

// Header is the column layout written by Save.
var Header = []string{"Device", "Hostname", "Username", "New_Password"}

// column aliases, compared case-insensitively
var (
	idColumns       = []string{"device", "ip", "host", "device_ip"}
	aliasColumns    = []string{"hostname", "name", "device_name", "alias"}
	usernameColumns = []string{"username", "user"}
	secretColumns   = []string{"new_password", "password", "secret"}
)

// Store holds the credential rows of one credential file, in file order.
// It is read-only after Load.
type Store struct {
	path    string
	records []types.Credential
}

// Load reads the credential file at path. Usernames left empty in the file
// are replaced by fallbackUsername.
func Load(path, fallbackUsername string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, opserrors.CredentialSourceUnavailable(path, err)
	}
	defer f.Close()

	records, err := Parse(f, fallbackUsername)
	if err != nil {
		return nil, opserrors.CredentialSourceUnavailable(path, err)
	}

	return &Store{path: path, records: records}, nil
}

// NewStore builds a store from records already in memory.
func NewStore(records []types.Credential) *Store {
	return &Store{records: append([]types.Credential(nil), records...)}
}

// Parse reads credential rows from r. The first row is always a header; when it
// names none of the known columns, fields are taken by position instead
// (id, alias, username, secret).
func Parse(r io.Reader, fallbackUsername string) ([]types.Credential, error) {
	if fallbackUsername == "" {
		fallbackUsername = DefaultFallbackUsername
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return []types.Credential{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := mapColumns(header)

	records := []types.Credential{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		cred := types.Credential{
			CanonicalID: field(row, cols.id),
			Alias:       field(row, cols.alias),
			Username:    field(row, cols.username),
			Secret:      field(row, cols.secret),
		}
		if cred.CanonicalID == "" {
			continue
		}
		if cred.Username == "" {
			cred.Username = fallbackUsername
		}
		records = append(records, cred)
	}

	return records, nil
}

type columns struct {
	id, alias, username, secret int
}

func mapColumns(header []string) columns {
	cols := columns{id: -1, alias: -1, username: -1, secret: -1}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		switch {
		case cols.id < 0 && contains(idColumns, name):
			cols.id = i
		case cols.alias < 0 && contains(aliasColumns, name):
			cols.alias = i
		case cols.username < 0 && contains(usernameColumns, name):
			cols.username = i
		case cols.secret < 0 && contains(secretColumns, name):
			cols.secret = i
		}
	}

	if cols.id < 0 {
		return columns{id: 0, alias: 1, username: 2, secret: 3}
	}
	return cols
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Path returns the file the store was loaded from
func (s *Store) Path() string {
	return s.path
}

// Records returns the credential rows in file order
func (s *Store) Records() []types.Credential {
	return append([]types.Credential(nil), s.records...)
}

// Len returns the number of credential rows
func (s *Store) Len() int {
	return len(s.records)
}

// Lookup finds the first row whose canonical id or alias equals identifier,
// ignoring case and surrounding whitespace.
func (s *Store) Lookup(identifier string) (types.Credential, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return types.Credential{}, opserrors.CredentialNotFound(identifier)
	}

	for _, rec := range s.records {
		if !rec.Matches(id) {
			continue
		}
		if rec.Secret == "" {
			return types.Credential{}, opserrors.InputError("credential for %q has an empty secret", id).
				WithDevice(id).
				WithSolutions(fmt.Sprintf("Fill the New_Password column for %s in %s", id, s.path))
		}
		return rec, nil
	}

	return types.Credential{}, opserrors.CredentialNotFound(id)
}

// Devices builds a device descriptor for every row, in file order
func (s *Store) Devices(resolver *TypeResolver) []types.Device {
	devices := make([]types.Device, 0, len(s.records))
	for _, rec := range s.records {
		devices = append(devices, NewDevice(rec, resolver))
	}
	return devices
}

// NewDevice builds the descriptor for one credential row
func NewDevice(cred types.Credential, resolver *TypeResolver) types.Device {
	deviceType := ""
	if resolver != nil {
		deviceType = resolver.Resolve(cred)
	}
	return types.Device{
		CanonicalID: cred.CanonicalID,
		DisplayName: cred.Alias,
		Type:        deviceType,
		Credential:  cred,
	}
}

// Save rewrites the credential file at path with records, keeping a backup of
// the previous file in backupDir when it is not empty.
func Save(path, backupDir string, records []types.Credential) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Header); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write([]string{rec.CanonicalID, rec.Alias, rec.Username, rec.Secret}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	writer := storage.NewAtomicWriter(backupDir)
	if err := writer.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return opserrors.StoreUnavailable(filepath.Dir(path), err)
	}
	return nil
}
