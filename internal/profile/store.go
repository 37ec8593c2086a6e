package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	playersDirName = "players"
	appDirName     = "mathquest"
)

// ErrNotFound is returned when no saved profile exists for an ID.
var ErrNotFound = errors.New("profile not found")

// ErrInvalidID is returned for IDs that cannot be used as a file name.
var ErrInvalidID = errors.New("invalid profile id")

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidID reports whether id is usable as a profile identifier.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// Store handles loading and saving profiles to disk, one JSON file per
// player under <dir>/players.
type Store struct {
	dir string // state directory; profiles live in dir/players
}

// NewStore creates a Store rooted at dir. The directory is created (with
// parents) on the first Save if it does not exist. Pass an empty string to
// use the default XDG state path.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = defaultStateDir()
	}
	return &Store{dir: dir}
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path to the profile file for id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, playersDirName, id+".json")
}

// Load reads the profile for id from disk. It returns ErrNotFound if no
// file exists.
func (s *Store) Load(id string) (*Profile, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", id, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	p.initMaps()

	return &p, nil
}

// Save writes p to disk using an atomic temp-file-then-rename pattern.
// The directory is created if it does not already exist.
func (s *Store) Save(p *Profile) error {
	if !ValidID(p.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, p.ID)
	}
	dir := filepath.Join(s.dir, playersDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating profile dir: %w", err)
	}

	p.Version = profileVersion
	p.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".profile-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path(p.ID)); err != nil {
		return fmt.Errorf("renaming profile file: %w", err)
	}
	committed = true

	return nil
}

// List returns the IDs of all saved profiles.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, playersDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// defaultStateDir returns ~/.local/state/mathquest, respecting
// XDG_STATE_HOME if set.
func defaultStateDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", appDirName)
}
