package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store persists named profiles. The engine consumes this interface;
// FileStore is the standard implementation.
type Store interface {
	Load(name string) (*Profile, error)
	Save(p *Profile) error
	List() ([]string, error)
	Delete(name string) error
}

// FileStore keeps one JSON file per profile under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the profiles directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating profiles directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Load reads a named profile.
func (s *FileStore) Load(name string) (*Profile, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", name, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", name, err)
	}
	if p.Name == "" {
		p.Name = name
	}
	return &p, nil
}

// Save writes a profile, stamping LastModified.
func (s *FileStore) Save(p *Profile) error {
	p.LastModified = time.Now()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(p.Name), data, 0644)
}

// List returns profile names in sorted order.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a profile file.
func (s *FileStore) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil {
		return fmt.Errorf("deleting profile %s: %w", name, err)
	}
	return nil
}

// Import reads a profile from a standalone file. The encoding follows the
// extension: .json, .yaml/.yml, or .csv. The imported profile is validated
// and saved under the given name.
func (s *FileStore) Import(path, name string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading import file: %w", err)
	}

	var p *Profile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		p = &Profile{}
		if err := json.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("parsing JSON profile: %w", err)
		}
	case ".yaml", ".yml":
		p = &Profile{}
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("parsing YAML profile: %w", err)
		}
	case ".csv":
		routes, err := decodeCSV(data)
		if err != nil {
			return nil, err
		}
		p = New(name)
		p.Routes = routes
	default:
		return nil, fmt.Errorf("unsupported profile format: %s", filepath.Ext(path))
	}

	p.Name = name
	if p.Version == 0 {
		p.Version = 1
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.Save(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Export writes a named profile to a standalone file, encoded per the
// destination extension.
func (s *FileStore) Export(name, path string) error {
	p, err := s.Load(name)
	if err != nil {
		return err
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(p, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(p)
	case ".csv":
		data, err = encodeCSV(p.Routes)
	default:
		return fmt.Errorf("unsupported profile format: %s", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
