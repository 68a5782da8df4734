package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// Latest is accepted by Load in place of a run ID.
const Latest = "latest"

// DiskStore writes each RunResult as a JSON file in a directory that is
// created on the first Save.
type DiskStore struct {
	mu  sync.Mutex
	dir string
}

// NewDiskStore returns a store rooted at dir.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Dir returns the directory holding the reports.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save writes result to <dir>/<id>.json.
func (s *DiskStore) Save(result *RunResult) error {
	if result.ID == "" || strings.ContainsAny(result.ID, `/\`) {
		return eris.Errorf("invalid run id %q", result.ID)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "marshalling result %s", result.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return eris.Wrap(err, "creating report directory")
	}
	path := filepath.Join(s.dir, result.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "writing result %s", result.ID)
	}
	return nil
}

// Load reads a RunResult by ID, or the most recent one for Latest.
func (s *DiskStore) Load(runID string) (*RunResult, error) {
	if runID == Latest {
		all, err := s.List()
		if err != nil {
			return nil, err
		}
		if len(all) == 0 {
			return nil, eris.New("no runs recorded yet")
		}
		return all[0], nil
	}
	if strings.ContainsAny(runID, `/\`) {
		return nil, eris.Errorf("invalid run id %q", runID)
	}
	return readResult(filepath.Join(s.dir, runID+".json"))
}

// List returns every stored run, most recent first.
func (s *DiskStore) List() ([]*RunResult, error) {
	s.mu.Lock()
	entries, err := os.ReadDir(s.dir)
	s.mu.Unlock()
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "listing reports")
	}

	var out []*RunResult
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		r, err := readResult(filepath.Join(s.dir, e.Name()))
		if err != nil {
			// A report being written concurrently or hand-edited; skip it.
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func readResult(path string) (*RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reading result %s", strings.TrimSuffix(filepath.Base(path), ".json"))
	}
	var result RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, eris.Wrapf(err, "unmarshalling result %s", filepath.Base(path))
	}
	return &result, nil
}
