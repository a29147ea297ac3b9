package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sanaa360/creator-cli/internal/backend"
	log "github.com/sirupsen/logrus"
)

// SnapshotFileName is the durable session mirror under the auth directory.
// It carries exactly the persisted subset: user, authenticated flag, expiry.
const SnapshotFileName = "auth-storage.json"

// Snapshot is the serialization boundary between the store and durable
// storage. Transient fields (loading, error) have no representation here and
// therefore can never leak into the file.
type Snapshot struct {
	User            *backend.Profile `json:"user"`
	IsAuthenticated bool             `json:"isAuthenticated"`
	TokenExpiry     *time.Time       `json:"tokenExpiry,omitempty"`
}

// persistLocked writes the current persisted subset through the persister.
// Callers hold the store mutex.
func (s *Store) persistLocked() {
	if s.persister == nil {
		return
	}
	snap := &Snapshot{
		User:            s.user,
		IsAuthenticated: s.authenticated,
		TokenExpiry:     s.tokenExpiry,
	}
	if err := s.persister.Save(snap); err != nil {
		log.Warnf("session snapshot save failed: %v", err)
	}
}

// FileStore persists the session snapshot as a JSON file in the auth
// directory. Writes are skipped when the on-disk content already matches,
// so repeated operations don't churn the file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a snapshot store rooted at the given auth directory.
func NewFileStore(authDir string) *FileStore {
	return &FileStore{path: filepath.Join(authDir, SnapshotFileName)}
}

// Load reads the snapshot from disk. A missing file yields (nil, nil).
func (f *FileStore) Load() (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session filestore: read failed: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	snap := &Snapshot{}
	if err = json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("session filestore: unmarshal failed: %w", err)
	}
	return snap, nil
}

// Save writes the snapshot to disk, creating the auth directory on first use.
func (f *FileStore) Save(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("session filestore: snapshot is nil")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("session filestore: marshal failed: %w", err)
	}
	if existing, errRead := os.ReadFile(f.path); errRead == nil && jsonEqual(existing, raw) {
		return nil
	}
	if err = os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("session filestore: create dir failed: %w", err)
	}
	if err = os.WriteFile(f.path, raw, 0o600); err != nil {
		return fmt.Errorf("session filestore: write failed: %w", err)
	}
	return nil
}

// jsonEqual compares two JSON blobs by parsing them into Go objects and deep comparing.
func jsonEqual(a, b []byte) bool {
	var objA any
	var objB any
	if err := json.Unmarshal(a, &objA); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &objB); err != nil {
		return false
	}
	return deepEqualJSON(objA, objB)
}

func deepEqualJSON(a, b any) bool {
	switch valA := a.(type) {
	case map[string]any:
		valB, ok := b.(map[string]any)
		if !ok || len(valA) != len(valB) {
			return false
		}
		for key, subA := range valA {
			subB, ok1 := valB[key]
			if !ok1 || !deepEqualJSON(subA, subB) {
				return false
			}
		}
		return true
	case []any:
		sliceB, ok := b.([]any)
		if !ok || len(valA) != len(sliceB) {
			return false
		}
		for i := range valA {
			if !deepEqualJSON(valA[i], sliceB[i]) {
				return false
			}
		}
		return true
	case float64:
		valB, ok := b.(float64)
		return ok && valA == valB
	case string:
		valB, ok := b.(string)
		return ok && valA == valB
	case bool:
		valB, ok := b.(bool)
		return ok && valA == valB
	case nil:
		return b == nil
	default:
		return false
	}
}
