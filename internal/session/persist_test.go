package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sanaa360/creator-cli/internal/backend"
)

func TestFileStoreLoadMissing(t *testing.T) {
	t.Parallel()

	fs := NewFileStore(t.TempDir())
	snap, err := fs.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if snap != nil {
		t.Errorf("Load() = %+v, want nil for a missing file", snap)
	}
}

func TestFileStoreSaveLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fs := NewFileStore(dir)

	expiry := time.Now().Add(time.Hour).UTC()
	in := &Snapshot{
		User:            &backend.Profile{ID: "u1", Username: "amina", Scope: backend.ScopeList{"video.upload"}},
		IsAuthenticated: true,
		TokenExpiry:     &expiry,
	}
	if err := fs.Save(in); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	out, err := fs.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if out == nil || !out.IsAuthenticated || out.User == nil || out.User.Username != "amina" {
		t.Errorf("Load() = %+v", out)
	}
	if out.TokenExpiry == nil || !out.TokenExpiry.Equal(expiry) {
		t.Errorf("TokenExpiry = %v, want %v", out.TokenExpiry, expiry)
	}

	info, err := os.Stat(filepath.Join(dir, SnapshotFileName))
	if err != nil {
		t.Fatalf("stat snapshot: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("snapshot permissions = %o, want 600", perm)
	}
}

func TestFileStoreSkipsUnchangedWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fs := NewFileStore(dir)
	snap := &Snapshot{User: &backend.Profile{ID: "u1", Username: "amina"}, IsAuthenticated: true}

	if err := fs.Save(snap); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	path := filepath.Join(dir, SnapshotFileName)
	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat snapshot: %v", err)
	}

	// Backdate the file so an unnecessary rewrite would be visible.
	old := time.Now().Add(-time.Hour)
	if err = os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err = fs.Save(snap); err != nil {
		t.Fatalf("second Save() error: %v", err)
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat snapshot: %v", err)
	}
	if !after.ModTime().Before(before.ModTime()) {
		t.Error("identical snapshot should not rewrite the file")
	}
}
