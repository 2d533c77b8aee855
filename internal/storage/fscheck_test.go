package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func detectAs(fsType string) fsDetector {
	return func(string) (string, error) { return fsType, nil }
}

func TestRequireLocal_AllowsLocalFS(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	if err := requireLocal(dbPath, detectAs("apfs")); err != nil {
		t.Fatalf("expected local filesystem to pass, got: %v", err)
	}
}

func TestRequireLocal_RejectsNetworkFS(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	err := requireLocal(dbPath, detectAs("SMBFS"))
	if !errors.Is(err, ErrNetworkFilesystem) {
		t.Fatalf("expected ErrNetworkFilesystem, got: %v", err)
	}
	for _, want := range []string{"SMBFS", "state.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to contain %q, got %q", want, err)
		}
	}
}

func TestFilesystem_InspectsNearestExistingAncestor(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var inspected string
	info, err := filesystemWith(filepath.Join(root, "nested", "dir", "history.db"), func(path string) (string, error) {
		inspected = path
		return "nfs", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if inspected != root || info.Inspected != root {
		t.Fatalf("inspected %q (info %q), want %q", inspected, info.Inspected, root)
	}
	if !info.Known || !info.Network || info.Type != "nfs" {
		t.Fatalf("info = %+v", info)
	}
}

func TestFilesystem_UnsupportedPlatformIsUnknown(t *testing.T) {
	t.Parallel()

	info, err := filesystemWith(t.TempDir(), func(string) (string, error) {
		return "", errDetectUnsupported
	})
	if err != nil {
		t.Fatalf("expected unsupported detection to be skipped, got: %v", err)
	}
	if info.Known || info.Network {
		t.Fatalf("info = %+v", info)
	}
	if err := requireLocal(filepath.Join(t.TempDir(), "x.db"), func(string) (string, error) {
		return "", errDetectUnsupported
	}); err != nil {
		t.Fatalf("requireLocal() = %v", err)
	}
}

func TestFilesystem_DetectorError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := filesystemWith(t.TempDir(), func(string) (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped detector error, got %v", err)
	}
}

func TestFilesystem_RealPath(t *testing.T) {
	t.Parallel()

	info, err := Filesystem(t.TempDir())
	if err != nil {
		t.Fatalf("Filesystem() error = %v", err)
	}
	if info.Inspected == "" {
		t.Fatal("expected an inspected path")
	}
}

func TestFilesystem_EmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := Filesystem(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
