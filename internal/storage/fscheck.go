package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNetworkFilesystem is returned for history paths on remote mounts.
	ErrNetworkFilesystem = errors.New("network filesystem")

	// errDetectUnsupported is returned on platforms without statfs.
	errDetectUnsupported = errors.New("filesystem detection unsupported")
)

var networkFilesystems = map[string]struct{}{
	"afpfs":  {},
	"cifs":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
	"9p":     {},
}

// FSInfo describes the filesystem that holds (or will hold) a path.
type FSInfo struct {
	// Inspected is the nearest existing ancestor that was examined.
	Inspected string
	Type      string
	Network   bool
	// Known is false where the platform cannot report a type.
	Known bool
}

type fsDetector func(path string) (string, error)

// Filesystem reports on the filesystem under path. Missing trailing
// components are fine: the nearest existing ancestor is inspected.
func Filesystem(path string) (FSInfo, error) {
	return filesystemWith(path, detectFilesystemType)
}

func filesystemWith(path string, detect fsDetector) (FSInfo, error) {
	if path == "" {
		return FSInfo{}, fmt.Errorf("path is empty")
	}
	existing, err := nearestExisting(path)
	if err != nil {
		return FSInfo{}, fmt.Errorf("resolve %q: %w", path, err)
	}

	info := FSInfo{Inspected: existing}
	fsType, err := detect(existing)
	switch {
	case errors.Is(err, errDetectUnsupported):
		return info, nil
	case err != nil:
		return info, fmt.Errorf("detect filesystem for %q: %w", existing, err)
	}
	info.Type = fsType
	info.Known = true
	_, info.Network = networkFilesystems[strings.ToLower(strings.TrimSpace(fsType))]
	return info, nil
}

// requireLocal rejects history databases on network mounts, where SQLite
// locking is unreliable.
func requireLocal(path string, detect fsDetector) error {
	info, err := filesystemWith(path, detect)
	if err != nil {
		return err
	}
	if info.Network {
		return fmt.Errorf("history path %q is on %s (%w); SQLite needs local locking, set state.path to a local file or disable state",
			path, info.Type, ErrNetworkFilesystem)
	}
	return nil
}

func nearestExisting(path string) (string, error) {
	candidate, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing ancestor")
		}
		candidate = parent
	}
}
