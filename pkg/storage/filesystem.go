package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const snapshotExt = ".json"

// FileSystemStore keeps one JSON record per snapshot under
// <root>/<name>/<version>.json.
type FileSystemStore struct {
	fs      afero.Fs
	rootDir string
}

// NewFileSystemStore creates a store rooted at rootDir on the OS filesystem.
func NewFileSystemStore(rootDir string) (*FileSystemStore, error) {
	return NewFileSystemStoreFs(afero.NewOsFs(), rootDir)
}

// NewFileSystemStoreFs creates a store on an arbitrary afero filesystem.
func NewFileSystemStoreFs(fs afero.Fs, rootDir string) (*FileSystemStore, error) {
	if err := fs.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FileSystemStore{fs: fs, rootDir: rootDir}, nil
}

func (s *FileSystemStore) path(name, version string) string {
	return filepath.Join(s.rootDir, name, version+snapshotExt)
}

// Put implements SnapshotWriter.Put
func (s *FileSystemStore) Put(ctx context.Context, snapshot *Snapshot) error {
	if err := validateSnapshot(snapshot); err != nil {
		return err
	}
	target := s.path(snapshot.Name, snapshot.Version)
	if ok, err := afero.Exists(s.fs, target); err != nil {
		return fmt.Errorf("failed to stat snapshot: %w", err)
	} else if ok {
		return exists(snapshot.Name, snapshot.Version)
	}

	data, err := encodeRecord(snapshot)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	// Write then rename so readers never see a partial record.
	tmp := target + "." + uuid.NewString() + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	return nil
}

// Get implements SnapshotReader.Get
func (s *FileSystemStore) Get(ctx context.Context, name, version string) (*Snapshot, error) {
	if err := validateKey(name, version); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, s.path(name, version))
	if os.IsNotExist(err) {
		return nil, notFound(name, version)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return decodeRecord(data)
}

// Latest implements SnapshotReader.Latest
func (s *FileSystemStore) Latest(ctx context.Context, name string) (*Snapshot, error) {
	return latest(ctx, s, name)
}

// List implements SnapshotReader.List
func (s *FileSystemStore) List(ctx context.Context, name string) ([]SnapshotInfo, error) {
	var names []string
	if name != "" {
		if err := validateKey(name, ""); err != nil {
			return nil, err
		}
		names = []string{name}
	} else {
		entries, err := afero.ReadDir(s.fs, s.rootDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read root directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				names = append(names, entry.Name())
			}
		}
	}

	infos := make([]SnapshotInfo, 0)
	for _, n := range names {
		entries, err := afero.ReadDir(s.fs, filepath.Join(s.rootDir, n))
		if os.IsNotExist(err) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("failed to read snapshot directory %s: %w", n, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotExt) {
				continue
			}
			snapshot, err := s.Get(ctx, n, strings.TrimSuffix(entry.Name(), snapshotExt))
			if err != nil {
				return nil, fmt.Errorf("failed to get snapshot %s: %w", entry.Name(), err)
			}
			infos = append(infos, snapshot.SnapshotInfo)
		}
	}
	sortInfos(infos)
	return infos, nil
}

// Delete implements SnapshotWriter.Delete
func (s *FileSystemStore) Delete(ctx context.Context, name, version string) error {
	if err := validateKey(name, version); err != nil {
		return err
	}
	err := s.fs.Remove(s.path(name, version))
	if os.IsNotExist(err) {
		return notFound(name, version)
	} else if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	// Drop the name directory once its last version is gone.
	if empty, err := afero.IsEmpty(s.fs, filepath.Join(s.rootDir, name)); err == nil && empty {
		_ = s.fs.Remove(filepath.Join(s.rootDir, name))
	}
	return nil
}

// Ping implements HealthChecker.Ping
func (s *FileSystemStore) Ping(ctx context.Context) error {
	info, err := s.fs.Stat(s.rootDir)
	if err != nil {
		return fmt.Errorf("filesystem health check failed: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("filesystem health check failed: %s is not a directory", s.rootDir)
	}
	return nil
}

// Close implements SnapshotStore.Close
func (s *FileSystemStore) Close() error { return nil }
