package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// NewSnapshot wraps set as a new snapshot with a fresh ID and creation time.
func NewSnapshot(name, version string, set *descriptorpb.FileDescriptorSet) (*Snapshot, error) {
	if version == "" {
		version = time.Now().UTC().Format("20060102T150405Z")
	}
	if err := validateKey(name, version); err != nil {
		return nil, err
	}
	data, err := marshalSet(set)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return &Snapshot{
		SnapshotInfo: SnapshotInfo{
			ID:        uuid.NewString(),
			Name:      name,
			Version:   version,
			CreatedAt: time.Now().UTC(),
			FileCount: len(set.GetFile()),
			Digest:    "sha256:" + hex.EncodeToString(sum[:]),
		},
		Files: set,
	}, nil
}

func validateKey(name, version string) error {
	if !keyPattern.MatchString(name) {
		return fmt.Errorf("%w: name %q", ErrInvalidName, name)
	}
	if version != "" && !keyPattern.MatchString(version) {
		return fmt.Errorf("%w: version %q", ErrInvalidName, version)
	}
	return nil
}

func marshalSet(set *descriptorpb.FileDescriptorSet) ([]byte, error) {
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal descriptor set: %w", err)
	}
	return data, nil
}

func unmarshalSet(data []byte) (*descriptorpb.FileDescriptorSet, error) {
	set := new(descriptorpb.FileDescriptorSet)
	if err := proto.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal descriptor set: %w", err)
	}
	return set, nil
}

// record is the encoding used by the key-value backends.
type record struct {
	Info       SnapshotInfo `json:"info"`
	Descriptor []byte       `json:"descriptor"`
}

func encodeRecord(s *Snapshot) ([]byte, error) {
	data, err := marshalSet(s.Files)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(record{Info: s.SnapshotInfo, Descriptor: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return out, nil
}

func decodeRecord(data []byte) (*Snapshot, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	set, err := unmarshalSet(r.Descriptor)
	if err != nil {
		return nil, err
	}
	return &Snapshot{SnapshotInfo: r.Info, Files: set}, nil
}

// sortInfos orders snapshots by name, then creation time, then version.
func sortInfos(infos []SnapshotInfo) {
	sort.Slice(infos, func(i, j int) bool {
		a, b := infos[i], infos[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Version < b.Version
	})
}

// latest resolves Latest through List and Get.
func latest(ctx context.Context, r SnapshotReader, name string) (*Snapshot, error) {
	if err := validateKey(name, ""); err != nil {
		return nil, err
	}
	infos, err := r.List(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	last := infos[len(infos)-1]
	return r.Get(ctx, last.Name, last.Version)
}

func notFound(name, version string) error {
	return fmt.Errorf("%w: %s@%s", ErrSnapshotNotFound, name, version)
}

func exists(name, version string) error {
	return fmt.Errorf("%w: %s@%s", ErrSnapshotExists, name, version)
}

func validateSnapshot(s *Snapshot) error {
	if s == nil || s.Files == nil {
		return fmt.Errorf("%w: snapshot has no descriptors", ErrInvalidName)
	}
	if s.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidName)
	}
	return validateKey(s.Name, s.Version)
}
