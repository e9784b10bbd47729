// Package storage persists schema snapshots.
//
// # Overview
//
// A snapshot is a named, versioned FileDescriptorSet with metadata (ID,
// creation time, file count and content digest). Snapshots are baselines
// for compatibility checks: "protolink snapshot push" records the current
// schema and "protolink check --against-snapshot" compares a working tree
// with the latest (or a pinned) version.
//
// # Architecture
//
// The store abstraction is composed of focused interfaces:
//
//   - SnapshotReader: Get, Latest, List
//   - SnapshotWriter: Put, Delete
//   - HealthChecker: Ping
//
// SnapshotStore combines them with Close. Snapshots are immutable; Put
// returns ErrSnapshotExists when a name and version are already taken.
//
// # Backends
//
//   - filesystem: JSON records under <root>/<name>/<version>.json on any afero.Fs
//   - redis: records plus a per-name sorted set of versions
//   - postgres and sqlite: one protolink_snapshots table
//   - s3: JSON records under <prefix>/<name>/<version>.json
//
// # Usage Example
//
//	store, err := storage.Open(ctx, cfg.Storage)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	snapshot, err := storage.NewSnapshot("orders", "v3", descriptor.FromSchema(s))
//	if err != nil {
//		return err
//	}
//	if err := store.Put(ctx, snapshot); err != nil {
//		return err
//	}
//
//	baseline, err := store.Latest(ctx, "orders")
//	if errors.Is(err, storage.ErrSnapshotNotFound) {
//		// first push
//	}
package storage
