// Package descriptor converts a linked schema.Schema into a
// google.protobuf.FileDescriptorSet, the form protoc and the protobuf
// runtimes consume, and encodes it.
package descriptor
