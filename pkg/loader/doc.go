// Package loader discovers and parses proto files for linking.
//
// A Loader walks one or more root directories on an afero filesystem,
// parses every .proto file in parallel and follows imports that resolve
// outside the roots, including the google/protobuf well-known files.
// Parsed files are cached in an expiring LRU keyed by path and content
// hash.
package loader
