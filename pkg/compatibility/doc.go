// Package compatibility detects breaking changes between two versions of a
// linked schema.
//
// # Overview
//
// Both versions are flattened into a SchemaGraph keyed by fully qualified
// name. A graph is built either from a linked schema.Schema (FromSchema) or
// from a stored google.protobuf.FileDescriptorSet snapshot
// (FromDescriptorSet), so a working tree can be checked against any earlier
// snapshot.
//
// # Compatibility Modes
//
// NONE: No compatibility checking. Any change is allowed.
//
// BACKWARD: New schema can read data written by old schema.
// Consumers can upgrade before producers. Adding a required field breaks.
//
// FORWARD: Old schema can read data written by new schema.
// Producers can upgrade before consumers. Dropping a required field breaks
// and new enum values are flagged because old readers cannot name them.
//
// FULL: BACKWARD and FORWARD together.
//
// BACKWARD_TRANSITIVE, FORWARD_TRANSITIVE, FULL_TRANSITIVE: the same rules
// applied against every earlier version passed to CheckHistory instead of
// only the latest.
//
// # Rules
//
// Errors in every mode:
//
//	PACKAGE_CHANGED             file package renamed
//	MESSAGE_REMOVED             message deleted
//	FIELD_REMOVED               field deleted without reserving its tag
//	FIELD_NUMBER_CHANGED        field kept its name but moved tag
//	FIELD_TYPE_CHANGED          type changed across wire encodings
//	FIELD_LABEL_CHANGED         field became repeated or stopped being repeated
//	RESERVED_FIELD_REUSED       new field takes a reserved tag or name
//	ENUM_REMOVED                enum deleted
//	ENUM_VALUE_REMOVED          value deleted without reserving its number
//	ENUM_VALUE_NUMBER_CHANGED   value kept its name but changed number
//	RESERVED_ENUM_VALUE_REUSED  new value takes a reserved number or name
//	SERVICE_REMOVED, RPC_REMOVED
//	RPC_INPUT_TYPE_CHANGED, RPC_OUTPUT_TYPE_CHANGED, RPC_STREAMING_CHANGED
//
// Mode dependent: REQUIRED_FIELD_ADDED and optional to required label
// changes are errors when the mode checks backward compatibility; required
// to optional label changes are errors when it checks forward
// compatibility.
//
// Warnings and infos (never fail a check): FIELD_RENAMED,
// FIELD_ONEOF_CHANGED, type changes within one wire encoding (int32 to
// int64, string to bytes), ENUM_VALUE_RENAMED, ENUM_VALUE_ADDED,
// RESERVED_RANGE_REMOVED, RESERVED_NAME_REMOVED, PUBLIC_IMPORT_REMOVED,
// FIELD_ADDED, MESSAGE_ADDED, RPC_ADDED and removals whose tag was reserved.
//
// # Usage
//
//	oldGraph := compatibility.FromDescriptorSet(snapshot.Descriptors)
//	newGraph := compatibility.FromSchema(linked)
//
//	result, err := compatibility.CheckCompatibility(oldGraph, newGraph, compatibility.CompatibilityModeBackward)
//	if err != nil {
//		return err
//	}
//	for _, v := range result.Violations {
//		fmt.Println(v)
//	}
//
// Each Violation carries WireBreaking (old bytes decode wrongly) and
// SourceBreaking (generated code stops compiling) flags, and the Summary
// counts both.
package compatibility
