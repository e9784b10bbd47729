// Package schema links parsed proto files into a resolved, validated
// Schema.
//
// Link binds every type reference to its declaration, following the
// package-scoped search rules of the protobuf language, checks that the
// declaring file is visible through imports and runs the structural checks:
// tag ranges, unique tags and names, enum aliasing, reserved tags and names,
// packed encodings and extension labels. Every violation is collected and
// returned as one *Error whose text lists the diagnostics with their source
// locations:
//
//	unable to resolve foo_package.Foo
//	  for field unknown (/source/message.proto at 2:3)
//	  in message Message (/source/message.proto at 1:1)
//
// Files are linked and validated concurrently; diagnostics are always
// reported in file order, link diagnostics first.
package schema
