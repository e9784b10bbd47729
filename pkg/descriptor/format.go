package descriptor

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Format is an encoding of a descriptor set.
type Format string

const (
	FormatBinary Format = "binary"
	FormatJSON   Format = "json"
	FormatText   Format = "text"
)

// ParseFormat returns the format named s. The empty string is binary.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "binary", "bin", "pb":
		return FormatBinary, nil
	case "json":
		return FormatJSON, nil
	case "text", "txt", "textproto":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown descriptor format %q", s)
}

// Marshal encodes set in the given format.
func Marshal(set *descriptorpb.FileDescriptorSet, format Format) ([]byte, error) {
	switch format {
	case FormatBinary, "":
		return proto.MarshalOptions{Deterministic: true}.Marshal(set)
	case FormatJSON:
		return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(set)
	case FormatText:
		return prototext.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(set)
	}
	return nil, fmt.Errorf("unknown descriptor format %q", format)
}

// Unmarshal decodes a binary descriptor set.
func Unmarshal(data []byte) (*descriptorpb.FileDescriptorSet, error) {
	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor set: %w", err)
	}
	return set, nil
}
