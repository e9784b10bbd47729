package schema

// ProtoMember identifies a member of a type, such as the "packed" field of
// google.protobuf.FieldOptions. Extension members use their qualified name.
type ProtoMember struct {
	Type   ProtoType
	Member string
}

// ProtoMemberOf returns the member of t named member.
func ProtoMemberOf(t ProtoType, member string) ProtoMember {
	return ProtoMember{Type: t, Member: member}
}

func (m ProtoMember) String() string {
	return m.Type.String() + "#" + m.Member
}
