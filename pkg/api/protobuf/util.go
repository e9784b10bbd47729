package protobuf

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/wellknownimports"
)

// ErrNoPackage is returned by ExtractPackageName when the file has no
// package statement.
var ErrNoPackage = errors.New("no package statement found")

// ProtoImport represents a parsed import statement
type ProtoImport struct {
	Path   string
	Public bool
	Weak   bool
}

var standardImports = wellknownimports.WithStandardImports(&protocompile.SourceResolver{
	Accessor: func(string) (io.ReadCloser, error) {
		return nil, fs.ErrNotExist
	},
})

// ParseFile parses the proto file at base/path.
func ParseFile(base, path string) (*RootNode, error) {
	f, err := os.Open(filepath.Join(base, path))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return Parse(base, path, f)
}

// ParseReader parses proto source read from r. The node has no path.
func ParseReader(r io.Reader) (*RootNode, error) {
	return Parse("", "", r)
}

// ParseString parses proto source held in s. The node has no path.
func ParseString(s string) (*RootNode, error) {
	return Parse("", "", strings.NewReader(s))
}

// StandardImport returns the parsed google/protobuf file at path, for
// example "google/protobuf/descriptor.proto". The second result is false
// when path is not a well-known import.
func StandardImport(path string) (*RootNode, bool, error) {
	result, err := standardImports.FindFileByPath(path)
	if err != nil || result.Source == nil {
		return nil, false, nil
	}
	if c, ok := result.Source.(io.Closer); ok {
		defer c.Close()
	}

	root, err := Parse("", path, result.Source)
	if err != nil {
		return nil, true, err
	}
	return root, true, nil
}

// ExtractPackageName extracts the package name from a protobuf file content
func ExtractPackageName(content string) (string, error) {
	root, err := ParseString(content)
	if err != nil {
		return "", err
	}
	if root.Package == nil {
		return "", ErrNoPackage
	}
	return root.Package.Name, nil
}

// ExtractImports extracts import statements from a protobuf file content
func ExtractImports(content string) ([]ProtoImport, error) {
	root, err := ParseString(content)
	if err != nil {
		return nil, err
	}

	imports := make([]ProtoImport, 0, len(root.Imports))
	for _, imp := range root.Imports {
		imports = append(imports, ProtoImport{
			Path:   imp.Path,
			Public: imp.Public,
			Weak:   imp.Weak,
		})
	}
	return imports, nil
}

// ValidateProtoFile validates the syntax of a protobuf file
func ValidateProtoFile(content string) error {
	_, err := ParseString(content)
	return err
}
