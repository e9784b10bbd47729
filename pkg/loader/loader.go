package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/protolink/pkg/api/protobuf"
)

var (
	// ErrNotFound is returned when a root or, in strict mode, an import
	// does not exist.
	ErrNotFound = errors.New("proto file not found")
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 10 * time.Minute
)

// Config configures a Loader.
type Config struct {
	// CacheSize is the number of parsed files kept. Zero uses a default.
	CacheSize int
	// CacheTTL is how long a parsed file is kept. Zero uses a default.
	CacheTTL time.Duration
	// Parallelism bounds concurrent parses. Zero means GOMAXPROCS.
	Parallelism int
	// Strict makes imports that name no file fail the load with
	// ErrNotFound instead of leaving them for the linker to report.
	Strict bool
	Logger logrus.FieldLogger
}

// Stats reports parse cache usage.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// Loader finds and parses proto files below a set of root directories.
// Parsed files are cached by path and content hash, so repeated loads only
// parse files that changed. A Loader is safe for concurrent use.
type Loader struct {
	fs          afero.Fs
	roots       []string
	cache       *lru.LRU[string, *protobuf.RootNode]
	parallelism int
	strict      bool
	log         logrus.FieldLogger

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a loader reading roots from fsys. Roots are searched in
// order; a path found under an earlier root hides the same path under a
// later one.
//
// The parse cache expires entries from a background goroutine that lives
// for the rest of the process, so create loaders once per root set rather
// than per request.
func New(fsys afero.Fs, roots []string, cfg Config) *Loader {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	log := cfg.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	return &Loader{
		fs:          fsys,
		roots:       roots,
		cache:       lru.NewLRU[string, *protobuf.RootNode](size, nil, ttl),
		parallelism: parallelism,
		strict:      cfg.Strict,
		log:         log,
	}
}

// Roots returns the directories the loader searches.
func (l *Loader) Roots() []string {
	return append([]string(nil), l.roots...)
}

// Stats returns the parse cache counters.
func (l *Loader) Stats() Stats {
	return Stats{
		Hits:    l.hits.Load(),
		Misses:  l.misses.Load(),
		Entries: l.cache.Len(),
	}
}

// Purge drops every cached parse.
func (l *Loader) Purge() {
	l.cache.Purge()
}

type sourceFile struct {
	base string
	path string
}

// Load parses every .proto file below the roots, then every file they
// import that lives outside the roots. Files under the roots come first in
// path order, followed by imports in the order they were discovered.
func (l *Loader) Load(ctx context.Context) ([]*protobuf.RootNode, error) {
	found := make(map[string]sourceFile)
	for _, root := range l.roots {
		if err := l.walk(root, found); err != nil {
			return nil, err
		}
	}

	paths := make([]string, 0, len(found))
	for p := range found {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	sources := make([]sourceFile, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, found[p])
	}

	files, err := l.parseAll(ctx, sources)
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"roots": len(l.roots),
		"files": len(files),
	}).Debug("loaded proto roots")

	return l.resolveImports(files, l.findImport)
}

// LoadSources parses in-memory sources keyed by import path. Imports of
// well-known files are added; other missing imports are left to the linker
// unless the loader is strict.
func (l *Loader) LoadSources(ctx context.Context, sources map[string]string) ([]*protobuf.RootNode, error) {
	paths := make([]string, 0, len(sources))
	for p := range sources {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	files := make([]*protobuf.RootNode, len(paths))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(l.parallelism)
	for i, p := range paths {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			root, err := l.parse("", p, []byte(sources[p]))
			if err != nil {
				return err
			}
			files[i] = root
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return l.resolveImports(files, func(string) (*protobuf.RootNode, bool, error) {
		return nil, false, nil
	})
}

func (l *Loader) walk(root string, found map[string]sourceFile) error {
	info, err := l.fs.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: root %s", ErrNotFound, root)
		}
		return fmt.Errorf("failed to stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", root)
	}

	return afero.Walk(l.fs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if p != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(p) != ".proto" {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, ok := found[rel]; !ok {
			found[rel] = sourceFile{base: root, path: rel}
		}
		return nil
	})
}

func (l *Loader) parseAll(ctx context.Context, sources []sourceFile) ([]*protobuf.RootNode, error) {
	files := make([]*protobuf.RootNode, len(sources))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(l.parallelism)

	for i, src := range sources {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			root, err := l.parseFile(src)
			if err != nil {
				return err
			}
			files[i] = root
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (l *Loader) parseFile(src sourceFile) (*protobuf.RootNode, error) {
	content, err := afero.ReadFile(l.fs, filepath.Join(src.base, filepath.FromSlash(src.path)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.path, err)
	}
	return l.parse(src.base, src.path, content)
}

// parse returns the cached parse of content or parses it.
func (l *Loader) parse(base, p string, content []byte) (*protobuf.RootNode, error) {
	key := cacheKey(base, p, content)
	if root, ok := l.cache.Get(key); ok {
		l.hits.Add(1)
		return root, nil
	}
	l.misses.Add(1)

	root, err := protobuf.Parse(base, p, strings.NewReader(string(content)))
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, root)
	return root, nil
}

// findImport looks an import path up under the roots.
func (l *Loader) findImport(p string) (*protobuf.RootNode, bool, error) {
	for _, root := range l.roots {
		full := filepath.Join(root, filepath.FromSlash(p))
		ok, err := afero.Exists(l.fs, full)
		if err != nil {
			return nil, false, fmt.Errorf("failed to stat %s: %w", full, err)
		}
		if !ok {
			continue
		}
		parsed, err := l.parseFile(sourceFile{base: root, path: p})
		return parsed, true, err
	}
	return nil, false, nil
}

// resolveImports appends the files imported by files that are not loaded
// yet. find is consulted first, then the well-known imports.
func (l *Loader) resolveImports(files []*protobuf.RootNode, find func(string) (*protobuf.RootNode, bool, error)) ([]*protobuf.RootNode, error) {
	loaded := make(map[string]bool, len(files))
	for _, f := range files {
		loaded[f.Path] = true
	}

	for i := 0; i < len(files); i++ {
		for _, imp := range files[i].Imports {
			p := path.Clean(imp.Path)
			if loaded[p] {
				continue
			}
			loaded[p] = true

			root, ok, err := find(p)
			if err != nil {
				return nil, err
			}
			if !ok {
				root, ok, err = protobuf.StandardImport(p)
				if err != nil {
					return nil, fmt.Errorf("failed to parse %s: %w", p, err)
				}
			}
			if !ok {
				if l.strict {
					return nil, fmt.Errorf("%w: %s imported by %s", ErrNotFound, p, files[i].Path)
				}
				l.log.WithField("import", p).Debug("import not found")
				continue
			}
			files = append(files, root)
		}
	}
	return files, nil
}

func cacheKey(base, p string, content []byte) string {
	sum := sha256.Sum256(content)
	return base + "\x00" + p + "\x00" + hex.EncodeToString(sum[:])
}
