// Package index builds a package dependency catalog from a Go source tree.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/mod/modfile"

	"github.com/jward/finder/internal/store"
)

// ErrLocked is returned when another indexer holds the database lock until
// the context ends.
var ErrLocked = errors.New("index: database is locked by another indexer")

// DefaultLockRetry is how often a busy lock is retried.
const DefaultLockRetry = 100 * time.Millisecond

// skipDirs lists directory names excluded from indexing. Hidden directories
// are always skipped.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"testdata":     true,
}

// Result summarizes one index run.
type Result struct {
	Files    int
	Packages int
	Modules  int
	Edges    int
}

// Indexer writes package nodes and import edges into a store.
type Indexer struct {
	store     *store.Store
	lockPath  string
	logger    *zap.Logger
	lockRetry time.Duration
	workers   int
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the indexer's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(ix *Indexer) {
		ix.logger = logger
	}
}

// WithLockRetry sets the interval between lock attempts.
func WithLockRetry(d time.Duration) Option {
	return func(ix *Indexer) {
		ix.lockRetry = d
	}
}

// WithWorkers sets how many files are parsed concurrently. Values below one
// mean one.
func WithWorkers(n int) Option {
	return func(ix *Indexer) {
		ix.workers = max(n, 1)
	}
}

// New creates an Indexer for s. Concurrent indexers on the same dbPath are
// serialized through a lock file at dbPath + ".lock".
func New(s *store.Store, dbPath string, opts ...Option) *Indexer {
	ix := &Indexer{
		store:     s,
		lockPath:  dbPath + ".lock",
		logger:    zap.NewNop(),
		lockRetry: DefaultLockRetry,
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// dirInfo accumulates what the files of one directory declare.
type dirInfo struct {
	rel       string
	pkg       string
	imports   map[string]bool
	onlyTests bool
}

// IndexDirectory walks root, parses every Go file and replaces the stored
// catalog with one node per package directory, one module node per
// third-party module and import edges between them. Standard library
// imports are ignored.
func (ix *Indexer) IndexDirectory(ctx context.Context, root string) (*Result, error) {
	lock := flock.New(ix.lockPath)
	locked, err := lock.TryLockContext(ctx, ix.lockRetry)
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocked, err)
	}
	if err != nil {
		return nil, fmt.Errorf("index: acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	defer lock.Unlock()

	start := time.Now()
	mod := readGoModule(root)

	paths, err := walkListFiles(root)
	if err != nil {
		return nil, err
	}

	dirs, err := ix.parseFiles(ctx, root, paths)
	if err != nil {
		return nil, err
	}

	batch := store.NewBatchedStore(ix.store)
	batch.ReplaceExisting()
	res, err := writeCatalog(batch, mod, dirs)
	if err != nil {
		return nil, err
	}
	res.Files = len(paths)

	if err := ix.store.CommitBatch(batch); err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	ix.logger.Info("indexed directory",
		zap.String("root", root),
		zap.String("module", mod.Path),
		zap.Int("files", res.Files),
		zap.Int("packages", res.Packages),
		zap.Int("modules", res.Modules),
		zap.Int("edges", res.Edges),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// parseFiles parses paths and folds them into per-directory summaries in
// path order.
func (ix *Indexer) parseFiles(ctx context.Context, root string, paths []string) (map[string]*dirInfo, error) {
	parsed, err := ix.parseParallel(ctx, paths)
	if err != nil {
		return nil, err
	}

	dirs := map[string]*dirInfo{}
	for i, p := range paths {
		f := parsed[i]
		if f.Package == "" {
			ix.logger.Warn("skipping file without package clause", zap.String("path", p))
			continue
		}

		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
		rel = filepath.ToSlash(rel)

		d := dirs[rel]
		if d == nil {
			d = &dirInfo{rel: rel, imports: map[string]bool{}, onlyTests: true}
			dirs[rel] = d
		}
		isTest := strings.HasSuffix(p, "_test.go")
		if !isTest {
			d.onlyTests = false
			d.pkg = f.Package
		} else if d.pkg == "" {
			d.pkg = strings.TrimSuffix(f.Package, "_test")
		}
		for _, imp := range f.Imports {
			d.imports[imp] = true
		}
	}
	return dirs, nil
}

// parseParallel reads and parses paths on a worker pool. Tree-sitter parsers
// are not safe for concurrent use, so every worker owns one. Results are
// indexed like paths.
func (ix *Indexer) parseParallel(ctx context.Context, paths []string) ([]*goFile, error) {
	out := make([]*goFile, len(paths))
	if len(paths) == 0 {
		return out, nil
	}
	numWorkers := min(ix.workers, len(paths))

	workCh := make(chan int, len(paths))
	for i := range paths {
		workCh <- i
	}
	close(workCh)

	errCh := make(chan error, numWorkers)
	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gp, err := newGoParser()
			if err != nil {
				errCh <- err
				return
			}
			defer gp.Close()

			for i := range workCh {
				if err := ctx.Err(); err != nil {
					errCh <- err
					return
				}
				src, err := os.ReadFile(paths[i])
				if err != nil {
					errCh <- fmt.Errorf("index: read %s: %w", paths[i], err)
					return
				}
				f, err := gp.parse(ctx, src)
				if err != nil {
					errCh <- fmt.Errorf("index: %s: %w", paths[i], err)
					return
				}
				out[i] = f
			}
		}()
	}
	wg.Wait()
	close(errCh)

	// First error wins; the channel is empty on success.
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}

// writeCatalog emits nodes and edges for the parsed directories.
func writeCatalog(w store.NodeWriter, mod goModule, dirs map[string]*dirInfo) (*Result, error) {
	res := &Result{}

	rels := make([]string, 0, len(dirs))
	for rel := range dirs {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	pkgIDs := map[string]int64{} // import path -> node id
	for _, rel := range rels {
		d := dirs[rel]
		n := &store.Node{
			Name: importPath(mod.Path, rel),
			Kind: store.KindPackage,
			Path: rel,
		}
		if d.onlyTests {
			n.Tags = append(n.Tags, store.TagTest)
		}
		if d.pkg == "main" {
			n.Tags = append(n.Tags, "main")
		}
		id, err := w.InsertNode(n)
		if err != nil {
			return nil, fmt.Errorf("index: insert package %s: %w", n.Name, err)
		}
		pkgIDs[n.Name] = id
		res.Packages++
	}

	modIDs := map[string]int64{}
	for _, rel := range rels {
		d := dirs[rel]
		from := pkgIDs[importPath(mod.Path, rel)]

		imports := make([]string, 0, len(d.imports))
		for imp := range d.imports {
			imports = append(imports, imp)
		}
		sort.Strings(imports)

		targets := map[int64]bool{}
		for _, imp := range imports {
			to, ok := pkgIDs[imp]
			if !ok {
				if isStdlib(imp) {
					continue
				}
				modPath := mod.moduleFor(imp)
				to, ok = modIDs[modPath]
				if !ok {
					id, err := w.InsertNode(&store.Node{
						Name: modPath,
						Kind: store.KindModule,
						Path: modPath,
						Tags: []string{store.TagExternal},
					})
					if err != nil {
						return nil, fmt.Errorf("index: insert module %s: %w", modPath, err)
					}
					modIDs[modPath] = id
					to = id
					res.Modules++
				}
			}
			if to == from || targets[to] {
				continue
			}
			targets[to] = true
			if _, err := w.InsertEdge(&store.Edge{From: from, To: to, Kind: store.EdgeImports}); err != nil {
				return nil, fmt.Errorf("index: insert edge: %w", err)
			}
			res.Edges++
		}
	}
	return res, nil
}

// walkListFiles discovers Go files under root, skipping hidden directories
// and the names in skipDirs.
func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if p != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if lang, ok := LanguageForFile(p); ok && lang == "go" {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index: walk directory: %w", err)
	}
	return paths, nil
}

// goModule is the part of root/go.mod the indexer uses.
type goModule struct {
	Path     string
	Requires []string
}

// readGoModule parses root/go.mod. A missing or unparsable file yields an
// empty module.
func readGoModule(root string) goModule {
	name := filepath.Join(root, "go.mod")
	data, err := os.ReadFile(name)
	if err != nil {
		return goModule{}
	}
	f, err := modfile.ParseLax(name, data, nil)
	if err != nil {
		return goModule{Path: modfile.ModulePath(data)}
	}
	m := goModule{}
	if f.Module != nil {
		m.Path = f.Module.Mod.Path
	}
	for _, r := range f.Require {
		m.Requires = append(m.Requires, r.Mod.Path)
	}
	// Longest first so nested modules win.
	sort.Slice(m.Requires, func(i, j int) bool { return len(m.Requires[i]) > len(m.Requires[j]) })
	return m
}

// moduleFor returns the required module that provides imp, falling back to
// a guess from the import path.
func (m goModule) moduleFor(imp string) string {
	for _, r := range m.Requires {
		if imp == r || strings.HasPrefix(imp, r+"/") {
			return r
		}
	}
	return moduleRoot(imp)
}

// importPath is the import path of the package in directory rel.
func importPath(modulePath, rel string) string {
	switch {
	case modulePath == "":
		return rel
	case rel == ".":
		return modulePath
	default:
		return path.Join(modulePath, rel)
	}
}

// isStdlib reports whether imp looks like a standard library import: its
// first element has no dot.
func isStdlib(imp string) bool {
	first, _, _ := strings.Cut(imp, "/")
	return !strings.Contains(first, ".")
}

// moduleRoot guesses the module an import path belongs to. Well-known code
// hosts use three path elements plus an optional major version; anything
// else is cut after its first major version element or taken whole.
func moduleRoot(imp string) string {
	parts := strings.Split(imp, "/")
	switch parts[0] {
	case "github.com", "gitlab.com", "bitbucket.org", "golang.org":
		n := min(3, len(parts))
		if len(parts) > 3 && isMajorVersion(parts[3]) {
			n = 4
		}
		return strings.Join(parts[:n], "/")
	}
	for i := 1; i < len(parts); i++ {
		if isMajorVersion(parts[i]) {
			return strings.Join(parts[:i+1], "/")
		}
	}
	return imp
}

func isMajorVersion(elem string) bool {
	if len(elem) < 2 || elem[0] != 'v' {
		return false
	}
	for _, c := range elem[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
