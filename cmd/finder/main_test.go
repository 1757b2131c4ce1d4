package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	finder "github.com/jward/finder"
)

const sampleCatalog = `
nodes:
  - {name: api, kind: service, path: cmd/api, tags: [prod, edge]}
  - {name: worker, kind: service, path: cmd/worker, tags: [prod]}
  - {name: store, kind: package, path: internal/store}
  - {name: log, kind: library, path: internal/log, tags: [core]}
  - {name: sqlite, kind: module, path: github.com/mattn/go-sqlite3, tags: [external]}
edges:
  - {from: api, to: store}
  - {from: api, to: log}
  - {from: worker, to: store}
  - {from: store, to: sqlite}
  - {from: store, to: log}
`

// jsonResult mirrors CLIResult with raw results for decoding.
type jsonResult struct {
	Command            string          `json:"command"`
	Locator            string          `json:"locator"`
	Results            json.RawMessage `json:"results"`
	Count              int             `json:"count"`
	Scanned            *int            `json:"scanned"`
	LookupLimitReached bool            `json:"lookup_limit_reached"`
	Error              string          `json:"error"`
	Kind               string          `json:"kind"`
}

type cliRun struct {
	code           int
	stdout, stderr string
}

func runCLI(t *testing.T, args ...string) cliRun {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return cliRun{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func runJSON(t *testing.T, db string, args ...string) (jsonResult, cliRun) {
	t.Helper()
	full := append([]string{"--db", db, "--format", "json"}, args...)
	r := runCLI(t, full...)
	var res jsonResult
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &res), "invalid JSON output: %s (stderr: %s)", r.stdout, r.stderr)
	return res, r
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// loadedDB returns a database path holding sampleCatalog.
func loadedDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "data", "finder.db")
	path := writeFile(t, filepath.Join(dir, "catalog.yaml"), sampleCatalog)
	res, r := runJSON(t, db, "load", path)
	require.Equal(t, exitOK, r.code, r.stderr)
	require.Equal(t, 5, res.Count)
	return db
}

func nodeNames(t *testing.T, res jsonResult) []string {
	t.Helper()
	var nodes []CLINode
	require.NoError(t, json.Unmarshal(res.Results, &nodes))
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	return names
}

// =============================================================================
// Exit codes
// =============================================================================

func TestExitCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"malformed", &finder.Error{Kind: finder.KindMalformedLocator}, exitUserError},
		{"unknown", &finder.Error{Kind: finder.KindUnknownDimension}, exitUserError},
		{"invalid value", finder.InvalidValue("id", "x", nil), exitUserError},
		{"unused", &finder.Error{Kind: finder.KindUnusedDimensions}, exitUserError},
		{"not found", &finder.Error{Kind: finder.KindNotFound}, exitNoMatch},
		{"ambiguous", fmt.Errorf("wrapped: %w", &finder.Error{Kind: finder.KindAmbiguousResult}), exitNoMatch},
		{"configuration", &finder.Error{Kind: finder.KindConfiguration}, exitFailure},
		{"plain", errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

// =============================================================================
// load and query
// =============================================================================

func TestQuery(t *testing.T) {
	t.Parallel()
	db := loadedDB(t)

	tests := []struct {
		locator string
		want    []string
	}{
		{"kind:service", []string{"api", "worker"}},
		{"tag:prod,tag:core", []string{"api", "worker", "log"}},
		{"api", []string{"api"}},
		{"dependsOn:(name:log)", []string{"api", "store"}},
		{"path:(value:cmd/*,matchType:glob),count:1", []string{"api"}},
	}
	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			t.Parallel()
			res, r := runJSON(t, db, "query", tt.locator)
			require.Equal(t, exitOK, r.code, r.stdout)
			assert.Equal(t, "query", res.Command)
			assert.Equal(t, tt.locator, res.Locator)
			assert.ElementsMatch(t, tt.want, nodeNames(t, res))
			assert.Equal(t, len(tt.want), res.Count)
			require.NotNil(t, res.Scanned)
		})
	}
}

func TestQuery_Single(t *testing.T) {
	t.Parallel()
	db := loadedDB(t)

	res, r := runJSON(t, db, "query", "--single", "name:worker")
	require.Equal(t, exitOK, r.code)
	assert.Equal(t, []string{"worker"}, nodeNames(t, res))

	res, r = runJSON(t, db, "query", "--single", "kind:service")
	assert.Equal(t, exitNoMatch, r.code)
	assert.Equal(t, string(finder.KindAmbiguousResult), res.Kind)

	res, r = runJSON(t, db, "query", "--single", "name:ghost")
	assert.Equal(t, exitNoMatch, r.code)
	assert.Equal(t, string(finder.KindNotFound), res.Kind)
	assert.NotEmpty(t, res.Error)
}

func TestQuery_UserErrors(t *testing.T) {
	t.Parallel()
	db := loadedDB(t)

	tests := map[string]string{
		"kind:(service":  string(finder.KindMalformedLocator),
		"colour:red":     string(finder.KindUnknownDimension),
		"id:abc":         string(finder.KindInvalidDimensionValue),
		"kind:spaceship": string(finder.KindInvalidDimensionValue),
	}
	for locator, kind := range tests {
		t.Run(locator, func(t *testing.T) {
			t.Parallel()
			res, r := runJSON(t, db, "query", locator)
			assert.Equal(t, exitUserError, r.code)
			assert.Equal(t, kind, res.Kind)
			assert.Equal(t, "query", res.Command)
		})
	}
}

func TestQuery_Help(t *testing.T) {
	t.Parallel()
	db := loadedDB(t)

	res, r := runJSON(t, db, "query", "$help")
	require.Equal(t, exitOK, r.code)
	var help CLIHelp
	require.NoError(t, json.Unmarshal(res.Results, &help))
	assert.Equal(t, "node", help.Entity)
	assert.Contains(t, help.Text, "dependsOn")
}

func TestQuery_MissingDatabase(t *testing.T) {
	t.Parallel()
	db := filepath.Join(t.TempDir(), "none.db")

	res, r := runJSON(t, db, "query", "kind:service")
	assert.Equal(t, exitFailure, r.code)
	assert.Contains(t, res.Error, "database not found")
	assert.NoFileExists(t, db)
}

func TestQuery_TextFormat(t *testing.T) {
	t.Parallel()
	db := loadedDB(t)

	r := runCLI(t, "--db", db, "query", "kind:service")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "ID")
	assert.Contains(t, r.stdout, "api")
	assert.Contains(t, r.stdout, "edge,prod")

	r = runCLI(t, "--db", db, "query", "colour:red")
	assert.Equal(t, exitUserError, r.code)
	assert.Empty(t, r.stdout)
	assert.Contains(t, r.stderr, "Error: ")
	assert.Contains(t, r.stderr, "colour")
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	db := filepath.Join(dir, "finder.db")

	path := writeFile(t, filepath.Join(dir, "bad.yaml"), "nodes: [{name: a, kind: planet}]")
	res, r := runJSON(t, db, "load", path)
	assert.Equal(t, exitFailure, r.code)
	assert.Equal(t, "load", res.Command)
	assert.NotEmpty(t, res.Error)

	r = runCLI(t, "--db", db, "load")
	assert.Equal(t, exitFailure, r.code)
}

func TestLoad_Replace(t *testing.T) {
	t.Parallel()
	db := loadedDB(t)
	path := writeFile(t, filepath.Join(t.TempDir(), "solo.yaml"), "nodes: [{name: solo, kind: file}]")

	_, r := runJSON(t, db, "load", "--replace", path)
	require.Equal(t, exitOK, r.code)

	res, _ := runJSON(t, db, "query", "kind:service")
	assert.Zero(t, res.Count)
	res, _ = runJSON(t, db, "query", "solo")
	assert.Equal(t, []string{"solo"}, nodeNames(t, res))
}

// =============================================================================
// graph
// =============================================================================

func TestGraph(t *testing.T) {
	t.Parallel()
	db := loadedDB(t)

	res, r := runJSON(t, db, "graph", "from:(name:api)")
	require.Equal(t, exitOK, r.code, r.stdout)
	assert.Equal(t, "graph", res.Command)
	assert.ElementsMatch(t, []string{"store", "log", "sqlite"}, nodeNames(t, res))

	res, r = runJSON(t, db, "graph", "to:(name:sqlite),recursive:false")
	require.Equal(t, exitOK, r.code)
	assert.Equal(t, []string{"store"}, nodeNames(t, res))

	res, r = runJSON(t, db, "graph", "recursive:false")
	assert.Equal(t, exitUserError, r.code)
	assert.Equal(t, string(finder.KindMalformedLocator), res.Kind)
}

// =============================================================================
// help
// =============================================================================

func TestHelpCommand(t *testing.T) {
	t.Parallel()

	res, r := runJSON(t, filepath.Join(t.TempDir(), "unused.db"), "help")
	require.Equal(t, exitOK, r.code, r.stderr)
	var help CLIHelp
	require.NoError(t, json.Unmarshal(res.Results, &help))
	assert.Equal(t, "node", help.Entity)
	assert.Contains(t, help.Text, "hasDependencies")

	r = runCLI(t, "--db", filepath.Join(t.TempDir(), "unused.db"), "help", "graph")
	require.Equal(t, exitOK, r.code)
	assert.Contains(t, r.stdout, "includeInitial")

	r = runCLI(t, "--db", filepath.Join(t.TempDir(), "unused.db"), "help", "bogus")
	assert.Equal(t, exitFailure, r.code)
}

// =============================================================================
// index
// =============================================================================

func TestIndex(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/app\n\ngo 1.22\n\nrequire github.com/pkg/errors v0.9.1\n")
	writeFile(t, filepath.Join(root, "main.go"), "package main\n\nimport \"example.com/app/internal/db\"\n\nfunc main() { db.Open() }\n")
	writeFile(t, filepath.Join(root, "internal", "db", "db.go"), "package db\n\nimport (\n\t\"fmt\"\n\n\t\"github.com/pkg/errors\"\n)\n\nfunc Open() error { return errors.Wrap(fmt.Errorf(\"x\"), \"open\") }\n")
	db := filepath.Join(t.TempDir(), "finder.db")

	res, r := runJSON(t, db, "index", root)
	require.Equal(t, exitOK, r.code, r.stdout)
	var ix CLIIndexResult
	require.NoError(t, json.Unmarshal(res.Results, &ix))
	assert.Equal(t, CLIIndexResult{Root: root, Files: 2, Packages: 2, Modules: 1, Edges: 2}, ix)
	assert.Equal(t, 3, res.Count)

	res, r = runJSON(t, db, "graph", "from:(name:example.com/app)")
	require.Equal(t, exitOK, r.code, r.stdout)
	assert.ElementsMatch(t, []string{"example.com/app/internal/db", "github.com/pkg/errors"}, nodeNames(t, res))
}

func TestIndex_NotADirectory(t *testing.T) {
	t.Parallel()
	file := writeFile(t, filepath.Join(t.TempDir(), "f.txt"), "x")

	res, r := runJSON(t, filepath.Join(t.TempDir(), "finder.db"), "index", file)
	assert.Equal(t, exitFailure, r.code)
	assert.Contains(t, res.Error, "not a directory")
}

// =============================================================================
// Flags and config
// =============================================================================

func TestMetricsFlag(t *testing.T) {
	t.Parallel()
	db := loadedDB(t)

	r := runCLI(t, "--db", db, "--format", "json", "--metrics", "query", "kind:service")
	require.Equal(t, exitOK, r.code)
	assert.Contains(t, r.stderr, `finder_queries_total{entity="node",error_kind="none",source="kind"} 1`)
}

func TestInvalidFormat(t *testing.T) {
	t.Parallel()
	r := runCLI(t, "--db", filepath.Join(t.TempDir(), "x.db"), "--format", "xml", "help")
	assert.Equal(t, exitFailure, r.code)
	assert.Contains(t, r.stderr, "format")
}

func TestConfigFile(t *testing.T) {
	t.Parallel()
	db := loadedDB(t)
	cfg := writeFile(t, filepath.Join(t.TempDir(), "finder.yaml"),
		"db: "+db+"\nformat: json\nlookup_limit: 2\n")

	r := runCLI(t, "--config", cfg, "query", "tag:prod,tag:core")
	require.Equal(t, exitOK, r.code, r.stderr)
	var res jsonResult
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &res))
	assert.True(t, res.LookupLimitReached)
	assert.Equal(t, 2, *res.Scanned)
}

func TestResolveTargetDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got, err := resolveTargetDir([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = resolveTargetDir([]string{filepath.Join(dir, "missing")})
	assert.ErrorContains(t, err, "directory not found")
}
