package index

import (
	"context"
	"fmt"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"
)

// goFileQuery captures the package clause and every import path.
const goFileQuery = `
(package_clause (package_identifier) @package)
(import_spec path: (_) @import)
`

// goFile is what the indexer needs from one Go source file.
type goFile struct {
	Package string
	Imports []string
}

// goParser parses Go files with tree-sitter. It is not safe for concurrent
// use.
type goParser struct {
	parser *sitter.Parser
	query  *sitter.Query
}

func newGoParser() (*goParser, error) {
	lang, ok := ParserForLanguage("go")
	if !ok {
		return nil, fmt.Errorf("index: go grammar not available")
	}
	q, err := sitter.NewQuery([]byte(goFileQuery), lang)
	if err != nil {
		return nil, fmt.Errorf("index: compile query: %w", err)
	}
	p := sitter.NewParser()
	p.SetLanguage(lang)
	return &goParser{parser: p, query: q}, nil
}

func (gp *goParser) Close() {
	gp.query.Close()
	gp.parser.Close()
}

// parse extracts the package name and imports from src. Files that do not
// parse cleanly still yield whatever the error-tolerant tree contains.
func (gp *goParser) parse(ctx context.Context, src []byte) (*goFile, error) {
	tree, err := gp.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(gp.query, tree.RootNode())

	f := &goFile{}
	seen := map[string]bool{}
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, capture := range match.Captures {
			text := capture.Node.Content(src)
			switch gp.query.CaptureNameForId(capture.Index) {
			case "package":
				if f.Package == "" {
					f.Package = text
				}
			case "import":
				path, err := strconv.Unquote(text)
				if err != nil || path == "" || seen[path] {
					continue
				}
				seen[path] = true
				f.Imports = append(f.Imports, path)
			}
		}
	}
	return f, nil
}
