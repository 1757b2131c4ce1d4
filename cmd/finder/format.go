package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	finder "github.com/jward/finder"
	"github.com/jward/finder/internal/config"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitUserError = 2
	exitNoMatch   = 3
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	headingColor = color.New(color.FgCyan, color.Bold)
	noticeColor  = color.New(color.FgYellow)
)

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case finder.IsUserError(err):
		return exitUserError
	case errors.Is(err, finder.ErrNotFound), errors.Is(err, finder.ErrAmbiguousResult):
		return exitNoMatch
	}
	return exitFailure
}

// outputResult writes result to stdout in the selected format.
func (a *app) outputResult(result CLIResult) error {
	if a.cfg.Format == config.FormatText {
		return a.outputResultText(result)
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError reports err and returns it so RunE propagates it to cobra.
// JSON mode writes an envelope to stdout; text mode writes to stderr.
func (a *app) outputError(command, locator string, err error) error {
	a.errorHandled = true
	if a.cfg == nil || a.cfg.Format == config.FormatText {
		errorColor.Fprint(a.stderr, "Error: ")
		fmt.Fprintln(a.stderr, err)
		return err
	}
	result := CLIResult{
		Command: command,
		Locator: locator,
		Error:   err.Error(),
		Kind:    string(finder.KindOf(err)),
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

func (a *app) outputResultText(result CLIResult) error {
	w := a.stdout
	switch v := result.Results.(type) {
	case []CLINode:
		formatNodesText(w, v)
	case CLIIndexResult:
		fmt.Fprintf(w, "Indexed %s: %d files, %d packages, %d modules, %d edges\n",
			v.Root, v.Files, v.Packages, v.Modules, v.Edges)
	case CLILoadResult:
		mode := "appended"
		if v.Replace {
			mode = "replaced"
		}
		fmt.Fprintf(w, "Loaded %s (%s): %d nodes, %d edges\n", v.File, mode, v.Nodes, v.Edges)
	case CLIHelp:
		headingColor.Fprintf(w, "%s\n", v.Entity)
		fmt.Fprint(w, v.Text)
		if !strings.HasSuffix(v.Text, "\n") {
			fmt.Fprintln(w)
		}
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if result.LookupLimitReached {
		noticeColor.Fprintf(w, "\nLookup limit reached after scanning %d items; raise lookupLimit to see more\n",
			derefInt(result.Scanned))
	}
	return nil
}

// formatNodesText writes nodes as aligned columns.
func formatNodesText(w io.Writer, nodes []CLINode) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tPATH\tTAGS")
	for _, n := range nodes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", n.ID, n.Name, n.Kind, n.Path, strings.Join(n.Tags, ","))
	}
	tw.Flush()
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
