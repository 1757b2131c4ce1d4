package finder

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
)

// DimensionInfo describes a registered dimension.
type DimensionInfo struct {
	Name        string
	Description string
	Syntax      string
	Hidden      bool
	Defaults    []string
}

// Definition is the immutable registry of dimensions and rules for one
// entity type. Build it once at startup and share it between queries.
type Definition[ITEM any] struct {
	entity      string
	description string
	dims        map[string]DimensionInfo
	order       []string
	hidden      []string
	defaults    map[string][]string
	sources     []sourceRule[ITEM]
	filters     []filterRule[ITEM]
	findSingle  func(l *Locator) (ITEM, bool, error)
	key         func(ITEM) any
	lookupLimit int
}

// Entity returns the entity type name.
func (d *Definition[ITEM]) Entity() string { return d.entity }

// DefaultLookupLimit returns the scan cap applied when a locator sets none.
func (d *Definition[ITEM]) DefaultLookupLimit() int { return d.lookupLimit }

// Key returns the identity of item.
func (d *Definition[ITEM]) Key(item ITEM) any { return d.key(item) }

// Dimensions returns the registered dimensions in registration order.
func (d *Definition[ITEM]) Dimensions() []DimensionInfo {
	out := make([]DimensionInfo, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.dims[name])
	}
	return out
}

// Dimension looks up a registered dimension by name.
func (d *Definition[ITEM]) Dimension(name string) (DimensionInfo, bool) {
	info, ok := d.dims[name]
	return info, ok
}

func (d *Definition[ITEM]) known(name string) bool {
	_, ok := d.dims[name]
	return ok || slices.Contains(reservedDimensions, name)
}

var reservedHelp = [][2]string{
	{DimCount, "maximum number of items to return"},
	{DimStart, "number of matching items to skip"},
	{DimLookupLimit, "maximum number of candidates to scan"},
	{DimItem, "sub-locator; results of all item values are merged"},
	{DimUnique, "drop duplicate candidates (true/false)"},
	{HelpDimension, "print this help"},
}

// Help renders the documentation returned for $help. Hidden dimensions are
// left out.
func (d *Definition[ITEM]) Help() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Locator dimensions for %s", d.entity)
	if d.description != "" {
		fmt.Fprintf(&b, " (%s)", d.description)
	}
	b.WriteString(":\n")

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, name := range d.order {
		info := d.dims[name]
		if info.Hidden {
			continue
		}
		line := info.Description
		if info.Syntax != "" {
			line += " Syntax: " + info.Syntax + "."
		}
		if len(info.Defaults) > 0 {
			line += " Default: " + strings.Join(info.Defaults, ",") + "."
		}
		fmt.Fprintf(tw, "  %s\t%s\n", name, strings.TrimSpace(line))
	}
	tw.Flush()

	b.WriteString("Common dimensions:\n")
	tw = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, r := range reservedHelp {
		fmt.Fprintf(tw, "  %s\t%s\n", r[0], r[1])
	}
	tw.Flush()
	if d.lookupLimit > 0 {
		fmt.Fprintf(&b, "Default lookupLimit: %d\n", d.lookupLimit)
	}
	return b.String()
}
