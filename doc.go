// Package finder is a generic entity-locator query engine. Per entity type,
// callers declare named, typed dimensions; the engine then resolves compact
// query strings ("locators") into a candidate source plus a composed filter
// and returns one page of matching items with diagnostics about the scan.
//
// # Locators
//
// A locator is either a single value or a list of dimensions:
//
//	7
//	name:foo,count:2
//	from:(id:5),recursive:true
//	name:(value:api,matchType:starts-with)
//
// ',' separates dimensions and ':' separates a name from its value. Values
// holding ',' or ':' are wrapped in parentheses; parentheses do not nest. A
// dimension may repeat to mean logical OR for filters and intersection for
// item sources. Every finder understands count, start, lookupLimit, item,
// unique and $help.
//
// # Definitions
//
// A [Definition] is built once with a [Builder] and shared by all queries:
//
//	id := finder.NewDimension[int64]("id")
//	b := finder.NewBuilder[*Node]("node")
//	finder.Dim(b, id, finder.ParseInt64).
//		Description("node id").
//		ToItems(func(v int64) ([]*Node, error) { ... })
//	def, err := b.Build()
//	f := finder.New(def)
//	page, err := f.Items("id:7")
//
// # Resolution
//
// [Finder.Items] parses the locator, answers $help, rejects unknown
// dimensions, tries the single-item shortcut, picks the first candidate
// source whose condition matches, AND-combines the matching filters, rejects
// locators with dimensions nothing read, and finally scans candidates through
// [Run], which applies start, count and lookupLimit.
//
// # Graphs
//
// [GraphFinder] computes reachability over a caller-supplied [Traverser],
// with seed sets given as nested locators of a base finder.
//
// # Errors
//
// Failures are [*Error] values whose [ErrorKind] distinguishes malformed
// locators, invalid values, unknown and unused dimensions, not-found and
// ambiguous single-item lookups, and definition mistakes. Each kind also has
// a sentinel for errors.Is.
package finder
