package finder

import (
	"errors"
	"maps"
	"slices"
	"sort"
	"strings"
)

var errSingleValue = errors.New("only a single value is supported")

// HelpDimension is the pseudo-dimension that asks a finder for its generated
// documentation instead of running the query.
const HelpDimension = "$help"

// Locator is a parsed query string. It is either a single value (for
// example a bare id) or a multimap of dimension name to raw values.
//
// The parsed values never change. What changes during resolution is the set
// of consumed dimensions: every read through Values or Value records the
// dimension as used, so the engine can reject locators whose dimensions were
// silently ignored. A Locator belongs to one query and is not safe for
// concurrent use.
type Locator struct {
	text string

	single   string
	isSingle bool

	dims  map[string][]string
	order []string // first-appearance order

	used      map[string]bool
	defaulted map[string]bool
	scopes    []*scope
}

// Parse parses a locator string.
//
// Dimension mode is selected when the first segment (up to the first ',' or
// '(') contains a ':'. Otherwise the whole text is a single value; a single
// value wrapped in parentheses is unwrapped. Values are separated by ',' and
// may be wrapped in parentheses to embed ',' or ':'. Parentheses do not nest:
// a complex value ends at the first ')'.
func Parse(text string) (*Locator, error) {
	return ParseWithDefaults(text, nil)
}

// ParseWithDefaults parses text and then adds the values of every dimension
// in defaults that the text does not mention. Defaults apply to dimension
// locators only, and defaulted dimensions never count as unused.
func ParseWithDefaults(text string, defaults map[string][]string) (*Locator, error) {
	if text == "" {
		return nil, malformedf("empty locator")
	}
	l := newLocator(text)
	if !isDimensionMode(text) {
		l.isSingle = true
		l.single = text
		if len(text) >= 2 && text[0] == '(' && text[len(text)-1] == ')' {
			l.single = text[1 : len(text)-1]
		}
		return l, nil
	}
	if err := l.parseDimensions(text); err != nil {
		return nil, err
	}
	for _, name := range sortedKeys(defaults) {
		if _, ok := l.dims[name]; ok || len(defaults[name]) == 0 {
			continue
		}
		l.add(name, defaults[name]...)
		l.defaulted[name] = true
	}
	return l, nil
}

// FromDimensions builds a dimension locator from a map. Every name must be a
// valid dimension name with at least one value.
func FromDimensions(dims map[string][]string) (*Locator, error) {
	if len(dims) == 0 {
		return nil, malformedf("no dimensions")
	}
	l := newLocator("")
	for _, name := range sortedKeys(dims) {
		if !validName(name) {
			return nil, malformedf("invalid dimension name %q", name)
		}
		if len(dims[name]) == 0 {
			return nil, malformedf("dimension %q has no values", name)
		}
		l.add(name, dims[name]...)
	}
	l.text = l.String()
	return l, nil
}

// FromSingleValue builds a single-value locator.
func FromSingleValue(value string) *Locator {
	l := newLocator(value)
	l.isSingle = true
	l.single = value
	return l
}

func newLocator(text string) *Locator {
	return &Locator{
		text:      text,
		dims:      make(map[string][]string),
		used:      make(map[string]bool),
		defaulted: make(map[string]bool),
	}
}

// isDimensionMode reports whether any ':' appears outside parentheses.
func isDimensionMode(text string) bool {
	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 {
				return true
			}
		}
	}
	return false
}

func (l *Locator) parseDimensions(text string) error {
	pos := 0
	for {
		sep := strings.IndexAny(text[pos:], ":,")
		if sep == 0 && text[pos] == ',' {
			return malformedf("empty dimension at position %d in %q", pos, text)
		}
		if sep < 0 || text[pos+sep] == ',' {
			end := len(text)
			if sep >= 0 {
				end = pos + sep
			}
			return malformedf("dimension %q has no value in %q", text[pos:end], text)
		}
		name := text[pos : pos+sep]
		if !validName(name) {
			if name == "" {
				return malformedf("empty dimension name at position %d in %q", pos, text)
			}
			return malformedf("invalid dimension name %q: names must be alphanumeric", name)
		}
		pos += sep + 1

		var value string
		if pos < len(text) && text[pos] == '(' {
			end := strings.IndexByte(text[pos+1:], ')')
			if end < 0 {
				return malformedf("unterminated complex value for dimension %q in %q", name, text)
			}
			value = text[pos+1 : pos+1+end]
			pos += end + 2
			if pos < len(text) && text[pos] != ',' {
				return malformedf("expected ',' after complex value of dimension %q at position %d in %q", name, pos, text)
			}
		} else {
			end := strings.IndexByte(text[pos:], ',')
			if end < 0 {
				end = len(text) - pos
			}
			value = text[pos : pos+end]
			pos += end
		}
		l.add(name, value)

		if pos >= len(text) {
			return nil
		}
		pos++ // ','
		if pos >= len(text) {
			return malformedf("trailing ',' in %q", text)
		}
	}
}

// validName accepts alphanumeric names, optionally prefixed with '$' for
// pseudo-dimensions such as $help.
func validName(name string) bool {
	name = strings.TrimPrefix(name, "$")
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

func (l *Locator) add(name string, values ...string) {
	if _, ok := l.dims[name]; !ok {
		l.order = append(l.order, name)
	}
	l.dims[name] = append(l.dims[name], values...)
}

// Text returns the text the locator was parsed from.
func (l *Locator) Text() string { return l.text }

// IsSingleValue reports whether the locator is a bare value rather than a set
// of dimensions.
func (l *Locator) IsSingleValue() bool { return l.isSingle }

// SingleValue returns the bare value of a single-value locator.
func (l *Locator) SingleValue() (string, bool) {
	return l.single, l.isSingle
}

// Has reports whether the dimension was supplied, without consuming it.
func (l *Locator) Has(name string) bool {
	_, ok := l.dims[name]
	return ok
}

// Names returns the supplied dimension names in sorted order.
func (l *Locator) Names() []string {
	return sortedKeys(l.dims)
}

// Peek returns the raw values of a dimension without consuming it.
func (l *Locator) Peek(name string) []string {
	return slices.Clone(l.dims[name])
}

// Values returns the raw values of a dimension and marks it consumed.
func (l *Locator) Values(name string) []string {
	l.MarkUsed(name)
	return slices.Clone(l.dims[name])
}

// Value returns the single raw value of a dimension and marks it consumed.
// It fails if the dimension was given more than once.
func (l *Locator) Value(name string) (string, bool, error) {
	vals := l.Values(name)
	switch len(vals) {
	case 0:
		return "", false, nil
	case 1:
		return vals[0], true, nil
	}
	return "", false, invalidValue(name, strings.Join(vals, ","), errSingleValue)
}

// MarkUsed records dimensions as consumed without reading them.
func (l *Locator) MarkUsed(names ...string) {
	for _, name := range names {
		l.used[name] = true
		if _, ok := l.dims[name]; !ok {
			continue
		}
		for _, sc := range l.scopes {
			sc.names[name] = true
		}
	}
}

// Dimensions returns a copy of the dimension multimap.
func (l *Locator) Dimensions() map[string][]string {
	out := make(map[string][]string, len(l.dims))
	for name, vals := range l.dims {
		out[name] = slices.Clone(vals)
	}
	return out
}

// Unused returns the supplied dimensions that were never consumed, excluding
// defaulted dimensions and the given hidden names, sorted.
func (l *Locator) Unused(hidden ...string) []string {
	var unused []string
	for _, name := range l.order {
		if l.used[name] || l.defaulted[name] || slices.Contains(hidden, name) {
			continue
		}
		unused = append(unused, name)
	}
	sort.Strings(unused)
	return unused
}

// CheckFullyConsumed fails with an UnusedDimensions error if any supplied,
// non-hidden dimension was never read.
func (l *Locator) CheckFullyConsumed(hidden ...string) error {
	if unused := l.Unused(hidden...); len(unused) > 0 {
		return unusedDimensions(unused)
	}
	return nil
}

// String serializes the locator canonically: dimension names sorted, values
// in their original order, values holding ',' or ':' wrapped in parentheses.
// A value that holds both ')' and ',' cannot be represented.
func (l *Locator) String() string {
	if l.isSingle {
		if strings.ContainsAny(l.single, ",:") || strings.HasPrefix(l.single, "(") {
			return "(" + l.single + ")"
		}
		return l.single
	}
	var b strings.Builder
	for _, name := range sortedKeys(l.dims) {
		for _, v := range l.dims[name] {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(name)
			b.WriteByte(':')
			b.WriteString(quoteValue(v))
		}
	}
	return b.String()
}

func quoteValue(v string) string {
	if strings.Contains(v, ",") || strings.HasPrefix(v, "(") ||
		(strings.Contains(v, ":") && !strings.Contains(v, ")")) {
		return "(" + v + ")"
	}
	return v
}

// track opens a consumption scope. The returned function closes it and
// reports which supplied dimensions were consumed while it was open.
func (l *Locator) track() func() []string {
	sc := &scope{names: make(map[string]bool)}
	l.scopes = append(l.scopes, sc)
	return func() []string {
		if i := slices.Index(l.scopes, sc); i >= 0 {
			l.scopes = slices.Delete(l.scopes, i, i+1)
		}
		return sortedKeys(sc.names)
	}
}

type scope struct {
	names map[string]bool
}

// snapshot and restore let the engine undo consumption done by a rule that
// turned out not to apply.
func (l *Locator) snapshot() map[string]bool {
	return maps.Clone(l.used)
}

func (l *Locator) restore(used map[string]bool) {
	l.used = used
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
