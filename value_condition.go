package finder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchType is the comparison a ValueCondition applies.
type MatchType string

const (
	MatchEquals      MatchType = "equals"
	MatchNotEquals   MatchType = "does-not-equal"
	MatchStartsWith  MatchType = "starts-with"
	MatchEndsWith    MatchType = "ends-with"
	MatchContains    MatchType = "contains"
	MatchNotContains MatchType = "does-not-contain"
	MatchRegexp      MatchType = "matches"
	MatchNotRegexp   MatchType = "does-not-match"
	MatchGlob        MatchType = "glob"
	MatchAny         MatchType = "any"
	MatchExists      MatchType = "exists"
	MatchNotExists   MatchType = "not-exists"
	MatchMoreThan    MatchType = "more-than"
	MatchLessThan    MatchType = "less-than"
)

const (
	valueConditionValue = "value"
	valueConditionType  = "matchType"
	valueConditionCase  = "ignoreCase"
)

var matchTypes = []MatchType{
	MatchEquals, MatchNotEquals, MatchStartsWith, MatchEndsWith, MatchContains,
	MatchNotContains, MatchRegexp, MatchNotRegexp, MatchGlob, MatchAny,
	MatchExists, MatchNotExists, MatchMoreThan, MatchLessThan,
}

// ValueConditionSyntax documents the accepted forms for help output.
const ValueConditionSyntax = "<value> or (value:<text>,matchType:<type>,ignoreCase:<true/false>)"

// ValueCondition is a string comparison parsed from a dimension value.
//
// A plain value means "equals". The nested form
// (value:X,matchType:starts-with,ignoreCase:true) selects another MatchType.
type ValueCondition struct {
	Value      string
	Type       MatchType
	IgnoreCase bool

	re *regexp.Regexp
}

// ParseValueCondition is the ValueMapper for ValueCondition dimensions.
func ParseValueCondition(raw string) (ValueCondition, error) {
	c := ValueCondition{Value: raw, Type: MatchEquals}
	if !isDimensionMode(raw) {
		return c, nil
	}
	l, err := Parse(raw)
	if err != nil {
		return c, nil
	}
	for _, name := range l.Names() {
		switch name {
		case valueConditionValue, valueConditionType, valueConditionCase:
		default:
			// Not a condition, just a value containing ':'.
			return c, nil
		}
	}

	c.Value, _, err = l.Value(valueConditionValue)
	if err != nil {
		return c, err
	}
	if mt, ok, err := l.Value(valueConditionType); err != nil {
		return c, err
	} else if ok {
		c.Type, err = parseMatchType(mt)
		if err != nil {
			return c, err
		}
	}
	if ic, ok, err := l.Value(valueConditionCase); err != nil {
		return c, err
	} else if ok {
		c.IgnoreCase, err = ParseBool(ic)
		if err != nil {
			return c, err
		}
	}

	switch c.Type {
	case MatchAny, MatchExists, MatchNotExists:
	default:
		if !l.Has(valueConditionValue) {
			return c, fmt.Errorf("match type %s requires a value", c.Type)
		}
	}
	switch c.Type {
	case MatchRegexp, MatchNotRegexp:
		expr := c.Value
		if c.IgnoreCase {
			expr = "(?i)" + expr
		}
		c.re, err = regexp.Compile(expr)
		if err != nil {
			return c, fmt.Errorf("bad regular expression: %w", err)
		}
	case MatchGlob:
		if !doublestar.ValidatePattern(c.Value) {
			return c, fmt.Errorf("bad glob pattern %q", c.Value)
		}
	}
	return c, nil
}

func parseMatchType(raw string) (MatchType, error) {
	for _, mt := range matchTypes {
		if strings.EqualFold(string(mt), raw) {
			return mt, nil
		}
	}
	names := make([]string, len(matchTypes))
	for i, mt := range matchTypes {
		names[i] = string(mt)
	}
	return "", fmt.Errorf("unknown match type %q, expected one of %s", raw, strings.Join(names, ", "))
}

// Matches tests a possibly absent value. nil means the item has no value:
// positive match types fail on it and negative ones succeed.
func (c ValueCondition) Matches(v *string) bool {
	switch c.Type {
	case MatchAny:
		return true
	case MatchExists:
		return v != nil
	case MatchNotExists:
		return v == nil
	}
	if v == nil {
		return c.Type == MatchNotEquals || c.Type == MatchNotContains || c.Type == MatchNotRegexp
	}

	got, want := *v, c.Value
	if c.IgnoreCase {
		got, want = strings.ToLower(got), strings.ToLower(want)
	}
	switch c.Type {
	case MatchEquals:
		return got == want
	case MatchNotEquals:
		return got != want
	case MatchStartsWith:
		return strings.HasPrefix(got, want)
	case MatchEndsWith:
		return strings.HasSuffix(got, want)
	case MatchContains:
		return strings.Contains(got, want)
	case MatchNotContains:
		return !strings.Contains(got, want)
	case MatchRegexp:
		return c.regexp().MatchString(*v)
	case MatchNotRegexp:
		return !c.regexp().MatchString(*v)
	case MatchGlob:
		ok, err := doublestar.Match(want, got)
		return err == nil && ok
	case MatchMoreThan:
		return compareValues(got, want) > 0
	case MatchLessThan:
		return compareValues(got, want) < 0
	}
	return false
}

// MatchesString tests a present value.
func (c ValueCondition) MatchesString(v string) bool {
	return c.Matches(&v)
}

func (c ValueCondition) regexp() *regexp.Regexp {
	if c.re != nil {
		return c.re
	}
	// Conditions built by hand rather than parsed.
	expr := c.Value
	if c.IgnoreCase {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return regexp.MustCompile(`a\A`) // matches nothing
	}
	return re
}

// compareValues compares numerically when both sides are numbers and
// lexically otherwise.
func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func (c ValueCondition) String() string {
	if c.Type == MatchEquals && !c.IgnoreCase {
		return c.Value
	}
	dims := map[string][]string{valueConditionType: {string(c.Type)}}
	if c.Value != "" {
		dims[valueConditionValue] = []string{c.Value}
	}
	if c.IgnoreCase {
		dims[valueConditionCase] = []string{"true"}
	}
	l, err := FromDimensions(dims)
	if err != nil {
		return c.Value
	}
	return l.String()
}

// MatchValueCondition is the checker for ValueCondition dimensions.
func MatchValueCondition(c ValueCondition, v string) bool {
	return c.MatchesString(v)
}
