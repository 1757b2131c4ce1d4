package finder

import (
	"fmt"
	"slices"
	"strings"
)

// DimensionCondition selects which rules apply to a locator. Conditions only
// peek at the locator; they never consume dimensions.
type DimensionCondition struct {
	desc  string
	match func(l *Locator) bool
}

// Matches reports whether the condition holds for l.
func (c DimensionCondition) Matches(l *Locator) bool {
	if c.match == nil {
		return true
	}
	return c.match(l)
}

func (c DimensionCondition) String() string {
	if c.desc == "" {
		return "always"
	}
	return c.desc
}

// Always matches every locator.
func Always() DimensionCondition {
	return DimensionCondition{desc: "always"}
}

// Present matches dimension locators that supply every named dimension.
func Present(names ...string) DimensionCondition {
	return DimensionCondition{
		desc: "present(" + strings.Join(names, ",") + ")",
		match: func(l *Locator) bool {
			for _, name := range names {
				if !l.Has(name) {
					return false
				}
			}
			return len(names) > 0
		},
	}
}

// Absent matches locators that supply none of the named dimensions.
func Absent(names ...string) DimensionCondition {
	return DimensionCondition{
		desc: "absent(" + strings.Join(names, ",") + ")",
		match: func(l *Locator) bool {
			for _, name := range names {
				if l.Has(name) {
					return false
				}
			}
			return true
		},
	}
}

// ValueIs matches when the dimension has a value equal to raw, ignoring case.
func ValueIs(name, raw string) DimensionCondition {
	return DimensionCondition{
		desc: fmt.Sprintf("%s=%s", name, raw),
		match: func(l *Locator) bool {
			return slices.ContainsFunc(l.Peek(name), func(v string) bool {
				return strings.EqualFold(v, raw)
			})
		},
	}
}

// SingleValue matches single-value locators.
func SingleValue() DimensionCondition {
	return DimensionCondition{
		desc:  "single value",
		match: func(l *Locator) bool { return l.IsSingleValue() },
	}
}

// Not negates c.
func Not(c DimensionCondition) DimensionCondition {
	return DimensionCondition{
		desc:  "not " + c.String(),
		match: func(l *Locator) bool { return !c.Matches(l) },
	}
}

// AllOf matches when every condition matches.
func AllOf(conds ...DimensionCondition) DimensionCondition {
	return DimensionCondition{
		desc: "all(" + joinConditions(conds) + ")",
		match: func(l *Locator) bool {
			for _, c := range conds {
				if !c.Matches(l) {
					return false
				}
			}
			return true
		},
	}
}

// AnyOf matches when at least one condition matches.
func AnyOf(conds ...DimensionCondition) DimensionCondition {
	return DimensionCondition{
		desc: "any(" + joinConditions(conds) + ")",
		match: func(l *Locator) bool {
			for _, c := range conds {
				if c.Matches(l) {
					return true
				}
			}
			return false
		},
	}
}

func joinConditions(conds []DimensionCondition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}
