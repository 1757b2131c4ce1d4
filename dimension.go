package finder

import (
	"fmt"
	"strconv"
	"strings"
)

// Dimension is a typed name. It carries no data; T tells the builder which
// value mapper and callbacks go with the name.
type Dimension[T any] struct {
	name string
}

// NewDimension declares a dimension of type T.
func NewDimension[T any](name string) Dimension[T] {
	return Dimension[T]{name: name}
}

func (d Dimension[T]) Name() string   { return d.name }
func (d Dimension[T]) String() string { return d.name }

// ValueMapper converts one raw locator value to a typed dimension value.
type ValueMapper[T any] func(raw string) (T, error)

// ParseString accepts any value as-is.
func ParseString(raw string) (string, error) {
	return raw, nil
}

// ParseInt64 parses a decimal integer.
func ParseInt64(raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	return n, nil
}

// ParseNonNegativeInt parses a decimal integer that must be >= 0.
func ParseNonNegativeInt(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("must be non-negative, got %d", n)
	}
	return n, nil
}

// ParseBool accepts true/false (any case) and the usual strconv spellings.
func ParseBool(raw string) (bool, error) {
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return false, fmt.Errorf("expected true or false, got %q", raw)
	}
	return b, nil
}

// ParseBoolOrAny is ParseBool plus "any", which maps to nil (no constraint).
func ParseBoolOrAny(raw string) (*bool, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "any") {
		return nil, nil
	}
	b, err := ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("expected true, false or any, got %q", raw)
	}
	return &b, nil
}

// ParseEnum returns a mapper accepting one of values, case-insensitively,
// and returning its canonical spelling.
func ParseEnum(values ...string) ValueMapper[string] {
	return func(raw string) (string, error) {
		for _, v := range values {
			if strings.EqualFold(v, raw) {
				return v, nil
			}
		}
		return "", fmt.Errorf("expected one of %s, got %q", strings.Join(values, ", "), raw)
	}
}

// ParseLocator parses a value as a nested locator.
func ParseLocator(raw string) (*Locator, error) {
	return Parse(raw)
}

// MatchBoolOrAny is a checker for BoolOrAny dimensions.
func MatchBoolOrAny(want *bool, got bool) bool {
	return want == nil || *want == got
}

// Equal is a checker for comparable dimensions.
func Equal[V comparable](want, got V) bool {
	return want == got
}

// Resolver resolves nested locators into items. *Finder implements it.
type Resolver[ITEM any] interface {
	Items(text string) (*PagedResult[ITEM], error)
	Key(item ITEM) any
}

// ItemSet is a set of items resolved from a nested locator, in result order.
type ItemSet[ITEM any] struct {
	items []ITEM
	keys  map[any]struct{}
	key   func(ITEM) any
}

// NewItemSet builds a set from items, dropping duplicates by key.
func NewItemSet[ITEM any](items []ITEM, key func(ITEM) any) *ItemSet[ITEM] {
	s := &ItemSet[ITEM]{keys: make(map[any]struct{}, len(items)), key: key}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts item and reports whether it was new.
func (s *ItemSet[ITEM]) Add(item ITEM) bool {
	k := s.key(item)
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	s.items = append(s.items, item)
	return true
}

func (s *ItemSet[ITEM]) Contains(item ITEM) bool {
	if s == nil {
		return false
	}
	_, ok := s.keys[s.key(item)]
	return ok
}

func (s *ItemSet[ITEM]) Items() []ITEM {
	if s == nil {
		return nil
	}
	return s.items
}

func (s *ItemSet[ITEM]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Reference returns a mapper whose value is a nested locator resolved through
// r.
func Reference[ITEM any](r Resolver[ITEM]) ValueMapper[*ItemSet[ITEM]] {
	return func(raw string) (*ItemSet[ITEM], error) {
		res, err := r.Items(raw)
		if err != nil {
			return nil, err
		}
		return NewItemSet(res.Items, r.Key), nil
	}
}

// ContainsAny is a checker for Reference dimensions over item collections:
// it matches when any of got is in the referenced set.
func ContainsAny[ITEM any](set *ItemSet[ITEM], got []ITEM) bool {
	for _, item := range got {
		if set.Contains(item) {
			return true
		}
	}
	return false
}
