package finder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allItemsSource(b *Builder[*testItem], items []*testItem) {
	b.MultipleConvertToItems(Always(), func(*Locator) ([]*testItem, error) {
		return items, nil
	})
}

func TestBuild_DuplicateDimension(t *testing.T) {
	t.Parallel()
	b := NewBuilder[*testItem]("item").ItemKey(testItemKey)
	Dim(b, NewDimension[string]("name"), ParseString)
	Dim(b, NewDimension[int64]("name"), ParseInt64)
	allItemsSource(b, nil)

	_, err := b.Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), `"name" registered twice`)
}

func TestBuild_MetadataMayBeSetOnce(t *testing.T) {
	t.Parallel()
	b := NewBuilder[*testItem]("item").ItemKey(testItemKey)
	Dim(b, NewDimension[string]("name"), ParseString).
		Description("first").
		Description("second").
		Hidden().
		Hidden()
	allItemsSource(b, nil)

	_, err := b.Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "description")
	assert.Contains(t, err.Error(), "hidden")
}

func TestBuild_ReservedAndInvalidNames(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"count", "start", "lookupLimit", "item", "unique", "$help", "bad-name", ""} {
		b := NewBuilder[*testItem]("item").ItemKey(testItemKey)
		Dim(b, NewDimension[string](name), ParseString)
		allItemsSource(b, nil)
		_, err := b.Build()
		assert.True(t, errors.Is(err, ErrConfiguration), "name %q", name)
	}
}

func TestBuild_InvalidDefault(t *testing.T) {
	t.Parallel()
	b := NewBuilder[*testItem]("item").ItemKey(testItemKey)
	Dim(b, NewDimension[int64]("size"), ParseInt64).WithDefault("big")
	allItemsSource(b, nil)
	_, err := b.Build()
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestBuild_NoSources(t *testing.T) {
	t.Parallel()
	b := NewBuilder[*testItem]("item").ItemKey(testItemKey)
	_, err := b.Build()
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestBuild_NonComparableItemNeedsKey(t *testing.T) {
	t.Parallel()
	b := NewBuilder[[]string]("row")
	b.MultipleConvertToItems(Always(), func(*Locator) ([][]string, error) { return nil, nil })
	_, err := b.Build()
	assert.True(t, errors.Is(err, ErrConfiguration))

	b.ItemKey(func(r []string) any { return r[0] })
	b.errs = nil
	_, err = b.Build()
	assert.NoError(t, err)
}

func TestMustBuild_Panics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		NewBuilder[*testItem]("item").MustBuild()
	})
}

func TestDefinition_Help(t *testing.T) {
	t.Parallel()
	def := newTestDefinition(t, nil)

	help := def.Help()
	assert.Contains(t, help, "Locator dimensions for item")
	assert.Contains(t, help, "Item name.")
	assert.Contains(t, help, ValueConditionSyntax)
	assert.Contains(t, help, "lookupLimit")
	assert.NotContains(t, help, "secret")

	info, ok := def.Dimension("secret")
	require.True(t, ok)
	assert.True(t, info.Hidden)

	names := make([]string, 0)
	for _, d := range def.Dimensions() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"id", "name", "tag", "enabled", "legacy", "secret"}, names)
}

// =============================================================================
// ToItems intersection
// =============================================================================

func TestToItems_RepeatedDimensionIntersects(t *testing.T) {
	t.Parallel()
	items := []*testItem{
		{ID: 1, Tags: []string{"a"}},
		{ID: 2, Tags: []string{"a", "b"}},
		{ID: 3, Tags: []string{"b"}},
		{ID: 4, Tags: []string{"a", "b", "c"}},
	}
	f, stats := newTestFinder(t, items)

	res, err := f.Items("tag:a,tag:b")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4}, itemIDs(res.Items))

	last := stats.last()
	assert.Equal(t, "tag", last.Source)
	assert.Equal(t, 1, last.FiltersSkipped, "the tag filter duplicates the tag source")
	assert.Equal(t, 0, last.FiltersApplied)
}

func TestToItems_EmptyIntersectionShortCircuits(t *testing.T) {
	t.Parallel()
	calls := 0
	b := NewBuilder[*testItem]("item").ItemKey(testItemKey)
	Dim(b, NewDimension[string]("tag"), ParseString).
		ToItems(func(tag string) ([]*testItem, error) {
			calls++
			if tag == "none" {
				return nil, nil
			}
			return []*testItem{{ID: 1}}, nil
		})
	f := New(b.MustBuild())

	res, err := f.Items("tag:none,tag:a,tag:b")
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 1, calls)
}

func TestToItems_KeyFixedAtBuild(t *testing.T) {
	t.Parallel()
	// Every call returns fresh pointers, so only the id key can intersect.
	b := NewBuilder[*testItem]("item")
	Dim(b, NewDimension[string]("tag"), ParseString).
		ToItems(func(tag string) ([]*testItem, error) {
			return []*testItem{{ID: 1}, {ID: 2}}, nil
		})
	b.ItemKey(testItemKey)
	def := b.MustBuild()

	b.ItemKey(func(i *testItem) any { return i })
	Dim(b, NewDimension[string]("other"), ParseString).
		ToItems(func(string) ([]*testItem, error) { return nil, nil })

	res, err := New(def).Items("tag:a,tag:b")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, itemIDs(res.Items), "later builder changes do not reach the definition")
	_, ok := def.Dimension("other")
	assert.False(t, ok)
	for _, rule := range def.sources {
		assert.NotNil(t, rule.resolve, rule.name)
		assert.Nil(t, rule.bind, rule.name)
	}
}

func TestDefaultFilter_OrAcrossValues(t *testing.T) {
	t.Parallel()
	items := []*testItem{
		{ID: 1, Name: "api"},
		{ID: 2, Name: "web"},
		{ID: 3, Name: "db"},
	}
	f, _ := newTestFinder(t, items)

	res, err := f.Items("name:api,name:db")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, itemIDs(res.Items))
}
