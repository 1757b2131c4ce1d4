package finder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValueCondition_PlainValueMeansEquals(t *testing.T) {
	t.Parallel()
	c, err := ParseValueCondition("api")
	require.NoError(t, err)
	assert.Equal(t, MatchEquals, c.Type)
	assert.True(t, c.MatchesString("api"))
	assert.False(t, c.MatchesString("API"))
}

func TestParseValueCondition_ValueWithColonIsPlain(t *testing.T) {
	t.Parallel()
	c, err := ParseValueCondition("svc:api")
	require.NoError(t, err)
	assert.Equal(t, MatchEquals, c.Type)
	assert.Equal(t, "svc:api", c.Value)
}

func TestValueCondition_MatchTypes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw   string
		value string
		want  bool
	}{
		{"value:api,matchType:equals", "api", true},
		{"value:api,matchType:does-not-equal", "api", false},
		{"value:api,matchType:starts-with", "api-gateway", true},
		{"value:way,matchType:ends-with", "api-gateway", true},
		{"value:gate,matchType:contains", "api-gateway", true},
		{"value:gate,matchType:does-not-contain", "api-gateway", false},
		{"value:^api-.*y$,matchType:matches", "api-gateway", true},
		{"value:^x,matchType:does-not-match", "api-gateway", true},
		{"value:internal/**,matchType:glob", "internal/store/cache", true},
		{"value:internal/*,matchType:glob", "internal/store/cache", false},
		{"matchType:any", "whatever", true},
		{"matchType:exists", "", true},
		{"value:9,matchType:more-than", "10", true},
		{"value:9,matchType:less-than", "10", false},
		{"value:b,matchType:less-than", "a", true},
		{"value:API,matchType:equals,ignoreCase:true", "api", true},
		{"value:API,matchType:matches,ignoreCase:true", "my-api", true},
		{"value:API,matchType:STARTS-WITH,ignoreCase:true", "api-x", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			c, err := ParseValueCondition(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.MatchesString(tt.value))
		})
	}
}

func TestValueCondition_AbsentValue(t *testing.T) {
	t.Parallel()
	exists, err := ParseValueCondition("matchType:exists")
	require.NoError(t, err)
	assert.False(t, exists.Matches(nil))

	notExists, err := ParseValueCondition("matchType:not-exists")
	require.NoError(t, err)
	assert.True(t, notExists.Matches(nil))

	eq, err := ParseValueCondition("x")
	require.NoError(t, err)
	assert.False(t, eq.Matches(nil))

	neq, err := ParseValueCondition("value:x,matchType:does-not-equal")
	require.NoError(t, err)
	assert.True(t, neq.Matches(nil))
}

func TestParseValueCondition_Errors(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"value:x,matchType:sounds-like",
		"value:a(,matchType:matches",
		"value:[,matchType:glob",
		"matchType:contains",
		"value:x,ignoreCase:maybe",
	} {
		_, err := ParseValueCondition(raw)
		assert.Error(t, err, raw)
	}
}

func TestValueCondition_String(t *testing.T) {
	t.Parallel()
	c, err := ParseValueCondition("value:a,matchType:contains")
	require.NoError(t, err)
	again, err := ParseValueCondition(c.String())
	require.NoError(t, err)
	assert.Equal(t, c.Type, again.Type)
	assert.Equal(t, c.Value, again.Value)

	plain, err := ParseValueCondition("a")
	require.NoError(t, err)
	assert.Equal(t, "a", plain.String())
}
