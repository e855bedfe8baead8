package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterAllows(t *testing.T) {
	tests := []struct {
		name     string
		options  FilterOptions
		function string
		allowed  bool
	}{
		{
			name:     "all functions enabled",
			options:  DefaultFilterOptions(),
			function: "handleRequest",
			allowed:  true,
		},
		{
			name:     "disabled capture",
			options:  FilterOptions{Enabled: false},
			function: "handleRequest",
			allowed:  false,
		},
		{
			name:     "specific function included",
			options:  FilterOptions{Enabled: true, Include: []string{"handleRequest"}},
			function: "handleRequest",
			allowed:  true,
		},
		{
			name:     "function not in include list",
			options:  FilterOptions{Enabled: true, Include: []string{"handleRequest"}},
			function: "render",
			allowed:  false,
		},
		{
			name:     "specific function excluded",
			options:  FilterOptions{Enabled: true, Exclude: []string{"render"}},
			function: "render",
			allowed:  false,
		},
		{
			name:     "wildcard include",
			options:  FilterOptions{Enabled: true, Include: []string{"api..."}},
			function: "apiGetUser",
			allowed:  true,
		},
		{
			name:     "wildcard exclude",
			options:  FilterOptions{Enabled: true, Exclude: []string{"_internal..."}},
			function: "_internalHelper",
			allowed:  false,
		},
		{
			name:     "glob include",
			options:  FilterOptions{Enabled: true, Include: []string{"get*"}},
			function: "getUser",
			allowed:  true,
		},
		{
			name:     "exclude wins over include",
			options:  FilterOptions{Enabled: true, Include: []string{"api..."}, Exclude: []string{"apiDebug"}},
			function: "apiDebug",
			allowed:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, NewFilter(tt.options).Allows(tt.function))
		})
	}
}

func TestNilFilterAllowsEverything(t *testing.T) {
	var f *Filter
	assert.True(t, f.Allows("anything"))
	assert.Equal(t, DefaultFilterOptions(), f.Options())
}

func TestSplitPatterns(t *testing.T) {
	assert.Equal(t, []string{"api...", "get*"}, SplitPatterns(" api..., get* ,,"))
	assert.Nil(t, SplitPatterns(""))
}
