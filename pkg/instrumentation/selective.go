package instrumentation

import (
	"path"
	"strings"
)

// FilterOptions stores configuration for selective capture
type FilterOptions struct {
	// Enabled indicates whether capture is enabled at all
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Include is a list of function-name patterns to capture.
	// Empty means all functions are captured
	Include []string `yaml:"include" mapstructure:"include"`

	// Exclude is a list of function-name patterns to skip.
	// This takes precedence over Include
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`
}

// DefaultFilterOptions returns the default filter options
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		Enabled: true,
		Include: []string{}, // Empty means all functions
		Exclude: []string{},
	}
}

// Filter decides which guest functions produce snapshots. A nil Filter
// allows everything.
type Filter struct {
	opts FilterOptions
}

func NewFilter(opts FilterOptions) *Filter {
	return &Filter{opts: opts}
}

// Options returns the options the filter was built with.
func (f *Filter) Options() FilterOptions {
	if f == nil {
		return DefaultFilterOptions()
	}
	return f.opts
}

// Allows checks if snapshots should be recorded for function
func (f *Filter) Allows(function string) bool {
	if f == nil {
		return true
	}
	if !f.opts.Enabled {
		return false
	}

	for _, exclude := range f.opts.Exclude {
		if matchesPattern(function, exclude) {
			return false
		}
	}

	// If no includes specified, capture everything except exclusions
	if len(f.opts.Include) == 0 {
		return true
	}

	for _, include := range f.opts.Include {
		if matchesPattern(function, include) {
			return true
		}
	}
	return false
}

// matchesPattern checks if a function name matches a pattern. A trailing
// "..." matches any suffix; anything else is a path.Match glob.
func matchesPattern(function, pattern string) bool {
	if strings.HasSuffix(pattern, "...") {
		return strings.HasPrefix(function, strings.TrimSuffix(pattern, "..."))
	}

	matched, _ := path.Match(pattern, function)
	return matched
}

// SplitPatterns parses a comma-separated pattern list as used in
// environment variables.
func SplitPatterns(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
