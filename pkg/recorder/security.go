package recorder

import (
	"fmt"
	"regexp"

	"github.com/willibrandon/ChronoJS/pkg/value"
)

// RedactionOptions configures scrubbing of sensitive captured values.
type RedactionOptions struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Patterns are case-insensitive regular expressions matched against
	// variable names and object keys.
	Patterns    []string `yaml:"patterns" mapstructure:"patterns"`
	Replacement string   `yaml:"replacement" mapstructure:"replacement"`
}

// DefaultRedactionOptions returns the default redaction options (disabled)
func DefaultRedactionOptions() RedactionOptions {
	return RedactionOptions{
		Enabled:     false,
		Patterns:    []string{"password", "token", "secret", "key", "credential"},
		Replacement: "***REDACTED***",
	}
}

// Redactor replaces values whose names look sensitive.
type Redactor struct {
	patterns    []*regexp.Regexp
	replacement string
}

// NewRedactor compiles opts. It returns nil, nil when redaction is disabled.
func NewRedactor(opts RedactionOptions) (*Redactor, error) {
	if !opts.Enabled {
		return nil, nil
	}
	r := &Redactor{replacement: opts.Replacement}
	if r.replacement == "" {
		r.replacement = DefaultRedactionOptions().Replacement
	}
	for _, p := range opts.Patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Sensitive reports whether name matches any pattern.
func (r *Redactor) Sensitive(name string) bool {
	for _, re := range r.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Redact returns v with sensitive parts replaced. A sensitive name replaces
// the whole value; otherwise object properties and string-keyed map entries
// are checked at every level. v itself is never modified.
func (r *Redactor) Redact(name string, v value.Value) value.Value {
	if r.Sensitive(name) {
		return value.String(r.replacement)
	}
	if !r.containsSensitiveKey(v) {
		return v
	}

	out := v.Clone()
	out.Walk(func(x *value.Value) bool {
		switch x.Kind {
		case value.KindObject:
			for i := range x.Fields {
				if r.Sensitive(x.Fields[i].Key) {
					x.Fields[i].Value = value.String(r.replacement)
				}
			}
		case value.KindMap:
			for i := range x.Entries {
				if k := x.Entries[i].Key; k.Kind == value.KindString && r.Sensitive(k.Str) {
					x.Entries[i].Value = value.String(r.replacement)
				}
			}
		}
		return true
	})
	return out
}

func (r *Redactor) containsSensitiveKey(v value.Value) bool {
	found := false
	v.Walk(func(x *value.Value) bool {
		if found {
			return false
		}
		switch x.Kind {
		case value.KindObject:
			for _, f := range x.Fields {
				if r.Sensitive(f.Key) {
					found = true
				}
			}
		case value.KindMap:
			for _, e := range x.Entries {
				if e.Key.Kind == value.KindString && r.Sensitive(e.Key.Str) {
					found = true
				}
			}
		}
		return !found
	})
	return found
}
