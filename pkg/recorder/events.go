package recorder

import "fmt"

// Kind is the capture event that produced a snapshot.
type Kind uint8

const (
	FunctionEntry Kind = iota
	FunctionExit
	VariableCapture
	ScopeCapture
	CustomContext
)

var kindNames = [...]string{
	FunctionEntry:   "function-entry",
	FunctionExit:    "function-exit",
	VariableCapture: "variable-capture",
	ScopeCapture:    "scope-capture",
	CustomContext:   "custom-context",
}

// String returns the string representation of the Kind
func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return int(k) < len(kindNames)
}

// ParseKind accepts the names produced by String plus the short aliases
// used by the guest API ("entry", "exit", "variable", "scope", "custom").
func ParseKind(s string) (Kind, error) {
	switch s {
	case "entry":
		return FunctionEntry, nil
	case "exit":
		return FunctionExit, nil
	case "variable":
		return VariableCapture, nil
	case "scope":
		return ScopeCapture, nil
	case "custom", "context":
		return CustomContext, nil
	}
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown snapshot kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid snapshot kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
