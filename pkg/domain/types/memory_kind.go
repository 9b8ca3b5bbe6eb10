package types

import "fmt"

// MemoryKind classifies how a memory record was produced
type MemoryKind string

const (
	MemoryKindObservation MemoryKind = "observation"
	MemoryKindReflection  MemoryKind = "reflection"
	MemoryKindPlan        MemoryKind = "plan"
)

// AllMemoryKinds returns all valid memory kinds
func AllMemoryKinds() []MemoryKind {
	return []MemoryKind{
		MemoryKindObservation,
		MemoryKindReflection,
		MemoryKindPlan,
	}
}

// IsValid checks if the memory kind is valid
func (k MemoryKind) IsValid() bool {
	switch k {
	case MemoryKindObservation,
		MemoryKindReflection,
		MemoryKindPlan:
		return true
	default:
		return false
	}
}

// String returns the string representation of the memory kind
func (k MemoryKind) String() string {
	return string(k)
}

// ParseMemoryKind parses a string into a MemoryKind
func ParseMemoryKind(s string) (MemoryKind, error) {
	kind := MemoryKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid memory kind: %s", s)
	}
	return kind, nil
}
