// Package domain models core SPIFFE concepts: selectors, SPIFFE IDs, trust
// domains, registration entries, JWT-SVIDs and trust bundles.
package domain

import (
	"fmt"
	"strings"
)

// Selector is a canonical fact observed about a workload or its node,
// rendered on the wire as "<TYPE>:<VALUE>" or, for map-like attributes
// (labels, owners, images), "<TYPE>:<key>:<value>".
//
// Selector is immutable after construction.
type Selector struct {
	kind      SelectorType
	key       string // the TYPE, e.g. "CLUSTER", "PODLABELS"
	subKey    string // set only for map-like selectors (label key, owner kind, ...)
	value     string
	formatted string
}

// NewNodeSelector builds a node-kind selector ("CLUSTER:<value>").
func NewNodeSelector(key NodeSelectorKey, value string) (*Selector, error) {
	if !key.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrSelectorInvalid, key)
	}
	return newSelector(SelectorTypeNode, string(key), "", value)
}

// NewNodeMapSelector builds a node-kind map selector ("AGENTNODELABELS:<k>:<v>").
func NewNodeMapSelector(key NodeSelectorKey, subKey, value string) (*Selector, error) {
	if !key.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrSelectorInvalid, key)
	}
	return newSelector(SelectorTypeNode, string(key), subKey, value)
}

// NewWorkloadSelector builds a workload-kind selector ("NAMESPACE:<value>").
func NewWorkloadSelector(key WorkloadSelectorKey, value string) (*Selector, error) {
	if !key.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrSelectorInvalid, key)
	}
	return newSelector(SelectorTypeWorkload, string(key), "", value)
}

// NewWorkloadMapSelector builds a workload-kind map selector ("PODLABELS:<k>:<v>").
func NewWorkloadMapSelector(key WorkloadSelectorKey, subKey, value string) (*Selector, error) {
	if !key.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrSelectorInvalid, key)
	}
	return newSelector(SelectorTypeWorkload, string(key), subKey, value)
}

func newSelector(kind SelectorType, key, subKey, value string) (*Selector, error) {
	if key == "" {
		return nil, fmt.Errorf("%w", ErrEmptyKey)
	}
	if value == "" {
		return nil, fmt.Errorf("%w", ErrEmptyValue)
	}
	formatted := key + ":" + value
	if subKey != "" {
		formatted = key + ":" + subKey + ":" + value
	}
	return &Selector{kind: kind, key: key, subKey: subKey, value: value, formatted: formatted}, nil
}

// ParseSelectorFromString parses "<TYPE>:<VALUE>" or "<TYPE>:<key>:<value>"
// against the closed enum for the given SelectorType. Multi-colon values
// beyond the map form are folded into the trailing value component.
func ParseSelectorFromString(kind SelectorType, s string) (*Selector, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: input string is empty", ErrInvalidFormat)
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: expected TYPE:VALUE, got %s", ErrInvalidFormat, s)
	}
	key := parts[0]

	switch kind {
	case SelectorTypeNode:
		if !NodeSelectorKey(key).IsValid() {
			return nil, fmt.Errorf("%w: unknown node selector type %s", ErrInvalidFormat, key)
		}
	case SelectorTypeWorkload:
		if !WorkloadSelectorKey(key).IsValid() {
			return nil, fmt.Errorf("%w: unknown workload selector type %s", ErrInvalidFormat, key)
		}
	default:
		return nil, fmt.Errorf("%w: unknown selector kind %s", ErrInvalidFormat, kind)
	}

	if len(parts) == 2 {
		return newSelector(kind, key, "", parts[1])
	}
	// Map form: TYPE:subkey:value (value may itself contain colons).
	return newSelector(kind, key, parts[1], strings.Join(parts[2:], ":"))
}

// String returns the canonical wire representation.
func (s *Selector) String() string {
	return s.formatted
}

// Kind returns whether this is a node or workload selector.
func (s *Selector) Kind() SelectorType {
	return s.kind
}

// Key returns the selector's TYPE component (e.g. "CLUSTER", "PODLABELS").
func (s *Selector) Key() string {
	return s.key
}

// SubKey returns the map key for map-like selectors, or "" otherwise.
func (s *Selector) SubKey() string {
	return s.subKey
}

// Value returns the selector's value component.
func (s *Selector) Value() string {
	return s.value
}

// Equals reports whether two selectors have the same canonical string
// form. A nil selector never equals anything.
func (s *Selector) Equals(other *Selector) bool {
	if s == nil || other == nil {
		return false
	}
	return s.formatted == other.formatted
}
