package domain

// SelectorSet is a deduplicated collection of selector strings, used both
// for the Catalog's persisted "every selector an entry requires" list and
// for the observed selector bags the Identity Matcher checks subsets against.
//
// Thread-safety: SelectorSet is NOT thread-safe. Callers must synchronize access.
type SelectorSet struct {
	selectors map[string]struct{}
}

// NewSelectorSet creates a selector set from formatted selector strings.
// Duplicates are deduplicated; empty strings are ignored.
func NewSelectorSet(values ...string) *SelectorSet {
	ss := &SelectorSet{selectors: make(map[string]struct{}, len(values))}
	for _, v := range values {
		if v != "" {
			ss.selectors[v] = struct{}{}
		}
	}
	return ss
}

// Add inserts a formatted selector string. No-op for "".
func (ss *SelectorSet) Add(value string) {
	if value != "" {
		ss.selectors[value] = struct{}{}
	}
}

// Contains reports whether value is a member of the set.
func (ss *SelectorSet) Contains(value string) bool {
	_, ok := ss.selectors[value]
	return ok
}

// Len returns the number of selectors in the set.
func (ss *SelectorSet) Len() int {
	return len(ss.selectors)
}

// IsEmpty reports whether the set has no selectors.
func (ss *SelectorSet) IsEmpty() bool {
	return len(ss.selectors) == 0
}

// Subset reports whether every element of required is present in ss. This is
// the primitive the Identity Matcher uses twice per entry: once for the
// workload predicate, once for the parent node predicate.
func Subset(required []string, observed *SelectorSet) bool {
	for _, r := range required {
		if !observed.Contains(r) {
			return false
		}
	}
	return true
}

// Strings returns all selectors as a slice. Order is non-deterministic.
func (ss *SelectorSet) Strings() []string {
	result := make([]string, 0, len(ss.selectors))
	for v := range ss.selectors {
		result = append(result, v)
	}
	return result
}
