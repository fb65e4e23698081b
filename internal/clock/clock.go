// Package clock provides the single injectable time source used by the
// Key Manager's rotation tick, the SVID Factory and the Validator, so
// tests can drive deterministic wall-clock sequences without sleeping.
package clock

import "time"

// Source returns the current Unix time in seconds. The zero value of any
// struct embedding a Source should default to Unix via NewOrDefault.
type Source func() int64

// Unix is the production clock: time.Now().Unix().
func Unix() int64 {
	return time.Now().Unix()
}

// NewOrDefault returns src unchanged if non-nil, else Unix.
func NewOrDefault(src Source) Source {
	if src == nil {
		return Unix
	}
	return src
}
