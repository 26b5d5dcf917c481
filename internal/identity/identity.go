// Package identity canonicalizes package references so lists from different
// sources can be compared regardless of letter case.
package identity

import "strings"

// Key is the canonical form of a package reference.
type Key string

// Normalize returns the comparison key for ref: the full string lowercased,
// with a single trailing "/" removed.
func Normalize(ref string) Key {
	return Key(strings.ToLower(strings.TrimSuffix(ref, "/")))
}

// Equal reports whether two references name the same package.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Set is an insertion-ordered set of package references keyed by their
// canonical form. The first spelling added for a key is the one kept.
type Set struct {
	index map[Key]int
	refs  []string
}

// NewSet builds a set from refs, dropping later duplicates.
func NewSet(refs ...string) *Set {
	s := &Set{index: make(map[Key]int, len(refs))}
	for _, r := range refs {
		s.Add(r)
	}
	return s
}

// Add inserts ref unless an equal reference is already present.
// It reports whether ref was added.
func (s *Set) Add(ref string) bool {
	if s.index == nil {
		s.index = map[Key]int{}
	}
	k := Normalize(ref)
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = len(s.refs)
	s.refs = append(s.refs, ref)
	return true
}

// Contains reports whether a reference equal to ref is in the set.
func (s *Set) Contains(ref string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[Normalize(ref)]
	return ok
}

// Lookup returns the stored spelling for ref.
func (s *Set) Lookup(ref string) (string, bool) {
	if s == nil {
		return "", false
	}
	i, ok := s.index[Normalize(ref)]
	if !ok {
		return "", false
	}
	return s.refs[i], true
}

// Len returns the number of distinct references.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.refs)
}

// Refs returns the references in insertion order.
func (s *Set) Refs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.refs))
	copy(out, s.refs)
	return out
}

// Subtract returns the references of s that are not in other, in the
// insertion order of s.
func (s *Set) Subtract(other *Set) []string {
	var out []string
	for _, r := range s.Refs() {
		if !other.Contains(r) {
			out = append(out, r)
		}
	}
	return out
}

// Filter returns the references of s that are also in other, in the
// insertion order of s.
func (s *Set) Filter(other *Set) []string {
	var out []string
	for _, r := range s.Refs() {
		if other.Contains(r) {
			out = append(out, r)
		}
	}
	return out
}
