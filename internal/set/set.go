// Package set implements a small generic set used by the metadata model and
// the delta analyzer for key-set and role-name comparisons.
package set

import (
	"cmp"
	"encoding/json"
	"slices"
)

// Set is a generic set over any ordered type.
type Set[T cmp.Ordered] struct {
	contents map[T]struct{}
}

// New creates an empty set.
func New[T cmp.Ordered]() *Set[T] {
	return &Set[T]{contents: map[T]struct{}{}}
}

// FromItems creates a set populated with the given items.
func FromItems[T cmp.Ordered](items ...T) *Set[T] {
	s := New[T]()
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// MarshalJSON serializes the set as a sorted JSON array.
func (s *Set[T]) MarshalJSON() ([]byte, error) {
	contents := s.Contents()
	slices.Sort(contents)
	return json.Marshal(contents)
}

// UnmarshalJSON loads a set from a JSON array.
func (s *Set[T]) UnmarshalJSON(data []byte) error {
	items := []T{}
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	s.contents = map[T]struct{}{}
	for _, item := range items {
		s.Add(item)
	}
	return nil
}

// Contents returns the set's items in unspecified order.
func (s *Set[T]) Contents() []T {
	if s.contents == nil {
		return nil
	}
	items := make([]T, 0, len(s.contents))
	for item := range s.contents {
		items = append(items, item)
	}
	return items
}

// Sorted returns the set's items sorted ascending.
func (s *Set[T]) Sorted() []T {
	items := s.Contents()
	slices.Sort(items)
	return items
}

// Add inserts item into the set.
func (s *Set[T]) Add(item T) {
	if s.contents == nil {
		s.contents = map[T]struct{}{}
	}
	s.contents[item] = struct{}{}
}

// Remove deletes item from the set.
func (s *Set[T]) Remove(item T) {
	delete(s.contents, item)
}

// Has returns true if item is a member.
func (s *Set[T]) Has(item T) bool {
	_, ok := s.contents[item]
	return ok
}

// Len returns the number of members.
func (s *Set[T]) Len() int {
	return len(s.contents)
}

// Intersection returns the items present in both sets.
func (s *Set[T]) Intersection(other *Set[T]) *Set[T] {
	result := New[T]()
	rangeOver, against := s, other
	if other.Len() < s.Len() {
		rangeOver, against = other, s
	}
	for item := range rangeOver.contents {
		if against.Has(item) {
			result.Add(item)
		}
	}
	return result
}

// Minus returns the items present in s but not in other.
func (s *Set[T]) Minus(other *Set[T]) *Set[T] {
	result := New[T]()
	for item := range s.contents {
		if !other.Has(item) {
			result.Add(item)
		}
	}
	return result
}

// Equal returns true if both sets have exactly the same items.
func (s *Set[T]) Equal(other *Set[T]) bool {
	if s.Len() != other.Len() {
		return false
	}
	for item := range s.contents {
		if !other.Has(item) {
			return false
		}
	}
	return true
}
