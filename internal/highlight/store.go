package highlight

import (
	"fmt"
	"iter"
	"slices"
)

// Prior is the previously saved editing state for a video: user intervals
// and ids hidden from the detector output.
type Prior struct {
	Custom     []Interval
	Tombstones []ID
}

// Store maps categories to detected intervals and keeps the custom list, the
// tombstone set and the export selection consistent with each other.
//
// Store is not safe for concurrent use; the editor serializes access so every
// mutation is observed as a single step.
type Store struct {
	order      []Category
	byCategory map[Category][]Interval
	custom     []Interval

	tombstones map[ID]struct{}
	tombOrder  []ID

	selection *Selection

	revision uint64
	dirty    bool
}

func NewStore() *Store {
	return &Store{
		byCategory: make(map[Category][]Interval),
		tombstones: make(map[ID]struct{}),
		selection:  newSelection(),
	}
}

// Load replaces the detected intervals wholesale. Custom intervals and
// tombstones are cleared, or seeded from prior when it is non-nil. Detected
// entries that are tombstoned, repeat an id, or have unusable bounds are
// skipped; the number skipped is returned. Load never marks the store dirty.
func (s *Store) Load(detected []Interval, prior *Prior) int {
	s.order = nil
	s.byCategory = make(map[Category][]Interval)
	s.custom = nil
	s.tombstones = make(map[ID]struct{})
	s.tombOrder = nil
	s.selection = newSelection()

	if prior != nil {
		for _, id := range prior.Tombstones {
			s.addTombstone(id)
		}
	}

	seen := make(map[ID]struct{}, len(detected))
	dropped := 0
	for _, iv := range detected {
		if _, gone := s.tombstones[iv.ID]; gone {
			dropped++
			continue
		}
		if _, dup := seen[iv.ID]; dup || iv.ID == "" {
			dropped++
			continue
		}
		if ValidateBounds(iv.Start, iv.End, 0) != nil {
			dropped++
			continue
		}
		seen[iv.ID] = struct{}{}

		iv.UserAuthored = false
		cat := iv.Category
		if cat == "" {
			cat = CategoryUnknown
			iv.Category = cat
		}
		if _, ok := s.byCategory[cat]; !ok {
			s.order = append(s.order, cat)
		}
		s.byCategory[cat] = append(s.byCategory[cat], iv)
	}

	if prior != nil {
		for _, iv := range prior.Custom {
			if _, dup := seen[iv.ID]; dup || iv.ID == "" {
				dropped++
				continue
			}
			if ValidateBounds(iv.Start, iv.End, 0) != nil {
				dropped++
				continue
			}
			seen[iv.ID] = struct{}{}
			iv.Category = CategoryCustom
			iv.UserAuthored = true
			s.custom = append(s.custom, iv)
		}
	}

	s.revision++
	s.dirty = false
	return dropped
}

// AddCustom appends a user interval. The interval must already satisfy the
// constructor contract; it is marked user authored and its category is forced
// to custom.
func (s *Store) AddCustom(iv Interval) error {
	if err := ValidateBounds(iv.Start, iv.End, 0); err != nil {
		return err
	}
	if iv.ID == "" {
		return fmt.Errorf("%w: custom highlight needs an id", ErrInvalidInterval)
	}
	if s.has(iv.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, iv.ID)
	}
	iv.Category = CategoryCustom
	iv.UserAuthored = true
	s.custom = append(slices.Clip(s.custom), iv)
	s.touch()
	return nil
}

// DeleteDetected hides a detected interval: it leaves its category list,
// joins the tombstones and leaves the selection in one step. A category whose
// list becomes empty is dropped.
func (s *Store) DeleteDetected(category Category, id ID) error {
	list := s.byCategory[category]
	idx := slices.IndexFunc(list, func(iv Interval) bool { return iv.ID == id })
	if idx < 0 {
		return fmt.Errorf("%w: %s/%s", ErrUnknownHighlight, category, id)
	}

	rest := slices.Delete(slices.Clone(list), idx, idx+1)
	if len(rest) == 0 {
		delete(s.byCategory, category)
		s.order = slices.DeleteFunc(slices.Clone(s.order), func(c Category) bool { return c == category })
	} else {
		s.byCategory[category] = rest
	}
	s.addTombstone(id)
	s.selection.remove(Key{Category: category, ID: id})
	s.touch()
	return nil
}

// DeleteCustom removes a user interval and any selection of it.
func (s *Store) DeleteCustom(id ID) error {
	idx := slices.IndexFunc(s.custom, func(iv Interval) bool { return iv.ID == id })
	if idx < 0 {
		return fmt.Errorf("%w: custom/%s", ErrUnknownHighlight, id)
	}
	s.custom = slices.Delete(slices.Clone(s.custom), idx, idx+1)
	s.selection.remove(Key{ID: id})
	s.touch()
	return nil
}

// Toggle adds key to the selection or removes it if already present. Only
// live intervals can be selected.
func (s *Store) Toggle(key Key) (selected bool, err error) {
	if s.selection.contains(key) {
		s.selection.remove(key)
		return false, nil
	}
	if _, ok := s.Lookup(key); !ok {
		return false, fmt.Errorf("%w: %s/%s", ErrUnknownHighlight, key.Category, key.ID)
	}
	s.selection.add(key)
	return true, nil
}

// ClearSelection empties the selection.
func (s *Store) ClearSelection() {
	s.selection = newSelection()
}

// Selection returns the selected keys in selection order.
func (s *Store) Selection() []Key {
	return s.selection.keys()
}

// IsSelected reports whether key is selected.
func (s *Store) IsSelected(key Key) bool {
	return s.selection.contains(key)
}

// Categories yields (category, count) pairs in first-seen order. The sequence
// reads the store each time it is ranged over.
func (s *Store) Categories() iter.Seq2[Category, int] {
	return func(yield func(Category, int) bool) {
		for _, cat := range s.order {
			n := len(s.byCategory[cat])
			if n == 0 {
				continue
			}
			if !yield(cat, n) {
				return
			}
		}
	}
}

// Detected returns a copy of the intervals in category.
func (s *Store) Detected(category Category) []Interval {
	return slices.Clone(s.byCategory[category])
}

// Custom returns a copy of the user intervals.
func (s *Store) Custom() []Interval {
	return slices.Clone(s.custom)
}

// Tombstones returns hidden ids in deletion order.
func (s *Store) Tombstones() []ID {
	return slices.Clone(s.tombOrder)
}

// IsTombstoned reports whether id was hidden.
func (s *Store) IsTombstoned(id ID) bool {
	_, ok := s.tombstones[id]
	return ok
}

// Flatten lists every live detected interval, category by category.
func (s *Store) Flatten() []Interval {
	var out []Interval
	for _, cat := range s.order {
		out = append(out, s.byCategory[cat]...)
	}
	return out
}

// Lookup resolves a selection key to its live interval.
func (s *Store) Lookup(key Key) (Interval, bool) {
	if key.IsCustom() {
		for _, iv := range s.custom {
			if iv.ID == key.ID {
				return iv, true
			}
		}
		return Interval{}, false
	}
	for _, iv := range s.byCategory[key.Category] {
		if iv.ID == key.ID {
			return iv, true
		}
	}
	return Interval{}, false
}

// Revision increases on every load and mutation.
func (s *Store) Revision() uint64 {
	return s.revision
}

// Dirty reports unsaved changes.
func (s *Store) Dirty() bool {
	return s.dirty
}

// MarkSaved clears the dirty flag if nothing changed since revision was read.
func (s *Store) MarkSaved(revision uint64) bool {
	if s.revision != revision {
		return false
	}
	s.dirty = false
	return true
}

func (s *Store) has(id ID) bool {
	for _, list := range s.byCategory {
		if slices.ContainsFunc(list, func(iv Interval) bool { return iv.ID == id }) {
			return true
		}
	}
	return slices.ContainsFunc(s.custom, func(iv Interval) bool { return iv.ID == id })
}

func (s *Store) addTombstone(id ID) {
	if _, ok := s.tombstones[id]; ok {
		return
	}
	s.tombstones[id] = struct{}{}
	s.tombOrder = append(s.tombOrder, id)
}

func (s *Store) touch() {
	s.revision++
	s.dirty = true
}
