package highlight

import "slices"

// Key addresses an interval for selection. Keys of the custom list have an
// empty Category; a detected category named "custom" is addressed like any
// other category.
type Key struct {
	Category Category `json:"category,omitempty"`
	ID       ID       `json:"id"`
}

// CustomKey returns the selection key of a custom interval.
func CustomKey(id ID) Key {
	return Key{ID: id}
}

// IsCustom reports whether the key addresses the custom list.
func (k Key) IsCustom() bool {
	return k.Category == ""
}

// Selection is an insertion-ordered set of keys.
type Selection struct {
	order []Key
	index map[Key]struct{}
}

func newSelection() *Selection {
	return &Selection{index: make(map[Key]struct{})}
}

func (s *Selection) add(k Key) {
	if _, ok := s.index[k]; ok {
		return
	}
	s.index[k] = struct{}{}
	s.order = append(slices.Clip(s.order), k)
}

func (s *Selection) remove(k Key) {
	if _, ok := s.index[k]; !ok {
		return
	}
	delete(s.index, k)
	s.order = slices.DeleteFunc(slices.Clone(s.order), func(o Key) bool { return o == k })
}

func (s *Selection) contains(k Key) bool {
	_, ok := s.index[k]
	return ok
}

func (s *Selection) keys() []Key {
	return slices.Clone(s.order)
}
