package highlight

import "iter"

// DefaultPageSize is the number of intervals shown per category page.
const DefaultPageSize = 4

// Pager tracks a page index per category and the category being viewed.
// Page indices of other categories are kept when the active one changes.
type Pager struct {
	size   int
	pages  map[Category]int
	active Category
}

func NewPager(size int) *Pager {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Pager{size: size, pages: make(map[Category]int)}
}

func (p *Pager) Size() int {
	return p.size
}

// LastPage returns the index of the last page for count items.
func (p *Pager) LastPage(count int) int {
	if count <= 0 {
		return 0
	}
	return (count - 1) / p.size
}

// Page returns the page index for category.
func (p *Pager) Page(category Category) int {
	return p.pages[category]
}

// SetPage moves category to page, clamped to the pages that exist.
func (p *Pager) SetPage(category Category, page, count int) int {
	page = max(0, min(page, p.LastPage(count)))
	p.pages[category] = page
	return page
}

// Active returns the category being viewed.
func (p *Pager) Active() Category {
	return p.active
}

// SetActive switches the viewed category.
func (p *Pager) SetActive(category Category) {
	p.active = category
}

// Window returns the slice of items on the current page of category.
func (p *Pager) Window(category Category, items []Interval) []Interval {
	page := max(0, min(p.pages[category], p.LastPage(len(items))))
	lo := page * p.size
	hi := min(lo+p.size, len(items))
	if lo >= hi {
		return nil
	}
	return items[lo:hi]
}

// Sync reconciles page state with the current category counts: indices past
// the last page are pulled back, vanished categories are forgotten, and the
// active category falls back to the first remaining one.
func (p *Pager) Sync(counts iter.Seq2[Category, int]) {
	live := make(map[Category]struct{})
	var first Category
	for cat, n := range counts {
		if first == "" {
			first = cat
		}
		live[cat] = struct{}{}
		if page, ok := p.pages[cat]; ok && page > p.LastPage(n) {
			p.pages[cat] = p.LastPage(n)
		}
	}
	for cat := range p.pages {
		if _, ok := live[cat]; !ok {
			delete(p.pages, cat)
		}
	}
	if _, ok := live[p.active]; !ok {
		p.active = first
	}
}

// Reset forgets all page state.
func (p *Pager) Reset() {
	p.pages = make(map[Category]int)
	p.active = ""
}
