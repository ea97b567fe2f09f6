package highlight

import (
	"fmt"
	"testing"
)

func TestPager_LastPage(t *testing.T) {
	p := NewPager(4)
	tests := []struct {
		count int
		want  int
	}{
		{0, 0}, {1, 0}, {4, 0}, {5, 1}, {8, 1}, {9, 2},
	}
	for _, tt := range tests {
		if got := p.LastPage(tt.count); got != tt.want {
			t.Errorf("LastPage(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}

func TestPager_SetPageClamps(t *testing.T) {
	p := NewPager(4)
	if got := p.SetPage(CategoryGoal, 7, 5); got != 1 {
		t.Fatalf("SetPage(7) with 5 items = %d, want 1", got)
	}
	if got := p.SetPage(CategoryGoal, -3, 5); got != 0 {
		t.Fatalf("SetPage(-3) = %d, want 0", got)
	}
}

func TestPager_DeletingLastItemOnLastPageClamps(t *testing.T) {
	s := NewStore()
	var items []Interval
	for i := 0; i < 5; i++ {
		items = append(items, iv(ID(fmt.Sprint(i+1)), float64(i*10), float64(i*10+5), CategoryGoal))
	}
	s.Load(items, nil)

	p := NewPager(4)
	p.Sync(s.Categories())
	p.SetPage(CategoryGoal, 1, 5)
	if w := p.Window(CategoryGoal, s.Detected(CategoryGoal)); len(w) != 1 || w[0].ID != "5" {
		t.Fatalf("page 1 window = %+v, want only item 5", w)
	}

	if err := s.DeleteDetected(CategoryGoal, "5"); err != nil {
		t.Fatalf("DeleteDetected() error = %v", err)
	}
	p.Sync(s.Categories())

	if got := p.Page(CategoryGoal); got != 0 {
		t.Fatalf("page after delete = %d, want 0", got)
	}
	if w := p.Window(CategoryGoal, s.Detected(CategoryGoal)); len(w) != 4 {
		t.Fatalf("window after clamp has %d items, want 4", len(w))
	}
}

func TestPager_KeepsOtherCategoryPages(t *testing.T) {
	s := NewStore()
	var items []Interval
	for i := 0; i < 6; i++ {
		items = append(items, iv(ID(fmt.Sprint("g", i)), float64(i), float64(i)+0.5, CategoryGoal))
		items = append(items, iv(ID(fmt.Sprint("f", i)), float64(i), float64(i)+0.5, CategoryFoul))
	}
	s.Load(items, nil)

	p := NewPager(4)
	p.Sync(s.Categories())
	p.SetPage(CategoryGoal, 1, 6)
	p.SetActive(CategoryFoul)
	p.SetPage(CategoryFoul, 1, 6)
	p.SetActive(CategoryGoal)

	if p.Page(CategoryGoal) != 1 || p.Page(CategoryFoul) != 1 {
		t.Fatalf("pages = goal %d foul %d, want 1 and 1", p.Page(CategoryGoal), p.Page(CategoryFoul))
	}
}

func TestPager_SyncDropsVanishedCategory(t *testing.T) {
	s := NewStore()
	s.Load([]Interval{
		iv("1", 0, 1, CategoryFoul),
		iv("2", 0, 1, CategoryGoal),
	}, nil)

	p := NewPager(4)
	p.Sync(s.Categories())
	if p.Active() != CategoryFoul {
		t.Fatalf("active = %q, want first category %q", p.Active(), CategoryFoul)
	}

	if err := s.DeleteDetected(CategoryFoul, "1"); err != nil {
		t.Fatalf("DeleteDetected() error = %v", err)
	}
	p.Sync(s.Categories())

	if p.Active() != CategoryGoal {
		t.Fatalf("active = %q, want %q", p.Active(), CategoryGoal)
	}
}
