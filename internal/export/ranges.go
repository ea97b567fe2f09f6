// Package export turns the selected highlights into a rendered video or a
// cut list.
package export

import (
	"cmp"
	"slices"

	"github.com/sportcut/sportcut-agent/internal/cloud"
	"github.com/sportcut/sportcut-agent/internal/highlight"
)

// BuildRanges maps the selection to export ranges ordered by start time.
// Ties keep selection order. Keys that no longer resolve are skipped.
func BuildRanges(store *highlight.Store) []cloud.Range {
	keys := store.Selection()
	ranges := make([]cloud.Range, 0, len(keys))
	for _, key := range keys {
		iv, ok := store.Lookup(key)
		if !ok {
			continue
		}
		ranges = append(ranges, rangeOf(iv))
	}
	slices.SortStableFunc(ranges, func(a, b cloud.Range) int {
		return cmp.Compare(a.Start, b.Start)
	})
	return ranges
}

func rangeOf(iv highlight.Interval) cloud.Range {
	if iv.IsCustom() {
		h := cloud.FromInterval(iv)
		return cloud.Range{Start: iv.Start, End: iv.End, Type: h.Type, Name: iv.Label}
	}
	return cloud.Range{
		Start:    iv.Start,
		End:      iv.End,
		Type:     string(iv.Category),
		Category: string(iv.Category),
	}
}

// clipName is how a range is labelled in a cut list.
func clipName(r cloud.Range) string {
	if r.Name != "" {
		return r.Name
	}
	return r.Type
}
