// Package highlight holds the in-memory timeline model for one video: detected
// and custom intervals, tombstones, the export selection and pagination state.
package highlight

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrInvalidInterval  = errors.New("invalid interval")
	ErrUnknownHighlight = errors.New("highlight not found")
	ErrDuplicateID      = errors.New("highlight id already present")
)

// Category is a classification label produced by the detector or the user.
type Category string

const (
	CategoryGoal        Category = "goal"
	CategoryShoot       Category = "shoot"
	CategoryFoul        Category = "foul"
	CategorySave        Category = "save"
	CategoryCorner      Category = "corner"
	CategoryFreekick    Category = "freekick"
	CategoryPenaltyKick Category = "penalty kick"
	CategoryOffside     Category = "offside"
	CategoryCustom      Category = "custom"
	CategoryUnknown     Category = "unknown"
)

// ID identifies an interval. Server ids are usually integers on the wire,
// client ids are opaque strings; both are kept as text.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("highlight id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes ids in canonical decimal form as numbers, which is how
// the server issues them. Anything else, "007" or "+5" included, stays a
// string.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Interval is a [Start, End) span in seconds with classification metadata.
// Values are never mutated in place; edits replace the stored value.
type Interval struct {
	ID       ID
	Start    float64
	End      float64
	Category Category
	Label    string
	// UserAuthored marks entries of the custom list. Detected entries may
	// still carry the custom category.
	UserAuthored bool
}

// NewInterval validates the bounds and returns the interval. duration is the
// length of the loaded video; zero means unknown and skips the upper check.
func NewInterval(id ID, start, end float64, category Category, label string, duration float64) (Interval, error) {
	if err := ValidateBounds(start, end, duration); err != nil {
		return Interval{}, err
	}
	if category == "" {
		category = CategoryUnknown
	}
	return Interval{ID: id, Start: start, End: end, Category: category, Label: label}, nil
}

// ValidateBounds reports ErrInvalidInterval for any span that cannot be played.
func ValidateBounds(start, end, duration float64) error {
	switch {
	case !finite(start) || !finite(end):
		return fmt.Errorf("%w: bounds must be finite numbers", ErrInvalidInterval)
	case start < 0 || end < 0:
		return fmt.Errorf("%w: bounds must not be negative", ErrInvalidInterval)
	case start >= end:
		return fmt.Errorf("%w: start %.3f must be before end %.3f", ErrInvalidInterval, start, end)
	case duration > 0 && end > duration:
		return fmt.Errorf("%w: end %.3f exceeds video duration %.3f", ErrInvalidInterval, end, duration)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Length returns End - Start.
func (iv Interval) Length() float64 {
	return iv.End - iv.Start
}

// IsCustom reports whether the interval was authored by the user.
func (iv Interval) IsCustom() bool {
	return iv.UserAuthored
}

const customPrefix = "custom-"

// IDSource issues client ids for custom intervals. Tokens follow wall clock
// milliseconds but are strictly increasing even within the same millisecond.
type IDSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDSource() *IDSource {
	return &IDSource{now: time.Now}
}

func (s *IDSource) Next() ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.now().UnixMilli()
	if n <= s.last {
		n = s.last + 1
	}
	s.last = n
	return ID(customPrefix + strconv.FormatInt(n, 10))
}

// Observe advances the source past an id loaded from a prior save so new
// tokens never collide with it. Bare millisecond ids from older saves count too.
func (s *IDSource) Observe(id ID) {
	raw, _ := strings.CutPrefix(string(id), customPrefix)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}
	s.mu.Lock()
	if n > s.last {
		s.last = n
	}
	s.mu.Unlock()
}
