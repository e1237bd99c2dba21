package listsync

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/araddon/dateparse"
	"github.com/desertthunder/notedesk/internal/shared"
)

// PageField is the reserved filter name for the page number.
const PageField = "page"

// PageSizeField is the reserved filter name for the page size.
const PageSizeField = "page_size"

const dateLayout = "2006-01-02"

// FieldKind determines how a filter value is validated.
type FieldKind int

const (
	KindText FieldKind = iota
	KindEnum
	KindDate
)

// FieldSpec declares one filter field of a list screen.
type FieldSpec struct {
	Name    string
	Kind    FieldKind
	Default string
	Options []string // allowed values for KindEnum
}

// normalize validates value and returns its canonical form.
//
// An empty value restores the field default.
func (f FieldSpec) normalize(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return f.Default, nil
	}

	switch f.Kind {
	case KindEnum:
		value = strings.ToLower(value)
		if !slices.Contains(f.Options, value) {
			return "", fmt.Errorf("%w: %s must be one of %s, got %q", shared.ErrValidation, f.Name, strings.Join(f.Options, ", "), value)
		}
	case KindDate:
		t, err := dateparse.ParseAny(value)
		if err != nil {
			return "", fmt.Errorf("%w: %s is not a date: %q", shared.ErrValidation, f.Name, value)
		}
		value = t.Format(dateLayout)
	}
	return value, nil
}

// FilterState is the filter, sort and page selection of one list screen.
type FilterState struct {
	Values   map[string]string
	Page     int
	PageSize int
}

// Get returns the value of a filter field.
func (s FilterState) Get(name string) string {
	return s.Values[name]
}

// Clone returns a deep copy.
func (s FilterState) Clone() FilterState {
	return FilterState{Values: maps.Clone(s.Values), Page: s.Page, PageSize: s.PageSize}
}

// Equal reports whether both states select the same page of the same query.
func (s FilterState) Equal(o FilterState) bool {
	return s.Page == o.Page && s.PageSize == o.PageSize && maps.Equal(s.nonEmpty(), o.nonEmpty())
}

// Active returns the non-empty filter values.
func (s FilterState) Active() map[string]string {
	return s.nonEmpty()
}

func (s FilterState) nonEmpty() map[string]string {
	out := make(map[string]string, len(s.Values))
	for k, v := range s.Values {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Query encodes the state as URL query parameters so it survives navigation and refresh.
func (s FilterState) Query() url.Values {
	q := url.Values{}
	for k, v := range s.nonEmpty() {
		q.Set(k, v)
	}
	if s.Page > 1 {
		q.Set(PageField, strconv.Itoa(s.Page))
	}
	return q
}

// FilterStore holds the current [FilterState] of one list screen.
//
// Every mutator reports whether the state changed, so callers only fetch on real transitions.
type FilterStore struct {
	mu       sync.Mutex
	fields   map[string]FieldSpec
	pageSize int
	state    FilterState
}

// NewFilterStore creates a store for the given fields, starting from their defaults.
func NewFilterStore(fields []FieldSpec, pageSize int) *FilterStore {
	if pageSize <= 0 {
		pageSize = 20
	}
	s := &FilterStore{fields: make(map[string]FieldSpec, len(fields)), pageSize: pageSize}
	for _, f := range fields {
		s.fields[f.Name] = f
	}
	s.state = s.defaults()
	return s
}

func (s *FilterStore) defaults() FilterState {
	values := make(map[string]string, len(s.fields))
	for name, f := range s.fields {
		values[name] = f.Default
	}
	return FilterState{Values: values, Page: 1, PageSize: s.pageSize}
}

// Load replaces the state with values from URL query parameters.
//
// Unknown parameters are ignored; invalid values fail without modifying the store.
func (s *FilterStore) Load(q url.Values) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.defaults()
	for name, f := range s.fields {
		if !q.Has(name) {
			continue
		}
		v, err := f.normalize(q.Get(name))
		if err != nil {
			return err
		}
		next.Values[name] = v
	}

	if raw := q.Get(PageSizeField); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return fmt.Errorf("%w: page_size must be a positive integer, got %q", shared.ErrValidation, raw)
		}
		next.PageSize = n
	}
	if raw := q.Get(PageField); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return fmt.Errorf("%w: page must be a positive integer, got %q", shared.ErrValidation, raw)
		}
		next.Page = n
	}

	s.state = next
	return nil
}

// State returns a copy of the current state.
func (s *FilterStore) State() FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Set changes one filter field and resets the page to 1.
//
// Setting [PageField] delegates to [FilterStore.SetPage] and leaves other fields alone.
func (s *FilterStore) Set(name, value string) (bool, error) {
	switch name {
	case PageField:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return false, fmt.Errorf("%w: page must be an integer, got %q", shared.ErrValidation, value)
		}
		return s.SetPage(n)
	case PageSizeField:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return false, fmt.Errorf("%w: page_size must be an integer, got %q", shared.ErrValidation, value)
		}
		return s.SetPageSize(n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fields[name]
	if !ok {
		return false, fmt.Errorf("%w: %w %q", shared.ErrValidation, shared.ErrUnknownFilter, name)
	}
	v, err := f.normalize(value)
	if err != nil {
		return false, err
	}
	if s.state.Values[name] == v {
		return false, nil
	}

	s.state.Values[name] = v
	s.state.Page = 1
	return true, nil
}

// SetPage selects a page without touching any other field.
func (s *FilterStore) SetPage(n int) (bool, error) {
	if n < 1 {
		return false, fmt.Errorf("%w: page must be at least 1, got %d", shared.ErrValidation, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Page == n {
		return false, nil
	}
	s.state.Page = n
	return true, nil
}

// SetPageSize changes the page size and resets the page to 1.
func (s *FilterStore) SetPageSize(n int) (bool, error) {
	if n < 1 {
		return false, fmt.Errorf("%w: page_size must be at least 1, got %d", shared.ErrValidation, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.PageSize == n {
		return false, nil
	}
	s.state.PageSize = n
	s.state.Page = 1
	return true, nil
}

// Clear resets every field to its default and the page to 1 in one update.
//
// The page size is kept.
func (s *FilterStore) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.defaults()
	next.PageSize = s.state.PageSize
	if s.state.Equal(next) {
		return false
	}
	s.state = next
	return true
}

// Fields returns the declared field specs sorted by name.
func (s *FilterStore) Fields() []FieldSpec {
	out := make([]FieldSpec, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b FieldSpec) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// FilterStateFromQuery builds the initial state of a screen from URL query parameters.
func FilterStateFromQuery(fields []FieldSpec, pageSize int, q url.Values) (FilterState, error) {
	s := NewFilterStore(fields, pageSize)
	if err := s.Load(q); err != nil {
		return FilterState{}, err
	}
	return s.State(), nil
}
