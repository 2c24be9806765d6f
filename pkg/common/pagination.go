package common

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "graphstore/pkg/errors"
)

const (
	// MaxTakeCeiling bounds every page regardless of configuration.
	MaxTakeCeiling = 500

	// DefaultTake is used when the caller supplies no usable take.
	DefaultTake = 50
)

// Page is a resolved skip/take window.
type Page struct {
	Skip int `json:"skip"`
	Take int `json:"take"`
}

// RawPage carries skip/take exactly as the caller sent them.
// An empty string means the parameter was absent.
type RawPage struct {
	Skip string
	Take string
}

// ExtractRawPage reads skip and take from the query string.
func ExtractRawPage(r *http.Request) RawPage {
	q := r.URL.Query()
	return RawPage{Skip: q.Get("skip"), Take: q.Get("take")}
}

// PaginationPolicy turns raw skip/take input into a Page.
type PaginationPolicy interface {
	Resolve(raw RawPage) (Page, error)
	Normalize(page Page) Page
	Name() string
}

// LenientPolicy clamps bad input and never fails.
type LenientPolicy struct {
	DefaultTake int
	MaxTake     int
}

// StrictPolicy rejects non-numeric and out-of-range input.
type StrictPolicy struct {
	DefaultTake int
	MaxTake     int
}

// NewLenientPolicy creates a new LenientPolicy. Out-of-range bounds fall
// back to DefaultTake and MaxTakeCeiling.
func NewLenientPolicy(defaultTake, maxTake int) LenientPolicy {
	maxTake, defaultTake = sanitizeBounds(defaultTake, maxTake)
	return LenientPolicy{DefaultTake: defaultTake, MaxTake: maxTake}
}

// NewStrictPolicy creates a new StrictPolicy with the same bound handling
// as NewLenientPolicy.
func NewStrictPolicy(defaultTake, maxTake int) StrictPolicy {
	maxTake, defaultTake = sanitizeBounds(defaultTake, maxTake)
	return StrictPolicy{DefaultTake: defaultTake, MaxTake: maxTake}
}

func sanitizeBounds(defaultTake, maxTake int) (int, int) {
	if maxTake <= 0 || maxTake > MaxTakeCeiling {
		maxTake = MaxTakeCeiling
	}
	if defaultTake <= 0 {
		defaultTake = DefaultTake
	}
	if defaultTake > maxTake {
		defaultTake = maxTake
	}
	return maxTake, defaultTake
}

func (p LenientPolicy) Name() string { return "lenient" }

// Resolve never returns an error.
func (p LenientPolicy) Resolve(raw RawPage) (Page, error) {
	page := Page{Skip: 0, Take: 0}
	if v, err := strconv.Atoi(strings.TrimSpace(raw.Skip)); err == nil {
		page.Skip = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(raw.Take)); err == nil {
		page.Take = v
	}
	return p.Normalize(page), nil
}

// Normalize applies the clamping rules to already-parsed values.
func (p LenientPolicy) Normalize(page Page) Page {
	maxTake, defaultTake := sanitizeBounds(p.DefaultTake, p.MaxTake)
	if page.Skip < 0 {
		page.Skip = 0
	}
	switch {
	case page.Take < 0:
		page.Take = maxTake
	case page.Take == 0:
		page.Take = defaultTake
	case page.Take > maxTake:
		page.Take = maxTake
	}
	return page
}

func (p StrictPolicy) Name() string { return "strict" }

// Resolve fails with INVALID_PAGINATION for unparseable or out-of-range values.
// Absent values take the defaults; skip 0 is valid.
func (p StrictPolicy) Resolve(raw RawPage) (Page, error) {
	maxTake, defaultTake := sanitizeBounds(p.DefaultTake, p.MaxTake)
	page := Page{Skip: 0, Take: defaultTake}

	if s := strings.TrimSpace(raw.Skip); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return Page{}, pkgerrors.InvalidPagination("skip", raw.Skip, "must be an integer")
		}
		if v < 0 {
			return Page{}, pkgerrors.InvalidPagination("skip", raw.Skip, "must not be negative")
		}
		page.Skip = v
	}

	if s := strings.TrimSpace(raw.Take); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return Page{}, pkgerrors.InvalidPagination("take", raw.Take, "must be an integer")
		}
		if v <= 0 {
			return Page{}, pkgerrors.InvalidPagination("take", raw.Take, "must be positive")
		}
		page.Take = v
	}

	if page.Take > maxTake {
		page.Take = maxTake
	}
	return page, nil
}

// Normalize clamps take to the ceiling. Values reaching it have already
// passed Resolve, so only the upper bound is enforced here.
func (p StrictPolicy) Normalize(page Page) Page {
	maxTake, defaultTake := sanitizeBounds(p.DefaultTake, p.MaxTake)
	if page.Skip < 0 {
		page.Skip = 0
	}
	if page.Take <= 0 {
		page.Take = defaultTake
	}
	if page.Take > maxTake {
		page.Take = maxTake
	}
	return page
}

// Window returns the [start, end) bounds of page over total items.
// Skip beyond total yields an empty window.
func Window(page Page, total int) (int, int) {
	start := page.Skip
	if start > total {
		start = total
	}
	end := start + page.Take
	if end > total || end < start {
		end = total
	}
	return start, end
}
