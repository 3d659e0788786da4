// Package pagination parses page/per_page query parameters and builds page metadata.
package pagination

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// MaxPage bounds page numbers so Offset cannot overflow.
const MaxPage = math.MaxInt32

// Config configures page size normalization.
type Config struct {
	Default int
	Max     int
}

// DefaultConfig matches the page size most list endpoints use.
var DefaultConfig = Config{Default: 15, Max: 100}

// Page is a 1-based page request.
type Page struct {
	Number  int
	PerPage int
}

// Offset is the number of rows to skip for this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

// Parse reads raw page and per_page values. Invalid or missing values fall back to defaults.
func Parse(page, perPage string, cfg Config) Page {
	n, err := strconv.Atoi(page)
	switch {
	case err == nil && n > MaxPage, errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(page, "-"):
		n = MaxPage
	case err != nil || n < 1:
		n = 1
	}
	size, err := strconv.Atoi(perPage)
	if err != nil {
		size = 0
	}
	return Page{Number: n, PerPage: ClampPageSize(size, cfg)}
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg Config) int {
	size := value
	if size <= 0 {
		size = cfg.Default
	}
	if cfg.Max > 0 && size > cfg.Max {
		size = cfg.Max
	}
	if size <= 0 {
		size = 1
	}
	if size > MaxPage {
		size = MaxPage
	}
	return size
}

// Meta describes where a page sits in the full result set.
type Meta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// NewMeta builds page metadata for total matching rows.
func NewMeta(p Page, total int) Meta {
	last := 1
	if total > 0 {
		last = (total + p.PerPage - 1) / p.PerPage
	}
	return Meta{CurrentPage: p.Number, PerPage: p.PerPage, Total: total, LastPage: last}
}
