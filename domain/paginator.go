package domain

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// DefaultPageSize is the number of posts shown per listing page.
const DefaultPageSize = 10

// MaxPageSize is the largest page a listing may request from the store.
const MaxPageSize = 1000

// PageBounds describes one page of an ordered collection of Total items.
//
// Requested page numbers are clamped: anything below 1 becomes 1 and
// anything past the last page becomes the last page. An empty collection
// has NumPages == 0 and a single empty page numbered 1.
type PageBounds struct {
	Number   int
	NumPages int
	Total    int
	Size     int
	Offset   int
	Limit    int
}

// NewPageBounds positions page number of total items split into pages of
// size items.
func NewPageBounds(total, size, number int) (PageBounds, error) {
	if size < 1 {
		return PageBounds{}, ErrInvalidPageSize
	}
	if total < 0 {
		total = 0
	}

	numPages := total / size
	if total%size != 0 {
		numPages++
	}
	if number > numPages {
		number = numPages
	}
	if number < 1 {
		number = 1
	}

	offset := (number - 1) * size
	limit := min(size, total-offset)
	if limit < 0 {
		limit = 0
	}

	return PageBounds{
		Number:   number,
		NumPages: numPages,
		Total:    total,
		Size:     size,
		Offset:   offset,
		Limit:    limit,
	}, nil
}

// Page is one slice of an ordered collection together with its position.
type Page[T any] struct {
	Items []T
	PageBounds
}

// Paginate returns page number of items split into pages of size items.
// Items of the page share the backing array of the input, which is never
// modified.
func Paginate[T any](items []T, size, number int) (Page[T], error) {
	bounds, err := NewPageBounds(len(items), size, number)
	if err != nil {
		return Page[T]{}, err
	}
	end := bounds.Offset + bounds.Limit
	return PageOf(items[bounds.Offset:end:end], bounds), nil
}

// PageOf wraps items already cut to bounds, e.g. by a LIMIT/OFFSET query.
func PageOf[T any](items []T, bounds PageBounds) Page[T] {
	return Page[T]{Items: items, PageBounds: bounds}
}

// HasPrevious reports whether a page precedes this one.
func (b PageBounds) HasPrevious() bool { return b.Number > 1 }

// HasNext reports whether a page follows this one.
func (b PageBounds) HasNext() bool { return b.Number < b.NumPages }

// HasOtherPages reports whether the collection spans more than one page.
func (b PageBounds) HasOtherPages() bool {
	return b.HasPrevious() || b.HasNext()
}

// PreviousNumber is the number of the page before this one.
func (b PageBounds) PreviousNumber() int { return b.Number - 1 }

// NextNumber is the number of the page after this one.
func (b PageBounds) NextNumber() int { return b.Number + 1 }

// Len is the number of items on the page.
func (p Page[T]) Len() int {
	return len(p.Items)
}

// ParsePageNumber reads a ?page= value. Anything that is not a number
// yields 1; range clamping is left to NewPageBounds. Numbers too large for
// an int saturate so that they still clamp to the last page.
func ParsePageNumber(raw string) int {
	n, err := strconv.Atoi(raw)
	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(raw, "-") {
			return math.MinInt
		}
		return math.MaxInt
	}
	if err != nil {
		return 1
	}
	return n
}
