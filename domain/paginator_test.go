package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbers(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestPaginate_ThirteenItems(t *testing.T) {
	items := numbers(13)

	first, err := Paginate(items, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, numbers(10), first.Items)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 2, first.NumPages)
	assert.True(t, first.HasNext())
	assert.False(t, first.HasPrevious())

	second, err := Paginate(items, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 11, 12}, second.Items)
	assert.Equal(t, 2, second.Number)
	assert.False(t, second.HasNext())
	assert.True(t, second.HasPrevious())
	assert.Equal(t, 1, second.PreviousNumber())
}

func TestPaginate_ClampsOutOfRange(t *testing.T) {
	items := numbers(13)

	tests := []struct {
		name     string
		number   int
		expected int
	}{
		{"past last page", 3, 2},
		{"far past last page", 1000, 2},
		{"zero", 0, 1},
		{"negative", -4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := Paginate(items, 10, tt.number)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, page.Number)

			want, err := Paginate(items, 10, tt.expected)
			require.NoError(t, err)
			assert.Equal(t, want.Items, page.Items)
		})
	}
}

func TestPaginate_Empty(t *testing.T) {
	page, err := Paginate([]string{}, 10, 3)
	require.NoError(t, err)

	assert.Equal(t, 0, page.NumPages)
	assert.Equal(t, 1, page.Number)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasOtherPages())
}

func TestPaginate_NilInput(t *testing.T) {
	page, err := Paginate[string](nil, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Len())
}

func TestPaginate_InvalidSize(t *testing.T) {
	_, err := Paginate(numbers(3), 0, 1)
	assert.ErrorIs(t, err, ErrInvalidPageSize)

	_, err = NewPageBounds(3, -1, 1)
	assert.ErrorIs(t, err, ErrInvalidPageSize)
}

func TestPaginate_DoesNotMutateInput(t *testing.T) {
	items := numbers(13)

	page, err := Paginate(items, 5, 1)
	require.NoError(t, err)
	_ = append(page.Items, 99)

	assert.Equal(t, numbers(13), items)
}

func TestPaginate_Properties(t *testing.T) {
	for length := 0; length <= 25; length++ {
		for size := 1; size <= 7; size++ {
			items := numbers(length)
			numPages := (length + size - 1) / size
			for n := 1; n <= numPages; n++ {
				page, err := Paginate(items, size, n)
				require.NoError(t, err)
				assert.Equal(t, min(size, length-(n-1)*size), page.Len())
				assert.Equal(t, numPages, page.NumPages)
				assert.Equal(t, (n-1)*size, page.Items[0])
			}
		}
	}
}

func TestNewPageBounds_OffsetAndLimit(t *testing.T) {
	bounds, err := NewPageBounds(13, 10, 2)
	require.NoError(t, err)

	assert.Equal(t, PageBounds{Number: 2, NumPages: 2, Total: 13, Size: 10, Offset: 10, Limit: 3}, bounds)
}

func TestParsePageNumber(t *testing.T) {
	assert.Equal(t, 1, ParsePageNumber(""))
	assert.Equal(t, 1, ParsePageNumber("abc"))
	assert.Equal(t, 2, ParsePageNumber("2"))
	assert.Equal(t, -3, ParsePageNumber("-3"))
	assert.Equal(t, math.MaxInt, ParsePageNumber("99999999999999999999"))
	assert.Equal(t, math.MinInt, ParsePageNumber("-99999999999999999999"))
}

func TestParsePageNumber_HugeNumberClampsToLastPage(t *testing.T) {
	b, err := NewPageBounds(13, 10, ParsePageNumber("99999999999999999999"))
	require.NoError(t, err)
	assert.Equal(t, 2, b.Number)
	assert.Equal(t, 3, b.Limit)

	b, err = NewPageBounds(13, 10, ParsePageNumber("-99999999999999999999"))
	require.NoError(t, err)
	assert.Equal(t, 1, b.Number)
}

func TestNewPageBounds_HugePageSize(t *testing.T) {
	b, err := NewPageBounds(13, math.MaxInt, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, b.NumPages)
	assert.Equal(t, 13, b.Limit)

	b, err = NewPageBounds(math.MaxInt, math.MaxInt-1, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, b.NumPages)
	assert.Equal(t, 2, b.Number)
	assert.Equal(t, 1, b.Limit)
}
