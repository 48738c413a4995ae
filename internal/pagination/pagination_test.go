package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		page, size int
		want       Page
	}{
		{0, 0, Page{Page: 1, PageSize: DefaultPageSize, Offset: 0}},
		{-3, 10, Page{Page: 1, PageSize: 10, Offset: 0}},
		{3, 10, Page{Page: 3, PageSize: 10, Offset: 20}},
		{2, 500, Page{Page: 2, PageSize: DefaultPageSize, Offset: DefaultPageSize}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Calculate(tt.page, tt.size))
	}
}

func TestMeta(t *testing.T) {
	m := Calculate(2, 10).Meta(25)
	assert.Equal(t, 3, m.Pages)
	assert.True(t, m.HasNext)
	assert.True(t, m.HasPrev)

	m = Calculate(1, 10).Meta(0)
	assert.Equal(t, 0, m.Pages)
	assert.False(t, m.HasNext)
	assert.False(t, m.HasPrev)

	m = Calculate(3, 10).Meta(25)
	assert.False(t, m.HasNext)
}
